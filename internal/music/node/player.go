package node

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/keshon/lavaplay/internal/music/track"
	"github.com/rs/zerolog"
)

// sender is the part of Client a Player talks to.
type sender interface {
	Send(ctx context.Context, payload any) error
	publish(e Event)
}

// Player is the playback state machine of one guild. It is disconnected
// until Connect succeeds, then idle or playing depending on current.
type Player struct {
	conn    sender
	guildID string
	log     zerolog.Logger

	mu        sync.Mutex
	channelID string
	queue     []track.Track
	current   *track.Track
	paused    bool
}

func newPlayer(conn sender, guildID string, log zerolog.Logger) *Player {
	return &Player{
		conn:    conn,
		guildID: guildID,
		log:     log,
		queue:   make([]track.Track, 0),
	}
}

// Connect asks the node to join channelID. The channel is recorded only
// after the connect command went out.
func (p *Player) Connect(ctx context.Context, channelID string) error {
	if channelID == "" {
		return ErrEmptyChannelID
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channelID == channelID {
		return nil
	}

	err := p.conn.Send(ctx, connectMessage{Op: opConnect, GuildID: p.guildID, ChannelID: channelID})
	if err != nil {
		return fmt.Errorf("connect guild %s to channel %s: %w", p.guildID, channelID, err)
	}

	p.channelID = channelID
	p.log.Info().Str("channel", channelID).Msg("connected to voice channel")
	return nil
}

// Enqueue appends the track built from d. With playNow set, playback starts
// right away if the player is idle. A malformed descriptor leaves the queue
// untouched and returns track.ErrMalformedDescriptor.
func (p *Player) Enqueue(ctx context.Context, d track.Descriptor, playNow bool) (track.Track, error) {
	t, err := track.New(d)
	if err != nil {
		p.log.Warn().Err(err).Msg("rejected track descriptor")
		return track.Track{}, err
	}

	p.mu.Lock()
	p.queue = append(p.queue, t)
	p.log.Debug().Str("track", t.String()).Int("queue_len", len(p.queue)).Msg("track queued")

	var started *track.Track
	if playNow {
		started, err = p.playLocked(ctx)
	}
	p.mu.Unlock()

	p.announce(started)
	return t, err
}

// Play starts the head of the queue. It does nothing while disconnected,
// while a track is playing or when the queue is empty.
func (p *Player) Play(ctx context.Context) error {
	p.mu.Lock()
	started, err := p.playLocked(ctx)
	p.mu.Unlock()

	p.announce(started)
	return err
}

// playLocked sends the play command and then pops the head, so a failed
// send leaves the queue as it was.
func (p *Player) playLocked(ctx context.Context) (*track.Track, error) {
	if p.channelID == "" || p.current != nil || len(p.queue) == 0 {
		return nil, nil
	}

	next := p.queue[0]
	err := p.conn.Send(ctx, playMessage{Op: opPlay, GuildID: p.guildID, Track: next.Handle()})
	if err != nil {
		return nil, fmt.Errorf("play %q in guild %s: %w", next.Title(), p.guildID, err)
	}

	p.queue = p.queue[1:]
	p.current = &next
	p.paused = false
	return &next, nil
}

func (p *Player) announce(started *track.Track) {
	if started == nil {
		return
	}
	p.log.Info().Str("track", started.String()).Msg("now playing")
	p.conn.publish(TrackStart{GuildID: p.guildID, Track: *started})
}

// onTrackEnd is called by the client's receive loop. An end event for a
// track other than the current one is stale and ignored.
func (p *Player) onTrackEnd(ctx context.Context, handle string) error {
	p.mu.Lock()
	if handle != "" && p.current != nil && p.current.Handle() != handle {
		p.mu.Unlock()
		p.log.Debug().Str("handle", handle).Msg("ignoring end of stale track")
		return nil
	}

	p.current = nil
	p.paused = false
	started, err := p.playLocked(ctx)
	p.mu.Unlock()

	p.announce(started)
	return err
}

// Skip stops the current track on the node. The node answers with a
// TrackEndEvent, which advances the queue.
func (p *Player) Skip(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return ErrNoTrackPlaying
	}
	if err := p.conn.Send(ctx, stopMessage{Op: opStop, GuildID: p.guildID}); err != nil {
		return fmt.Errorf("stop guild %s: %w", p.guildID, err)
	}
	return nil
}

// Pause pauses or resumes the current track.
func (p *Player) Pause(ctx context.Context, pause bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return ErrNoTrackPlaying
	}
	if err := p.conn.Send(ctx, pauseMessage{Op: opPause, GuildID: p.guildID, Pause: pause}); err != nil {
		return fmt.Errorf("pause guild %s: %w", p.guildID, err)
	}
	p.paused = pause
	return nil
}

// ClearQueue drops every queued track and returns how many were removed.
func (p *Player) ClearQueue() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.queue)
	p.queue = make([]track.Track, 0)
	return n
}

func (p *Player) GuildID() string { return p.guildID }

func (p *Player) ChannelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channelID
}

func (p *Player) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channelID != ""
}

func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

func (p *Player) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Current returns the playing track, if any.
func (p *Player) Current() (track.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return track.Track{}, false
	}
	return *p.current, true
}

// Queue returns a copy of the pending tracks in play order.
func (p *Player) Queue() []track.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.queue)
}
