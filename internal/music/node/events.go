package node

import (
	"sync"
	"time"

	"github.com/keshon/lavaplay/internal/music/track"
)

// Event is one of TrackStart, TrackEnd, TrackException, TrackStuck,
// PlayerUpdate, ProtocolError or StateChange.
type Event interface {
	isEvent()
}

// TrackStart is published locally once a play command has been sent.
type TrackStart struct {
	GuildID string
	Track   track.Track
}

// TrackEnd reports that the node finished (or replaced, or stopped) a track.
type TrackEnd struct {
	GuildID string
	Track   string
	Reason  string
}

type TrackException struct {
	GuildID string
	Track   string
	Error   string
}

type TrackStuck struct {
	GuildID   string
	Track     string
	Threshold time.Duration
}

type PlayerUpdate struct {
	GuildID  string
	Time     time.Time
	Position time.Duration
}

// ProtocolError carries a frame the receive loop could not decode.
type ProtocolError struct {
	Err   error
	Frame []byte
}

type StateChange struct {
	From State
	To   State
}

func (TrackStart) isEvent()     {}
func (TrackEnd) isEvent()       {}
func (TrackException) isEvent() {}
func (TrackStuck) isEvent()     {}
func (PlayerUpdate) isEvent()   {}
func (ProtocolError) isEvent()  {}
func (StateChange) isEvent()    {}

type subscriber struct {
	id int
	fn func(Event)
}

// eventBus delivers events synchronously, in subscription order.
type eventBus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscriber
}

func (b *eventBus) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

func (b *eventBus) publish(e Event) {
	b.mu.RLock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(e)
	}
}
