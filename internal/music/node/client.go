// Package node talks to a remote audio node over a single WebSocket: it keeps
// one Player per guild, sends playback commands and routes node events back
// to the player that owns them.
package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/gorilla/websocket"
	"github.com/keshon/lavaplay/internal/music/track"
	"github.com/rs/zerolog"
)

const (
	defaultSendTimeout = 10 * time.Second
	closeGracePeriod   = time.Second
	maxLoggedFrame     = 256
)

// VoiceGateway is the bot-side Discord gateway the node drives through
// sendWS and isConnectedReq frames.
type VoiceGateway interface {
	Forward(shardID int, message json.RawMessage) error
	Connected(shardID int) bool
}

// Resolver turns a search query or URL into raw track descriptors.
type Resolver interface {
	Resolve(ctx context.Context, query string) ([]track.Descriptor, error)
}

// Config is fixed for the lifetime of a Client.
type Config struct {
	Host        string
	Port        int
	ShardCount  int
	UserID      string
	Password    string
	SendTimeout time.Duration

	// Dialer overrides websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

func (c Config) URL() string {
	return "ws://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Client owns the channel to the node.
type Client struct {
	cfg      Config
	gateway  VoiceGateway
	resolver Resolver
	log      zerolog.Logger

	state atomic.Int32

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu      sync.Mutex
	players map[string]weak.Pointer[Player]

	events eventBus

	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	finishOnce sync.Once
	closeOnce  sync.Once
	err        error
}

// New creates a Client. gw and res may be nil, in which case sendWS frames
// are dropped and ResolveTracks fails.
func New(cfg Config, gw VoiceGateway, res Resolver, log zerolog.Logger) *Client {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.ShardCount <= 0 {
		cfg.ShardCount = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:      cfg,
		gateway:  gw,
		resolver: res,
		log:      log.With().Str("component", "node").Logger(),
		players:  make(map[string]weak.Pointer[Player]),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) setState(to State) {
	from := State(c.state.Swap(int32(to)))
	if from == to {
		return
	}
	c.log.Debug().Stringer("from", from).Stringer("to", to).Msg("channel state changed")
	c.events.publish(StateChange{From: from, To: to})
}

// Open dials the node and starts the receive loop. A Client is opened at
// most once; reconnecting means building a new Client.
func (c *Client) Open(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return fmt.Errorf("%w: client is %s", ErrChannelOpenFailed, c.State())
	}
	c.events.publish(StateChange{From: StateDisconnected, To: StateConnecting})

	header := http.Header{}
	header.Set("Authorization", c.cfg.Password)
	header.Set("Num-Shards", strconv.Itoa(c.cfg.ShardCount))
	header.Set("User-Id", c.cfg.UserID)

	dialer := c.cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	url := c.cfg.URL()
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		c.finish(StateFailed, err)
		return fmt.Errorf("%w: %s: %w", ErrChannelOpenFailed, url, err)
	}

	c.writeMu.Lock()
	if c.ctx.Err() != nil {
		c.writeMu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("%w: client closed while dialing", ErrChannelOpenFailed)
	}
	c.conn = conn
	c.writeMu.Unlock()

	c.setState(StateOpen)
	c.log.Info().Str("url", url).Msg("node channel ready")

	go c.listen(conn)
	return nil
}

// Done is closed once the receive loop has stopped.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the channel went down. It is nil after a clean Close.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close shuts the channel and waits for the receive loop to exit.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()

		c.writeMu.Lock()
		conn := c.conn
		if conn != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
			_ = conn.Close()
		}
		c.writeMu.Unlock()

		if conn == nil {
			c.finish(StateClosed, nil)
		}
	})

	<-c.done
	return nil
}

// finish moves the client to its terminal state exactly once.
func (c *Client) finish(to State, err error) {
	c.finishOnce.Do(func() {
		c.writeMu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.writeMu.Unlock()

		c.err = err
		c.setState(to)
		c.cancel()
		close(c.done)
	})
}

func (c *Client) listen(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Info().Msg("node channel closed")
				c.finish(StateClosed, nil)
				return
			}
			c.log.Error().Err(err).Msg("node channel read failed")
			c.finish(StateFailed, fmt.Errorf("read from node: %w", err))
			return
		}
		c.handle(data)
	}
}

// handle processes one inbound frame. Nothing here may end the loop.
func (c *Client) handle(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		frame := data
		if len(frame) > maxLoggedFrame {
			frame = frame[:maxLoggedFrame]
		}
		c.log.Warn().Err(err).Bytes("frame", frame).Msg("dropping undecodable frame")
		c.events.publish(ProtocolError{Err: fmt.Errorf("%w: %w", ErrDecodeFailure, err), Frame: data})
		return
	}

	switch msg.Op {
	case opValidationReq:
		c.replyValidation(msg)
	case opIsConnectedReq:
		c.replyIsConnected(msg)
	case opSendWS:
		c.forwardToGateway(msg)
	case opEvent:
		c.dispatchEvent(msg)
	case opPlayerUpdate:
		c.dispatchPlayerUpdate(msg)
	default:
		c.log.Debug().Str("op", msg.Op).Msg("ignoring frame")
	}
}

func (c *Client) replyValidation(msg inboundMessage) {
	reply := validationResponse{
		Op:        opValidationRes,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		Valid:     true,
	}
	if err := c.Send(c.ctx, reply); err != nil {
		c.log.Error().Err(err).Str("guild", msg.GuildID).Msg("validation reply failed")
	}
}

func (c *Client) replyIsConnected(msg inboundMessage) {
	connected := c.gateway != nil && c.gateway.Connected(msg.ShardID)
	reply := isConnectedResponse{Op: opIsConnectedRes, ShardID: msg.ShardID, Connected: connected}
	if err := c.Send(c.ctx, reply); err != nil {
		c.log.Error().Err(err).Int("shard", msg.ShardID).Msg("connectivity reply failed")
	}
}

func (c *Client) forwardToGateway(msg inboundMessage) {
	if c.gateway == nil {
		c.log.Warn().Int("shard", msg.ShardID).Msg("no voice gateway, dropping sendWS frame")
		return
	}
	if len(msg.Message) == 0 {
		c.log.Warn().Int("shard", msg.ShardID).Msg("sendWS frame without message")
		return
	}
	if err := c.gateway.Forward(msg.ShardID, msg.Message); err != nil {
		c.log.Error().Err(err).Int("shard", msg.ShardID).Msg("forwarding to voice gateway failed")
	}
}

func (c *Client) dispatchEvent(msg inboundMessage) {
	switch msg.Type {
	case eventTrackEnd:
		c.events.publish(TrackEnd{GuildID: msg.GuildID, Track: msg.Track, Reason: msg.Reason})
		for _, p := range c.playersFor(msg.GuildID) {
			if err := p.onTrackEnd(c.ctx, msg.Track); err != nil {
				c.log.Error().Err(err).Str("guild", p.GuildID()).Msg("advancing queue failed")
			}
		}
	case eventTrackException:
		c.log.Warn().Str("guild", msg.GuildID).Str("error", msg.Error).Msg("track exception")
		c.events.publish(TrackException{GuildID: msg.GuildID, Track: msg.Track, Error: msg.Error})
	case eventTrackStuck:
		c.log.Warn().Str("guild", msg.GuildID).Int64("threshold_ms", msg.ThresholdMs).Msg("track stuck")
		c.events.publish(TrackStuck{
			GuildID:   msg.GuildID,
			Track:     msg.Track,
			Threshold: time.Duration(msg.ThresholdMs) * time.Millisecond,
		})
	default:
		c.log.Debug().Str("type", msg.Type).Msg("ignoring event")
	}
}

func (c *Client) dispatchPlayerUpdate(msg inboundMessage) {
	if msg.State == nil {
		return
	}
	c.events.publish(PlayerUpdate{
		GuildID:  msg.GuildID,
		Time:     time.UnixMilli(msg.State.Time),
		Position: time.Duration(msg.State.Position) * time.Millisecond,
	})
}

// Send writes one JSON frame. Concurrent calls are serialized. It fails fast
// with ErrNotConnected unless the channel is open.
func (c *Client) Send(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode node message: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.State() != StateOpen || c.conn == nil {
		return ErrNotConnected
	}

	deadline := time.Now().Add(c.cfg.SendTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("write to node: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
			return ErrNotConnected
		}
		return fmt.Errorf("write to node: %w", err)
	}
	return nil
}

func (c *Client) publish(e Event) { c.events.publish(e) }

// Subscribe registers fn for every event. fn runs on the receive loop and
// must return quickly. The returned func removes the subscription.
func (c *Client) Subscribe(fn func(Event)) func() {
	return c.events.subscribe(fn)
}

// CreatePlayer returns the live Player for guildID, creating it if needed.
// The client only keeps a weak reference; callers own the Player.
func (c *Client) CreatePlayer(guildID string) *Player {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wp, ok := c.players[guildID]; ok {
		if p := wp.Value(); p != nil {
			return p
		}
	}

	p := newPlayer(c, guildID, c.log.With().Str("component", "player").Str("guild", guildID).Logger())
	c.players[guildID] = weak.Make(p)
	return p
}

// Player looks up a live Player without creating one.
func (c *Client) Player(guildID string) (*Player, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wp, ok := c.players[guildID]
	if !ok {
		return nil, false
	}
	p := wp.Value()
	if p == nil {
		delete(c.players, guildID)
		return nil, false
	}
	return p, true
}

// RemovePlayer stops routing events to the guild's Player.
func (c *Client) RemovePlayer(guildID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.players, guildID)
}

// playersFor returns the routing targets of an event. An event without a
// guild goes to every live Player.
func (c *Client) playersFor(guildID string) []*Player {
	if guildID != "" {
		if p, ok := c.Player(guildID); ok {
			return []*Player{p}
		}
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	players := make([]*Player, 0, len(c.players))
	for id, wp := range c.players {
		p := wp.Value()
		if p == nil {
			delete(c.players, id)
			continue
		}
		players = append(players, p)
	}
	return players
}

// ResolveTracks asks the configured resolver for track descriptors.
func (c *Client) ResolveTracks(ctx context.Context, query string) ([]track.Descriptor, error) {
	if c.resolver == nil {
		return nil, fmt.Errorf("%w: no resolver configured", ErrResolutionFailed)
	}
	descriptors, err := c.resolver.Resolve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrResolutionFailed, query, err)
	}
	return descriptors, nil
}

// DispatchVoiceUpdate hands Discord's voice server credentials to the node.
func (c *Client) DispatchVoiceUpdate(ctx context.Context, u VoiceUpdate) error {
	err := c.Send(ctx, voiceUpdateMessage{
		Op:        opVoiceUpdate,
		GuildID:   u.GuildID,
		SessionID: u.SessionID,
		Event:     u.Event,
	})
	if err != nil {
		return fmt.Errorf("voice update for guild %s: %w", u.GuildID, err)
	}
	return nil
}
