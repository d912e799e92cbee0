package discord

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/lavaplay/internal/music/node"
	"github.com/rs/zerolog"
)

// opVoiceStateUpdate is the Discord gateway opcode for joining, moving
// between and leaving voice channels.
const opVoiceStateUpdate = 4

type voiceJoin struct {
	GuildID   string
	ChannelID string // empty means leave
	SelfMute  bool
	SelfDeaf  bool
}

// parseVoiceJoin decodes a gateway frame the node asked us to send. The
// frame arrives either as a JSON object or as a JSON string holding one.
func parseVoiceJoin(message json.RawMessage) (voiceJoin, error) {
	raw := []byte(message)
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		raw = []byte(text)
	}

	var frame struct {
		Op int `json:"op"`
		D  struct {
			GuildID   string  `json:"guild_id"`
			ChannelID *string `json:"channel_id"`
			SelfMute  bool    `json:"self_mute"`
			SelfDeaf  bool    `json:"self_deaf"`
		} `json:"d"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return voiceJoin{}, fmt.Errorf("decode gateway frame: %w", err)
	}
	if frame.Op != opVoiceStateUpdate {
		return voiceJoin{}, fmt.Errorf("unsupported gateway op %d", frame.Op)
	}
	if frame.D.GuildID == "" {
		return voiceJoin{}, fmt.Errorf("gateway frame without guild_id")
	}

	join := voiceJoin{
		GuildID:  frame.D.GuildID,
		SelfMute: frame.D.SelfMute,
		SelfDeaf: frame.D.SelfDeaf,
	}
	if frame.D.ChannelID != nil {
		join.ChannelID = *frame.D.ChannelID
	}
	return join, nil
}

// voiceGateway lets the node speak through the bot's Discord session.
type voiceGateway struct {
	session *discordgo.Session
	log     zerolog.Logger
}

var _ node.VoiceGateway = (*voiceGateway)(nil)

func (g *voiceGateway) Forward(shardID int, message json.RawMessage) error {
	join, err := parseVoiceJoin(message)
	if err != nil {
		return err
	}
	if shardID != g.session.ShardID {
		g.log.Debug().Int("shard", shardID).Int("own_shard", g.session.ShardID).Msg("gateway frame for another shard")
	}

	g.log.Debug().
		Str("guild", join.GuildID).
		Str("channel", join.ChannelID).
		Msg("forwarding voice state update")
	if err := g.session.ChannelVoiceJoinManual(join.GuildID, join.ChannelID, join.SelfMute, join.SelfDeaf); err != nil {
		return fmt.Errorf("voice join guild %s: %w", join.GuildID, err)
	}
	return nil
}

func (g *voiceGateway) Connected(int) bool {
	return g.session.DataReady
}

// voiceSessions pairs the bot's own voice session id with the voice server
// Discord assigns, per guild. Either half may arrive first.
type voiceSessions struct {
	mu       sync.Mutex
	sessions map[string]string
	servers  map[string]node.VoiceServer
}

func newVoiceSessions() *voiceSessions {
	return &voiceSessions{
		sessions: make(map[string]string),
		servers:  make(map[string]node.VoiceServer),
	}
}

// setSession records the session id. An empty channelID means the bot left
// voice and forgets the guild.
func (v *voiceSessions) setSession(guildID, channelID, sessionID string) (node.VoiceUpdate, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if channelID == "" {
		delete(v.sessions, guildID)
		delete(v.servers, guildID)
		return node.VoiceUpdate{}, false
	}
	v.sessions[guildID] = sessionID
	return v.readyLocked(guildID)
}

func (v *voiceSessions) setServer(server node.VoiceServer) (node.VoiceUpdate, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.servers[server.GuildID] = server
	return v.readyLocked(server.GuildID)
}

func (v *voiceSessions) readyLocked(guildID string) (node.VoiceUpdate, bool) {
	session, ok := v.sessions[guildID]
	if !ok || session == "" {
		return node.VoiceUpdate{}, false
	}
	server, ok := v.servers[guildID]
	if !ok || server.Endpoint == "" {
		return node.VoiceUpdate{}, false
	}
	return node.VoiceUpdate{GuildID: guildID, SessionID: session, Event: server}, true
}
