package node

import "encoding/json"

// Wire discriminants carried in the "op" field.
const (
	opConnect        = "connect"
	opPlay           = "play"
	opStop           = "stop"
	opPause          = "pause"
	opVoiceUpdate    = "voiceUpdate"
	opValidationReq  = "validationReq"
	opValidationRes  = "validationRes"
	opIsConnectedReq = "isConnectedReq"
	opIsConnectedRes = "isConnectedRes"
	opSendWS         = "sendWS"
	opEvent          = "event"
	opPlayerUpdate   = "playerUpdate"
)

// Event types carried in the "type" field of op=event frames.
const (
	eventTrackEnd       = "TrackEndEvent"
	eventTrackException = "TrackExceptionEvent"
	eventTrackStuck     = "TrackStuckEvent"
)

type connectMessage struct {
	Op        string `json:"op"`
	GuildID   string `json:"guildId"`
	ChannelID string `json:"channelId"`
}

type playMessage struct {
	Op      string `json:"op"`
	GuildID string `json:"guildId"`
	Track   string `json:"track"`
}

type stopMessage struct {
	Op      string `json:"op"`
	GuildID string `json:"guildId"`
}

type pauseMessage struct {
	Op      string `json:"op"`
	GuildID string `json:"guildId"`
	Pause   bool   `json:"pause"`
}

type validationResponse struct {
	Op        string `json:"op"`
	GuildID   string `json:"guildId"`
	ChannelID string `json:"channelId"`
	Valid     bool   `json:"valid"`
}

type isConnectedResponse struct {
	Op        string `json:"op"`
	ShardID   int    `json:"shardId"`
	Connected bool   `json:"connected"`
}

// VoiceServer is the VOICE_SERVER_UPDATE payload Discord hands to the bot.
type VoiceServer struct {
	Token    string `json:"token"`
	GuildID  string `json:"guild_id"`
	Endpoint string `json:"endpoint"`
}

// VoiceUpdate pairs the bot's voice session id with the voice server the
// node has to connect to.
type VoiceUpdate struct {
	GuildID   string
	SessionID string
	Event     VoiceServer
}

type voiceUpdateMessage struct {
	Op        string      `json:"op"`
	GuildID   string      `json:"guildId"`
	SessionID string      `json:"sessionId"`
	Event     VoiceServer `json:"event"`
}

// inboundMessage is the union of every field the node may send.
type inboundMessage struct {
	Op          string          `json:"op"`
	Type        string          `json:"type"`
	GuildID     string          `json:"guildId"`
	ChannelID   string          `json:"channelId"`
	ShardID     int             `json:"shardId"`
	Message     json.RawMessage `json:"message"`
	Track       string          `json:"track"`
	Reason      string          `json:"reason"`
	Error       string          `json:"error"`
	ThresholdMs int64           `json:"thresholdMs"`
	State       *playerState    `json:"state"`
}

type playerState struct {
	Time     int64 `json:"time"`
	Position int64 `json:"position"`
}
