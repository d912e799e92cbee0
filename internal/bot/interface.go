package bot

import (
	"context"

	"github.com/keshon/lavaplay/internal/music/track"
)

// Player is the per-guild playback surface commands drive. *node.Player
// satisfies it.
type Player interface {
	Connect(ctx context.Context, channelID string) error
	Enqueue(ctx context.Context, d track.Descriptor, playNow bool) (track.Track, error)
	Skip(ctx context.Context) error
	Pause(ctx context.Context, pause bool) error
	ClearQueue() int
	Current() (track.Track, bool)
	Queue() []track.Track
	IsPaused() bool
	ChannelID() string
}

// BotVoice is what the Discord bot offers music commands.
type BotVoice interface {
	GetOrCreatePlayer(guildID string) (Player, error)
	FindUserVoiceState(guildID, userID string) (*VoiceState, error)
	ResolveTracks(ctx context.Context, query string) ([]track.Descriptor, error)
}

// VoiceState holds minimal voice channel state for a user.
type VoiceState struct {
	ChannelID string
	UserID    string
}
