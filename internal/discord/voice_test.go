package discord

import (
	"encoding/json"
	"testing"

	"github.com/keshon/lavaplay/internal/music/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVoiceJoin(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    voiceJoin
		wantErr string
	}{
		{
			name:    "object",
			message: `{"op":4,"d":{"guild_id":"g1","channel_id":"c1","self_mute":false,"self_deaf":true}}`,
			want:    voiceJoin{GuildID: "g1", ChannelID: "c1", SelfDeaf: true},
		},
		{
			name:    "string",
			message: `"{\"op\":4,\"d\":{\"guild_id\":\"g1\",\"channel_id\":\"c1\",\"self_mute\":true,\"self_deaf\":false}}"`,
			want:    voiceJoin{GuildID: "g1", ChannelID: "c1", SelfMute: true},
		},
		{
			name:    "leave",
			message: `{"op":4,"d":{"guild_id":"g1","channel_id":null,"self_mute":false,"self_deaf":false}}`,
			want:    voiceJoin{GuildID: "g1"},
		},
		{name: "other op", message: `{"op":3,"d":{}}`, wantErr: "unsupported gateway op 3"},
		{name: "no guild", message: `{"op":4,"d":{"channel_id":"c1"}}`, wantErr: "without guild_id"},
		{name: "garbage", message: `[1,2]`, wantErr: "decode gateway frame"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseVoiceJoin(json.RawMessage(tc.message))
			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestVoiceSessionsPairInEitherOrder(t *testing.T) {
	t.Parallel()

	v := newVoiceSessions()
	server := node.VoiceServer{Token: "tok", GuildID: "g1", Endpoint: "eu.discord.media"}

	_, ready := v.setSession("g1", "c1", "sess")
	assert.False(t, ready)
	u, ready := v.setServer(server)
	require.True(t, ready)
	assert.Equal(t, node.VoiceUpdate{GuildID: "g1", SessionID: "sess", Event: server}, u)

	other := node.VoiceServer{Token: "tok2", GuildID: "g2", Endpoint: "us.discord.media"}
	_, ready = v.setServer(other)
	assert.False(t, ready)
	u, ready = v.setSession("g2", "c9", "sess2")
	require.True(t, ready)
	assert.Equal(t, "sess2", u.SessionID)
	assert.Equal(t, other, u.Event)
}

func TestVoiceSessionsForgetOnLeave(t *testing.T) {
	t.Parallel()

	v := newVoiceSessions()
	v.setSession("g1", "c1", "sess")
	v.setServer(node.VoiceServer{Token: "tok", GuildID: "g1", Endpoint: "e"})

	_, ready := v.setSession("g1", "", "sess")
	assert.False(t, ready)

	_, ready = v.setServer(node.VoiceServer{Token: "tok", GuildID: "g1", Endpoint: "e"})
	assert.False(t, ready)
}

func TestVoiceSessionsWaitForEndpoint(t *testing.T) {
	t.Parallel()

	v := newVoiceSessions()
	v.setSession("g1", "c1", "sess")
	_, ready := v.setServer(node.VoiceServer{Token: "tok", GuildID: "g1"})
	assert.False(t, ready)
}
