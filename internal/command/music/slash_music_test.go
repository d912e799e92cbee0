package music

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/lavaplay/internal/bot"
	"github.com/keshon/lavaplay/internal/music/node"
	"github.com/keshon/lavaplay/internal/music/track"
	"github.com/keshon/lavaplay/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func descriptor(handle, title string) track.Descriptor {
	return track.Descriptor{
		Track: ptr(handle),
		Info: &track.Info{
			Identifier: ptr(handle),
			IsSeekable: ptr(true),
			Author:     ptr("Band"),
			Length:     ptr(int64(180000)),
			IsStream:   ptr(false),
			Title:      ptr(title),
			URI:        ptr("https://example.com/" + handle),
		},
	}
}

type fakePlayer struct {
	channelID string
	queue     []track.Track
	current   *track.Track
	paused    bool
	sendErr   error
}

func (p *fakePlayer) Connect(_ context.Context, channelID string) error {
	if p.sendErr != nil {
		return p.sendErr
	}
	p.channelID = channelID
	return nil
}

func (p *fakePlayer) Enqueue(_ context.Context, d track.Descriptor, playNow bool) (track.Track, error) {
	t, err := track.New(d)
	if err != nil {
		return track.Track{}, err
	}
	p.queue = append(p.queue, t)
	if playNow && p.current == nil {
		head := p.queue[0]
		p.queue = p.queue[1:]
		p.current = &head
	}
	return t, nil
}

func (p *fakePlayer) Skip(context.Context) error {
	if p.current == nil {
		return node.ErrNoTrackPlaying
	}
	return p.sendErr
}

func (p *fakePlayer) Pause(_ context.Context, pause bool) error {
	if p.current == nil {
		return node.ErrNoTrackPlaying
	}
	p.paused = pause
	return nil
}

func (p *fakePlayer) ClearQueue() int {
	n := len(p.queue)
	p.queue = nil
	return n
}

func (p *fakePlayer) Current() (track.Track, bool) {
	if p.current == nil {
		return track.Track{}, false
	}
	return *p.current, true
}

func (p *fakePlayer) Queue() []track.Track { return p.queue }
func (p *fakePlayer) IsPaused() bool       { return p.paused }
func (p *fakePlayer) ChannelID() string    { return p.channelID }

type fakeBot struct {
	player     *fakePlayer
	voice      map[string]string
	results    []track.Descriptor
	resolveErr error
	queries    []string
}

func newFakeBot() *fakeBot {
	return &fakeBot{
		player: &fakePlayer{},
		voice:  map[string]string{"u1": "vc1"},
	}
}

func (b *fakeBot) GetOrCreatePlayer(string) (bot.Player, error) { return b.player, nil }

func (b *fakeBot) FindUserVoiceState(_, userID string) (*bot.VoiceState, error) {
	ch, ok := b.voice[userID]
	if !ok {
		return nil, fmt.Errorf("user not in any voice channel")
	}
	return &bot.VoiceState{ChannelID: ch, UserID: userID}, nil
}

func (b *fakeBot) ResolveTracks(_ context.Context, query string) ([]track.Descriptor, error) {
	b.queries = append(b.queries, query)
	return b.results, b.resolveErr
}

func playOption(input string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name: "play",
		Type: discordgo.ApplicationCommandOptionSubCommand,
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "input", Type: discordgo.ApplicationCommandOptionString, Value: input},
		},
	}
}

func sub(name string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionSubCommand}
}

func TestPlayStartsFirstSearchResult(t *testing.T) {
	b := newFakeBot()
	b.results = []track.Descriptor{descriptor("a", "Song A"), descriptor("b", "Song B")}
	c := &MusicCommand{Bot: b}

	embed := c.execute(context.Background(), nil, "g1", "u1", playOption("song a"))

	assert.Equal(t, "▶️ Now Playing", embed.Title)
	assert.Contains(t, embed.Description, "Band - Song A")
	assert.Equal(t, []string{"ytsearch:song a"}, b.queries)
	assert.Equal(t, "vc1", b.player.channelID)
	assert.Empty(t, b.player.queue)
}

func TestPlayLinkQueuesWholePlaylist(t *testing.T) {
	b := newFakeBot()
	b.results = []track.Descriptor{descriptor("a", "Song A"), descriptor("b", "Song B"), descriptor("c", "Song C")}
	c := &MusicCommand{Bot: b}

	embed := c.execute(context.Background(), nil, "g1", "u1", playOption("https://example.com/list"))

	assert.Equal(t, "➕ Added to Queue", embed.Title)
	assert.Contains(t, embed.Description, "3 tracks")
	assert.Equal(t, []string{"https://example.com/list"}, b.queries)
	assert.Len(t, b.player.queue, 2)
}

func TestPlayReportsRejectedDescriptors(t *testing.T) {
	b := newFakeBot()
	b.results = []track.Descriptor{
		descriptor("a", "Song A"),
		{Track: ptr("broken"), Info: &track.Info{Title: ptr("no metadata")}},
		descriptor("c", "Song C"),
	}
	c := &MusicCommand{Bot: b}

	embed := c.execute(context.Background(), nil, "g1", "u1", playOption("https://example.com/list"))

	assert.Equal(t, "➕ Added to Queue", embed.Title)
	assert.Contains(t, embed.Description, "2 tracks")
	require.NotNil(t, embed.Footer)
	assert.Equal(t, "1 track(s) waiting · 1 track(s) rejected as malformed", embed.Footer.Text)
	assert.Len(t, b.player.queue, 1)
}

func TestPlayWhileBusyQueues(t *testing.T) {
	b := newFakeBot()
	c := &MusicCommand{Bot: b}

	b.results = []track.Descriptor{descriptor("a", "Song A")}
	c.execute(context.Background(), nil, "g1", "u1", playOption("a"))

	b.results = []track.Descriptor{descriptor("b", "Song B")}
	embed := c.execute(context.Background(), nil, "g1", "u1", playOption("b"))

	assert.Equal(t, "➕ Added to Queue", embed.Title)
	assert.Equal(t, "1 track(s) waiting", embed.Footer.Text)
}

func TestPlayErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		user    string
		results []track.Descriptor
		err     error
		want    string
	}{
		{name: "empty input", input: " ", user: "u1", want: "Input is required"},
		{name: "not in voice", input: "x", user: "u2", want: "Join a voice channel"},
		{name: "resolve failure", input: "x", user: "u1", err: node.ErrResolutionFailed, want: "Failed to resolve"},
		{name: "no results", input: "x", user: "u1", want: "Nothing found"},
		{
			name:    "malformed only",
			input:   "x",
			user:    "u1",
			results: []track.Descriptor{{Track: ptr("a")}},
			want:    "no playable tracks, 1 rejected as malformed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := newFakeBot()
			b.results = tc.results
			b.resolveErr = tc.err
			c := &MusicCommand{Bot: b}

			embed := c.execute(context.Background(), nil, "g1", tc.user, playOption(tc.input))
			assert.Equal(t, "🎵 Error", embed.Title)
			assert.Contains(t, embed.Description, tc.want)
		})
	}
}

func TestPlayConnectFailure(t *testing.T) {
	b := newFakeBot()
	b.results = []track.Descriptor{descriptor("a", "Song A")}
	b.player.sendErr = node.ErrNotConnected
	c := &MusicCommand{Bot: b}

	embed := c.execute(context.Background(), nil, "g1", "u1", playOption("a"))
	assert.Contains(t, embed.Description, "Failed to join voice channel")
	assert.Empty(t, b.player.queue)
}

func TestSkipPauseResumeStop(t *testing.T) {
	b := newFakeBot()
	c := &MusicCommand{Bot: b}
	ctx := context.Background()

	assert.Contains(t, c.execute(ctx, nil, "g1", "u1", sub("skip")).Description, "Nothing is playing")
	assert.Contains(t, c.execute(ctx, nil, "g1", "u1", sub("pause")).Description, "Nothing is playing")

	b.results = []track.Descriptor{descriptor("a", "Song A"), descriptor("b", "Song B")}
	c.execute(ctx, nil, "g1", "u1", playOption("https://example.com/list"))

	assert.Contains(t, c.execute(ctx, nil, "g1", "u1", sub("pause")).Description, "Paused")
	assert.True(t, b.player.paused)
	assert.Contains(t, c.execute(ctx, nil, "g1", "u1", sub("queue")).Description, "⏸️")
	assert.Contains(t, c.execute(ctx, nil, "g1", "u1", sub("resume")).Description, "Resumed")
	assert.False(t, b.player.paused)

	assert.Contains(t, c.execute(ctx, nil, "g1", "u1", sub("skip")).Description, "Skipped")

	stop := c.execute(ctx, nil, "g1", "u1", sub("stop"))
	assert.Contains(t, stop.Description, "1 queued track(s) cleared")
	assert.Empty(t, b.player.queue)
}

func TestSkipTransportError(t *testing.T) {
	b := newFakeBot()
	b.player.current = &track.Track{}
	b.player.sendErr = fmt.Errorf("stop guild g1: %w", node.ErrNotConnected)
	c := &MusicCommand{Bot: b}

	assert.Contains(t, c.execute(context.Background(), nil, "g1", "u1", sub("skip")).Description, "not connected")
}

func TestQueueListsUpcoming(t *testing.T) {
	b := newFakeBot()
	c := &MusicCommand{Bot: b}

	embed := c.execute(context.Background(), nil, "g1", "u1", sub("queue"))
	assert.Equal(t, "Nothing is playing.", embed.Description)

	for i := range queuePreviewLimit + 3 {
		b.results = []track.Descriptor{descriptor(fmt.Sprint(i), fmt.Sprintf("Song %d", i))}
		c.execute(context.Background(), nil, "g1", "u1", playOption(fmt.Sprint(i)))
	}

	embed = c.execute(context.Background(), nil, "g1", "u1", sub("queue"))
	assert.Contains(t, embed.Description, "▶️ [Band - Song 0]")
	assert.Contains(t, embed.Description, "`1.` [Band - Song 1]")
	assert.Contains(t, embed.Description, "…and 2 more")
	assert.NotContains(t, embed.Description, "Song 12")
}

func TestHistory(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "datastore.json"))
	require.NoError(t, err)
	defer store.Close()

	c := &MusicCommand{Bot: newFakeBot()}
	ctx := context.Background()

	assert.Contains(t, c.execute(ctx, nil, "g1", "u1", sub("history")).Description, "not available")
	assert.Contains(t, c.execute(ctx, store, "g1", "u1", sub("history")).Description, "Nothing has been played")

	require.NoError(t, store.AppendTrackToHistory("g1", storage.TrackHistoryRecord{Title: "Old", Author: "Band"}))
	require.NoError(t, store.AppendTrackToHistory("g1", storage.TrackHistoryRecord{Title: "New", URI: "https://example.com/new"}))

	embed := c.execute(ctx, store, "g1", "u1", sub("history"))
	assert.Equal(t, "🕘 Recently Played", embed.Title)
	newest := strings.Index(embed.Description, "[New](https://example.com/new)")
	oldest := strings.Index(embed.Description, "Band - Old")
	require.NotEqual(t, -1, newest)
	require.NotEqual(t, -1, oldest)
	assert.Less(t, newest, oldest)
}

func TestUnknownSubcommand(t *testing.T) {
	c := &MusicCommand{Bot: newFakeBot()}
	assert.Contains(t, c.execute(context.Background(), nil, "g1", "u1", sub("dance")).Description, "Unknown subcommand")
}

func TestSearchQuery(t *testing.T) {
	tests := map[string]string{
		"never gonna":                  "ytsearch:never gonna",
		"  padded ":                    "ytsearch:padded",
		"https://youtu.be/dQw4w9WgXcQ": "https://youtu.be/dQw4w9WgXcQ",
		"scsearch:lofi":                "scsearch:lofi",
		"lofi search: chill":           "ytsearch:lofi search: chill",
		"ftp://example.com/a.mp3":      "ytsearch:ftp://example.com/a.mp3",
	}
	for in, want := range tests {
		assert.Equal(t, want, SearchQuery(in), in)
	}
}

func TestSlashDefinition(t *testing.T) {
	def := (&MusicCommand{}).SlashDefinition()
	names := make([]string, 0, len(def.Options))
	for _, o := range def.Options {
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{"play", "skip", "pause", "resume", "queue", "stop", "history"}, names)
}
