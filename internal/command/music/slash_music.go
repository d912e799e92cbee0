package music

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/lavaplay/internal/bot"
	"github.com/keshon/lavaplay/internal/command"
	"github.com/keshon/lavaplay/internal/music/node"
	"github.com/keshon/lavaplay/internal/music/track"
	"github.com/keshon/lavaplay/internal/storage"
)

// queuePreviewLimit caps how many upcoming tracks /music queue lists.
const queuePreviewLimit = 10

type MusicCommand struct {
	Bot bot.BotVoice
}

func (c *MusicCommand) Name() string        { return "music" }
func (c *MusicCommand) Description() string { return "Control music playback" }
func (c *MusicCommand) Group() string       { return "music" }
func (c *MusicCommand) Category() string    { return "🎵 Music" }

func (c *MusicCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Play a track or add it to the queue",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "input",
						Description: "Link or search query",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "skip",
				Description: "Skip to the next track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "pause",
				Description: "Pause the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "resume",
				Description: "Resume the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "queue",
				Description: "Show the current track and what comes next",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stop",
				Description: "Stop playback and clear the queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "history",
				Description: "Show recently played tracks",
			},
		},
	}
}

func (c *MusicCommand) Run(ctx context.Context, data any) error {
	slash, ok := data.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}

	s := slash.Session
	e := slash.Event

	options := e.ApplicationCommandData().Options
	if len(options) == 0 {
		return bot.RespondEmbedEphemeral(s, e, errorEmbed("Missing subcommand."))
	}

	if err := bot.RespondDeferred(s, e); err != nil {
		return fmt.Errorf("failed to defer response: %w", err)
	}

	embed := c.execute(ctx, slash.Storage, e.GuildID, slash.UserID(), options[0])
	return bot.FollowupEmbed(s, e, embed)
}

func (c *MusicCommand) execute(ctx context.Context, store *storage.Storage, guildID, userID string, sub *discordgo.ApplicationCommandInteractionDataOption) *discordgo.MessageEmbed {
	switch sub.Name {
	case "play":
		var input string
		for _, opt := range sub.Options {
			if opt.Name == "input" {
				input = opt.StringValue()
			}
		}
		return c.play(ctx, guildID, userID, input)
	case "skip":
		return c.skip(ctx, guildID)
	case "pause":
		return c.pause(ctx, guildID, true)
	case "resume":
		return c.pause(ctx, guildID, false)
	case "queue":
		return c.queue(guildID)
	case "stop":
		return c.stop(ctx, guildID)
	case "history":
		return history(store, guildID)
	default:
		return errorEmbed(fmt.Sprintf("Unknown subcommand: %s", sub.Name))
	}
}

func (c *MusicCommand) play(ctx context.Context, guildID, userID, input string) *discordgo.MessageEmbed {
	input = strings.TrimSpace(input)
	if input == "" {
		return errorEmbed("Input is required.")
	}

	voiceState, err := c.Bot.FindUserVoiceState(guildID, userID)
	if err != nil {
		return errorEmbed(fmt.Sprintf("Join a voice channel first.\n\n**Error:** %v", err))
	}

	descriptors, err := c.Bot.ResolveTracks(ctx, SearchQuery(input))
	if err != nil {
		return errorEmbed(fmt.Sprintf("Failed to resolve track.\n\n**Error:** %v", err))
	}
	if len(descriptors) == 0 {
		return errorEmbed(fmt.Sprintf("Nothing found for `%s`.", input))
	}
	// A search returns candidates; a link returns the whole playlist.
	if !isLink(input) {
		descriptors = descriptors[:1]
	}

	p, err := c.Bot.GetOrCreatePlayer(guildID)
	if err != nil {
		return errorEmbed(fmt.Sprintf("Player unavailable.\n\n**Error:** %v", err))
	}
	if err := p.Connect(ctx, voiceState.ChannelID); err != nil {
		return errorEmbed(fmt.Sprintf("Failed to join voice channel.\n\n**Error:** %v", err))
	}

	var (
		added    []track.Track
		rejected int
	)
	for _, d := range descriptors {
		t, err := p.Enqueue(ctx, d, true)
		if errors.Is(err, track.ErrMalformedDescriptor) {
			rejected++
			continue
		}
		if err != nil {
			return errorEmbed(fmt.Sprintf("Queued, but playback failed to start.\n\n**Error:** %v", err))
		}
		added = append(added, t)
	}
	if len(added) == 0 {
		return errorEmbed(fmt.Sprintf("The node returned no playable tracks, %d rejected as malformed.", rejected))
	}

	if current, ok := p.Current(); ok && len(added) == 1 && current.Handle() == added[0].Handle() {
		embed := &discordgo.MessageEmbed{
			Title:       "▶️ Now Playing",
			Description: describe(current),
			Color:       bot.EmbedColor,
		}
		if rejected > 0 {
			embed.Footer = &discordgo.MessageEmbedFooter{Text: rejectedNote(rejected)}
		}
		return embed
	}

	desc := describe(added[0])
	if len(added) > 1 {
		desc = fmt.Sprintf("%d tracks, starting with %s", len(added), desc)
	}
	return &discordgo.MessageEmbed{
		Title:       "➕ Added to Queue",
		Description: desc,
		Color:       bot.EmbedColor,
		Footer:      &discordgo.MessageEmbedFooter{Text: queueFooter(len(p.Queue()), rejected)},
	}
}

func queueFooter(waiting, rejected int) string {
	text := fmt.Sprintf("%d track(s) waiting", waiting)
	if rejected > 0 {
		text += " · " + rejectedNote(rejected)
	}
	return text
}

func rejectedNote(n int) string {
	return fmt.Sprintf("%d track(s) rejected as malformed", n)
}

func (c *MusicCommand) skip(ctx context.Context, guildID string) *discordgo.MessageEmbed {
	p, err := c.Bot.GetOrCreatePlayer(guildID)
	if err != nil {
		return errorEmbed(fmt.Sprintf("Player unavailable.\n\n**Error:** %v", err))
	}

	current, _ := p.Current()
	if err := p.Skip(ctx); err != nil {
		return playbackError(err)
	}
	return &discordgo.MessageEmbed{
		Description: "⏭️ Skipped " + describe(current),
		Color:       bot.EmbedColor,
	}
}

func (c *MusicCommand) pause(ctx context.Context, guildID string, pause bool) *discordgo.MessageEmbed {
	p, err := c.Bot.GetOrCreatePlayer(guildID)
	if err != nil {
		return errorEmbed(fmt.Sprintf("Player unavailable.\n\n**Error:** %v", err))
	}
	if err := p.Pause(ctx, pause); err != nil {
		return playbackError(err)
	}

	desc := "▶️ Resumed"
	if pause {
		desc = "⏸️ Paused"
	}
	return &discordgo.MessageEmbed{Description: desc, Color: bot.EmbedColor}
}

func (c *MusicCommand) queue(guildID string) *discordgo.MessageEmbed {
	p, err := c.Bot.GetOrCreatePlayer(guildID)
	if err != nil {
		return errorEmbed(fmt.Sprintf("Player unavailable.\n\n**Error:** %v", err))
	}

	var b strings.Builder
	if current, ok := p.Current(); ok {
		state := "▶️"
		if p.IsPaused() {
			state = "⏸️"
		}
		fmt.Fprintf(&b, "%s %s\n", state, describe(current))
	} else {
		b.WriteString("Nothing is playing.\n")
	}

	upcoming := p.Queue()
	for i, t := range upcoming {
		if i == queuePreviewLimit {
			fmt.Fprintf(&b, "…and %d more", len(upcoming)-queuePreviewLimit)
			break
		}
		fmt.Fprintf(&b, "`%d.` %s\n", i+1, describe(t))
	}

	return &discordgo.MessageEmbed{
		Title:       "🎶 Queue",
		Description: strings.TrimSpace(b.String()),
		Color:       bot.EmbedColor,
	}
}

func (c *MusicCommand) stop(ctx context.Context, guildID string) *discordgo.MessageEmbed {
	p, err := c.Bot.GetOrCreatePlayer(guildID)
	if err != nil {
		return errorEmbed(fmt.Sprintf("Player unavailable.\n\n**Error:** %v", err))
	}

	cleared := p.ClearQueue()
	if err := p.Skip(ctx); err != nil && !errors.Is(err, node.ErrNoTrackPlaying) {
		return playbackError(err)
	}
	return &discordgo.MessageEmbed{
		Description: fmt.Sprintf("⏹️ Playback stopped. %d queued track(s) cleared.", cleared),
		Color:       bot.EmbedColor,
	}
}

func history(store *storage.Storage, guildID string) *discordgo.MessageEmbed {
	if store == nil {
		return errorEmbed("History is not available.")
	}
	records, err := store.FetchTrackHistory(guildID)
	if err != nil {
		return errorEmbed(fmt.Sprintf("Failed to load history.\n\n**Error:** %v", err))
	}
	if len(records) == 0 {
		return &discordgo.MessageEmbed{Description: "Nothing has been played yet.", Color: bot.EmbedColor}
	}

	var b strings.Builder
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		title := r.Title
		if r.Author != "" {
			title = r.Author + " - " + r.Title
		}
		if r.URI != "" {
			title = fmt.Sprintf("[%s](%s)", title, r.URI)
		}
		fmt.Fprintf(&b, "<t:%d:R> %s\n", r.PlayedAt.Unix(), title)
	}
	return &discordgo.MessageEmbed{
		Title:       "🕘 Recently Played",
		Description: strings.TrimSpace(b.String()),
		Color:       bot.EmbedColor,
	}
}

var sourcePrefix = regexp.MustCompile(`^[a-z]+search:`)

// SearchQuery turns user input into a node identifier: links and inputs
// that already start with a source prefix such as "scsearch:" pass
// through, anything else becomes a YouTube search.
func SearchQuery(input string) string {
	input = strings.TrimSpace(input)
	if isLink(input) || sourcePrefix.MatchString(input) {
		return input
	}
	return "ytsearch:" + input
}

func isLink(input string) bool {
	u, err := url.Parse(input)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func describe(t track.Track) string {
	if t.Title() == "" && t.URI() == "" {
		return "Unknown track"
	}
	label := t.String()
	if t.URI() != "" {
		label = fmt.Sprintf("[%s](%s)", label, t.URI())
	}
	if !t.IsStream() && t.Length() > 0 {
		label += fmt.Sprintf(" `%s`", t.Duration())
	}
	return label
}

func playbackError(err error) *discordgo.MessageEmbed {
	if errors.Is(err, node.ErrNoTrackPlaying) {
		return errorEmbed("Nothing is playing.")
	}
	if errors.Is(err, node.ErrNotConnected) {
		return errorEmbed("The audio node is not connected.")
	}
	return errorEmbed(fmt.Sprintf("Playback error.\n\n**Error:** %v", err))
}

func errorEmbed(desc string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🎵 Error",
		Description: desc,
		Color:       bot.EmbedColor,
	}
}
