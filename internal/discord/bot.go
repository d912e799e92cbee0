package discord

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/lavaplay/internal/bot"
	"github.com/keshon/lavaplay/internal/command"
	"github.com/keshon/lavaplay/internal/command/music"
	"github.com/keshon/lavaplay/internal/config"
	"github.com/keshon/lavaplay/internal/middleware"
	"github.com/keshon/lavaplay/internal/music/node"
	"github.com/keshon/lavaplay/internal/music/resolver"
	"github.com/keshon/lavaplay/internal/storage"
	"github.com/keshon/lavaplay/pkg/cmd"
	"github.com/keshon/lavaplay/pkg/util"
	"github.com/rs/zerolog"
)

const (
	interactionTimeout = 30 * time.Second
	registerWorkers    = 4
)

// Bot is the Discord side of the player: it owns the session, the node
// channel and one player per guild.
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	storage  *storage.Storage
	resolver node.Resolver
	commands *cmd.Registry
	voice    *voiceSessions
	log      zerolog.Logger

	ctx        context.Context
	nodeStart  sync.Once
	registered sync.Map

	mu      sync.Mutex
	node    *node.Client
	players map[string]*node.Player
}

func NewBot(cfg *config.Config, store *storage.Storage, log zerolog.Logger) *Bot {
	log = log.With().Str("component", "discord").Logger()
	return &Bot{
		cfg:      cfg,
		storage:  store,
		resolver: resolver.New(cfg.Resolver(), log),
		commands: cmd.NewRegistry(),
		voice:    newVoiceSessions(),
		log:      log,
		players:  make(map[string]*node.Player),
	}
}

// Run opens the Discord session and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	b.dg = dg
	b.ctx = ctx

	if err := command.RegisterCommand(b.commands,
		&music.MusicCommand{Bot: b},
		middleware.WithGuildOnly(),
		middleware.WithCommandLogger(),
	); err != nil {
		return err
	}

	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onInteractionCreate)
	dg.AddHandler(b.onVoiceStateUpdate)
	dg.AddHandler(b.onVoiceServerUpdate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, cleaning up")

	if client := b.currentNode(); client != nil {
		if err := client.Close(); err != nil {
			b.log.Warn().Err(err).Msg("failed to close node channel")
		}
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	var guildIDs []string
	for _, g := range r.Guilds {
		if !b.leaveIfBlacklisted(s, g.ID) {
			guildIDs = append(guildIDs, g.ID)
		}
	}

	if b.cfg.InitSlashCommands {
		go b.registerAllCommands(guildIDs)
	} else {
		b.log.Info().Msg("registering slash commands skipped")
	}

	b.nodeStart.Do(func() {
		go b.superviseNode(b.ctx, r.User.ID)
	})

	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord bot is running")
}

func (b *Bot) registerAllCommands(guildIDs []string) {
	err := util.Parallel(b.ctx, guildIDs, registerWorkers, func(_ context.Context, guildID string) error {
		if err := b.registerCommands(guildID); err != nil {
			b.log.Error().Err(err).Str("guild", guildID).Msg("failed to register slash commands")
		}
		return nil
	})
	if err != nil {
		b.log.Warn().Err(err).Msg("slash command registration interrupted")
	}
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.leaveIfBlacklisted(s, g.ID) || !b.cfg.InitSlashCommands {
		return
	}
	if err := b.registerCommands(g.ID); err != nil {
		b.log.Error().Err(err).Str("guild", g.ID).Msg("failed to register slash commands")
	}
}

func (b *Bot) leaveIfBlacklisted(s *discordgo.Session, guildID string) bool {
	if !slices.Contains(b.cfg.DiscordGuildBlacklist, guildID) {
		return false
	}
	b.log.Info().Str("guild", guildID).Msg("leaving blacklisted guild")
	if err := s.GuildLeave(guildID); err != nil {
		b.log.Error().Err(err).Str("guild", guildID).Msg("failed to leave guild")
	}
	return true
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		b.log.Debug().Int("type", int(i.Type)).Msg("ignoring interaction")
		return
	}

	data := i.ApplicationCommandData()
	c, ok := b.commands.Get(data.Name)
	if !ok {
		b.log.Warn().Str("command", data.Name).Msg("unknown command")
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, interactionTimeout)
	defer cancel()

	slash := &command.SlashInteractionContext{
		Session: s,
		Event:   i,
		Storage: b.storage,
		Log:     b.log,
	}
	if err := c.Run(ctx, &cmd.Invocation{Data: slash}); err != nil {
		b.log.Error().Err(err).Str("command", data.Name).Msg("error running slash command")
		embed := &discordgo.MessageEmbed{Description: fmt.Sprintf("Error running command: %v", err)}
		reportCommandError(b.log.With().Str("command", data.Name).Logger(), embed,
			func(e *discordgo.MessageEmbed) error { return bot.RespondEmbedEphemeral(s, i, e) },
			func(e *discordgo.MessageEmbed) error { return bot.FollowupEmbed(s, i, e) },
		)
	}
}

// reportCommandError shows embed to the user, falling back to a followup
// when the interaction was already acknowledged.
func reportCommandError(log zerolog.Logger, embed *discordgo.MessageEmbed, respond, followup func(*discordgo.MessageEmbed) error) {
	respondErr := respond(embed)
	if respondErr == nil {
		return
	}
	if err := followup(embed); err != nil {
		log.Error().Err(err).AnErr("respond_error", respondErr).Msg("failed to report command error")
	}
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if s.State.User == nil || v.UserID != s.State.User.ID {
		return
	}

	update, ready := b.voice.setSession(v.GuildID, v.ChannelID, v.SessionID)
	if v.ChannelID == "" {
		b.log.Info().Str("guild", v.GuildID).Msg("left voice, dropping player")
		b.dropPlayer(v.GuildID)
		return
	}
	if ready {
		b.dispatchVoiceUpdate(update)
	}
}

func (b *Bot) onVoiceServerUpdate(_ *discordgo.Session, v *discordgo.VoiceServerUpdate) {
	update, ready := b.voice.setServer(node.VoiceServer{
		Token:    v.Token,
		GuildID:  v.GuildID,
		Endpoint: v.Endpoint,
	})
	if ready {
		b.dispatchVoiceUpdate(update)
	}
}

func (b *Bot) dispatchVoiceUpdate(u node.VoiceUpdate) {
	client := b.currentNode()
	if client == nil {
		b.log.Warn().Str("guild", u.GuildID).Msg("voice update while node is down")
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, 10*time.Second)
	defer cancel()
	if err := client.DispatchVoiceUpdate(ctx, u); err != nil {
		b.log.Error().Err(err).Str("guild", u.GuildID).Msg("failed to forward voice update")
	}
}
