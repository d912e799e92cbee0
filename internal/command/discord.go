package command

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/lavaplay/internal/storage"
	"github.com/keshon/lavaplay/pkg/cmd"
	"github.com/rs/zerolog"
)

// SlashInteractionContext is what the bot passes as Invocation.Data for a
// chat command.
type SlashInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Storage *storage.Storage
	Log     zerolog.Logger
}

// UserID returns the invoking user, in a guild or a DM.
func (c *SlashInteractionContext) UserID() string {
	if u := InteractionUser(c.Event); u != nil {
		return u.ID
	}
	return ""
}

// InteractionUser returns the user behind an interaction, or nil.
func InteractionUser(e *discordgo.InteractionCreate) *discordgo.User {
	if e.Member != nil && e.Member.User != nil {
		return e.Member.User
	}
	return e.User
}

type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// DiscordMeta is exposed by the Discord adapter so middleware can read
// Group and Category without depending on the concrete command type.
type DiscordMeta interface {
	Group() string
	Category() string
}

// DiscordCommand is what individual Discord commands implement. data is
// one of the interaction contexts above.
type DiscordCommand interface {
	Name() string
	Description() string
	Group() string
	Category() string
	Run(ctx context.Context, data any) error
}

// DiscordAdapter lets a DiscordCommand live in a cmd.Registry.
type DiscordAdapter struct {
	Cmd DiscordCommand
}

func (a *DiscordAdapter) Name() string        { return a.Cmd.Name() }
func (a *DiscordAdapter) Description() string { return a.Cmd.Description() }
func (a *DiscordAdapter) Group() string       { return a.Cmd.Group() }
func (a *DiscordAdapter) Category() string    { return a.Cmd.Category() }

func (a *DiscordAdapter) Run(ctx context.Context, inv *cmd.Invocation) error {
	return a.Cmd.Run(ctx, inv.Data)
}

func (a *DiscordAdapter) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := a.Cmd.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

// RegisterCommand adds a Discord command to r behind mws.
func RegisterCommand(r *cmd.Registry, discordCmd DiscordCommand, mws ...cmd.Middleware) error {
	c := cmd.Apply(&DiscordAdapter{Cmd: discordCmd}, mws...)
	if err := r.Register(c); err != nil {
		return fmt.Errorf("register %s: %w", discordCmd.Name(), err)
	}
	return nil
}

// Definition returns the slash definition behind any middleware wrapping,
// or nil when c is not a slash command.
func Definition(c cmd.Command) *discordgo.ApplicationCommand {
	sp, ok := cmd.Root(c).(SlashProvider)
	if !ok {
		return nil
	}
	def := sp.SlashDefinition()
	if def != nil && def.Type == 0 {
		def.Type = discordgo.ChatApplicationCommand
	}
	return def
}
