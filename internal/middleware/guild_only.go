package middleware

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/lavaplay/internal/bot"
	"github.com/keshon/lavaplay/internal/command"
	"github.com/keshon/lavaplay/pkg/cmd"
)

// WithGuildOnly rejects slash invocations made outside a guild.
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			if v, ok := inv.Data.(*command.SlashInteractionContext); ok && v.Event.GuildID == "" {
				if v.Session == nil {
					return nil
				}
				return bot.RespondEmbedEphemeral(v.Session, v.Event, &discordgo.MessageEmbed{
					Description: "This command only works in a server.",
					Color:       bot.EmbedColor,
				})
			}
			return c.Run(ctx, inv)
		})
	}
}
