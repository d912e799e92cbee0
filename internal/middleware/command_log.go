package middleware

import (
	"context"

	"github.com/keshon/lavaplay/internal/bot"
	"github.com/keshon/lavaplay/internal/command"
	"github.com/keshon/lavaplay/pkg/cmd"
)

// WithCommandLogger logs every slash invocation and records it in the
// guild's command history once the command has run.
func WithCommandLogger() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			err := c.Run(ctx, inv)

			v, ok := inv.Data.(*command.SlashInteractionContext)
			if !ok {
				return err
			}

			e := v.Event
			userID, username := "unknown", "Unknown"
			if u := command.InteractionUser(e); u != nil {
				userID, username = u.ID, u.Username
			}

			event := v.Log.Info()
			if err != nil {
				event = v.Log.Warn().Err(err)
			}
			event.
				Str("command", c.Name()).
				Str("guild", e.GuildID).
				Str("user", username).
				Msg("command executed")

			if v.Storage != nil && v.Session != nil && e.GuildID != "" {
				if logErr := bot.LogCommand(v.Session, v.Storage, v.Log, e.GuildID, e.ChannelID, userID, username, c.Name()); logErr != nil {
					v.Log.Warn().Err(logErr).Str("command", c.Name()).Msg("failed to record command")
				}
			}
			return err
		})
	}
}
