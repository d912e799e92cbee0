package bot

import (
	"github.com/bwmarrin/discordgo"
	"github.com/keshon/lavaplay/internal/storage"
	"github.com/rs/zerolog"
)

// LogCommand records a command execution to storage, resolving channel and
// guild names from state and falling back to the REST API.
func LogCommand(s *discordgo.Session, store *storage.Storage, log zerolog.Logger, guildID, channelID, userID, username, commandName string) error {
	channelName := ""
	channel, err := s.State.Channel(channelID)
	if err != nil {
		channel, err = s.Channel(channelID)
	}
	if err != nil {
		log.Warn().Err(err).Str("channel", channelID).Msg("failed to fetch channel")
	} else {
		channelName = channel.Name
	}

	guildName := ""
	guild, err := s.State.Guild(guildID)
	if err != nil {
		guild, err = s.Guild(guildID)
	}
	if err != nil {
		log.Warn().Err(err).Str("guild", guildID).Msg("failed to fetch guild")
	} else {
		guildName = guild.Name
	}

	return store.SetCommand(guildID, channelID, channelName, guildName, userID, username, commandName)
}
