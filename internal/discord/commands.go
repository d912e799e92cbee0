package discord

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/lavaplay/internal/command"
	"github.com/rs/zerolog"
)

// registerCommands syncs the guild's slash commands with the registry:
// obsolete ones are deleted, and only definitions whose hash changed since
// the last sync are sent again. Each guild is synced once per process;
// Ready and GuildCreate both report the same guilds at startup.
func (b *Bot) registerCommands(guildID string) error {
	if _, done := b.registered.LoadOrStore(guildID, struct{}{}); done {
		return nil
	}
	if err := b.syncCommands(guildID); err != nil {
		b.registered.Delete(guildID)
		return err
	}
	return nil
}

func (b *Bot) syncCommands(guildID string) error {
	appID, err := b.appID()
	if err != nil {
		return err
	}

	var defs []*discordgo.ApplicationCommand
	for _, c := range b.commands.GetAll() {
		if def := command.Definition(c); def != nil {
			defs = append(defs, def)
		}
	}

	cache := b.commandCache(guildID)
	hashes := cache.load()

	remote, err := b.dg.ApplicationCommands(appID, guildID)
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}
	for _, rc := range remote {
		if slices.ContainsFunc(defs, func(d *discordgo.ApplicationCommand) bool { return d.Name == rc.Name }) {
			continue
		}
		b.log.Info().Str("guild", guildID).Str("command", rc.Name).Msg("deleting obsolete command")
		if err := b.dg.ApplicationCommandDelete(appID, guildID, rc.ID); err != nil {
			b.log.Error().Err(err).Str("guild", guildID).Str("command", rc.Name).Msg("failed to delete command")
			continue
		}
		delete(hashes, rc.Name)
	}

	for _, def := range changedCommands(defs, hashes, remote) {
		if _, err := b.dg.ApplicationCommandCreate(appID, guildID, def); err != nil {
			b.log.Error().Err(err).Str("guild", guildID).Str("command", def.Name).Msg("failed to register command")
			continue
		}
		hashes[def.Name] = hashCommand(def)
		b.log.Info().Str("guild", guildID).Str("command", def.Name).Msg("command registered")
	}

	return cache.save(hashes)
}

// changedCommands returns the definitions that are missing remotely or
// whose hash differs from the cached one.
func changedCommands(defs []*discordgo.ApplicationCommand, hashes map[string]string, remote []*discordgo.ApplicationCommand) []*discordgo.ApplicationCommand {
	var changed []*discordgo.ApplicationCommand
	for _, def := range defs {
		registered := slices.ContainsFunc(remote, func(rc *discordgo.ApplicationCommand) bool { return rc.Name == def.Name })
		if !registered || hashes[def.Name] != hashCommand(def) {
			changed = append(changed, def)
		}
	}
	return changed
}

func (b *Bot) appID() (string, error) {
	if b.dg.State.User != nil && b.dg.State.User.ID != "" {
		return b.dg.State.User.ID, nil
	}
	u, err := b.dg.User("@me")
	if err != nil {
		return "", fmt.Errorf("failed to fetch bot user: %w", err)
	}
	return u.ID, nil
}

// commandCache persists command hashes per guild next to the datastore.
type commandCache struct {
	path string
	log  zerolog.Logger
}

func (b *Bot) commandCache(guildID string) commandCache {
	dir := filepath.Join(filepath.Dir(b.cfg.StoragePath), "commands")
	return commandCache{path: filepath.Join(dir, guildID+".json"), log: b.log}
}

// load returns the cached hashes. A missing or unreadable cache yields an
// empty map, which re-sends every command.
func (c commandCache) load() map[string]string {
	out := make(map[string]string)
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return out
	}
	if err != nil {
		c.log.Warn().Err(err).Str("path", c.path).Msg("failed to read command cache, re-sending all commands")
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		c.log.Warn().Err(err).Str("path", c.path).Msg("corrupt command cache, re-sending all commands")
		return make(map[string]string)
	}
	return out
}

func (c commandCache) save(hashes map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create command cache dir: %w", err)
	}
	data, err := json.MarshalIndent(hashes, "", "  ")
	if err != nil {
		return fmt.Errorf("encode command cache: %w", err)
	}
	return os.WriteFile(c.path, data, 0o644)
}

// hashCommand returns a deterministic SHA-1 of a command's stable fields.
func hashCommand(c *discordgo.ApplicationCommand) string {
	stable := map[string]any{
		"name":        c.Name,
		"description": c.Description,
		"type":        c.Type,
	}
	if len(c.Options) > 0 {
		stable["options"] = normalizeOptions(c.Options)
	}
	data, _ := json.Marshal(stable)
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func normalizeOptions(opts []*discordgo.ApplicationCommandOption) []map[string]any {
	out := make([]map[string]any, len(opts))
	for i, o := range opts {
		entry := map[string]any{
			"name":        o.Name,
			"description": o.Description,
			"type":        o.Type,
			"required":    o.Required,
		}
		if len(o.Choices) > 0 {
			choices := make([]map[string]any, len(o.Choices))
			for j, ch := range o.Choices {
				choices[j] = map[string]any{"name": ch.Name, "value": ch.Value}
			}
			entry["choices"] = choices
		}
		if len(o.Options) > 0 {
			entry["options"] = normalizeOptions(o.Options)
		}
		out[i] = entry
	}
	slices.SortFunc(out, func(a, b map[string]any) int {
		return strings.Compare(a["name"].(string), b["name"].(string))
	})
	return out
}
