package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/keshon/lavaplay/internal/bot"
	"github.com/keshon/lavaplay/internal/music/node"
	"github.com/keshon/lavaplay/internal/music/track"
	"github.com/keshon/lavaplay/internal/storage"
	"github.com/keshon/lavaplay/pkg/retrylimit"
	"github.com/rs/zerolog"
)

var _ bot.BotVoice = (*Bot)(nil)

// superviseNode keeps one node channel open for the life of ctx. A channel
// that fails to open is retried with backoff; one that drops is replaced
// by a fresh Client, and the players of the old one are discarded.
func (b *Bot) superviseNode(ctx context.Context, userID string) {
	gateway := &voiceGateway{session: b.dg, log: b.log}
	dial := func() (*node.Client, error) {
		c := node.New(b.cfg.Node(userID), gateway, b.resolver, b.log)
		if err := c.Open(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}

	for {
		client, err := connectNode(ctx, nodeRetryConfig(b.log), dial, b.log)
		if err != nil {
			return
		}

		unsubscribe := client.Subscribe(b.onNodeEvent)
		b.setNode(client)

		select {
		case <-ctx.Done():
			if err := client.Close(); err != nil {
				b.log.Warn().Err(err).Msg("failed to close node channel")
			}
		case <-client.Done():
			b.log.Warn().Err(client.Err()).Msg("node channel lost, reconnecting")
		}

		unsubscribe()
		b.setNode(nil)
	}
}

func nodeRetryConfig(log zerolog.Logger) retrylimit.RetryConfig {
	retry := retrylimit.DefaultRetryConfig()
	retry.MaxAttempts = 0
	retry.InitialDelay = time.Second
	retry.MaxDelay = 30 * time.Second
	retry.Logger = log
	return retry
}

// connectNode dials until it gets an open Client or ctx is done. When one
// round of retries is used up it waits MaxDelay and starts another, so an
// outage of any length ends in a reconnect.
func connectNode(ctx context.Context, retry retrylimit.RetryConfig, dial func() (*node.Client, error), log zerolog.Logger) (*node.Client, error) {
	for {
		var client *node.Client
		err := retrylimit.WithRetryConfig(ctx, func() error {
			c, err := dial()
			if err != nil {
				return err
			}
			client = c
			return nil
		}, nil, retry)
		if err == nil {
			return client, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		log.Error().Err(err).Dur("pause", retry.MaxDelay).Msg("node still unreachable")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retry.MaxDelay):
		}
	}
}

func (b *Bot) setNode(client *node.Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.node = client
	clear(b.players)
}

func (b *Bot) currentNode() *node.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.node
}

func (b *Bot) onNodeEvent(e node.Event) {
	switch ev := e.(type) {
	case node.TrackStart:
		b.recordTrack(ev.GuildID, ev.Track)
	case node.TrackException:
		b.log.Warn().Str("guild", ev.GuildID).Str("track", ev.Track).Str("error", ev.Error).Msg("track failed")
	case node.TrackStuck:
		b.log.Warn().Str("guild", ev.GuildID).Str("track", ev.Track).Dur("threshold", ev.Threshold).Msg("track stuck")
	case node.ProtocolError:
		b.log.Warn().Err(ev.Err).Msg("node protocol error")
	}
}

func (b *Bot) recordTrack(guildID string, t track.Track) {
	if b.storage == nil {
		return
	}
	err := b.storage.AppendTrackToHistory(guildID, storage.TrackHistoryRecord{
		Identifier: t.Identifier(),
		Title:      t.Title(),
		Author:     t.Author(),
		URI:        t.URI(),
		LengthMs:   t.Length(),
		IsStream:   t.IsStream(),
	})
	if err != nil {
		b.log.Warn().Err(err).Str("guild", guildID).Msg("failed to record track history")
	}
}

// GetOrCreatePlayer returns the guild's player on the current node channel.
func (b *Bot) GetOrCreatePlayer(guildID string) (bot.Player, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.node == nil {
		return nil, node.ErrNotConnected
	}
	if p, ok := b.players[guildID]; ok {
		return p, nil
	}

	p := b.node.CreatePlayer(guildID)
	b.players[guildID] = p
	return p, nil
}

func (b *Bot) dropPlayer(guildID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.players, guildID)
	if b.node != nil {
		b.node.RemovePlayer(guildID)
	}
}

// FindUserVoiceState finds the voice state of a user
func (b *Bot) FindUserVoiceState(guildID, userID string) (*bot.VoiceState, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving guild: %w", err)
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return &bot.VoiceState{
				ChannelID: vs.ChannelID,
				UserID:    vs.UserID,
			}, nil
		}
	}
	return nil, fmt.Errorf("user not in any voice channel")
}

func (b *Bot) ResolveTracks(ctx context.Context, query string) ([]track.Descriptor, error) {
	client := b.currentNode()
	if client == nil {
		return nil, node.ErrNotConnected
	}
	return client.ResolveTracks(ctx, query)
}
