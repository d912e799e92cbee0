package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"

	"github.com/keshon/lavaplay/internal/command/music"
	"github.com/keshon/lavaplay/internal/music/node"
	"github.com/keshon/lavaplay/internal/music/resolver"
	"github.com/spf13/cobra"
)

func newListenCmd() *cobra.Command {
	var (
		userID    string
		guildID   string
		channelID string
		play      string
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Open the node channel and print events until interrupted",
		Long:  "listen opens the node channel and prints every event it sees. With --guild, --channel and --play it also connects a player and queues the first result of the query.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, closer, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closer.Close()

			if play != "" && (guildID == "" || channelID == "") {
				return fmt.Errorf("--play needs --guild and --channel")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := node.New(cfg.Node(userID), nil, resolver.New(cfg.Resolver(), log), log)

			out := &lockedWriter{w: cmd.OutOrStdout()}
			unsubscribe := client.Subscribe(func(e node.Event) {
				fmt.Fprintln(out, describeEvent(e))
			})
			defer unsubscribe()

			if err := client.Open(ctx); err != nil {
				return err
			}

			var player *node.Player
			if play != "" {
				player = client.CreatePlayer(guildID)
				if err := queueQuery(ctx, client, player, channelID, play); err != nil {
					_ = client.Close()
					return err
				}
			}

			select {
			case <-ctx.Done():
				if err := client.Close(); err != nil {
					return err
				}
			case <-client.Done():
			}

			if player != nil {
				log.Info().Int("queued", len(player.Queue())).Msg("player left behind")
			}
			if err := client.Err(); err != nil {
				return fmt.Errorf("node channel closed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "bot user id sent to the node (NODE_USER_ID wins when set)")
	cmd.Flags().StringVar(&guildID, "guild", "", "guild to create a player for")
	cmd.Flags().StringVar(&channelID, "channel", "", "voice channel the player connects to")
	cmd.Flags().StringVar(&play, "play", "", "link or search query to queue")
	return cmd
}

// queueQuery connects player to channelID and starts the first track the
// query resolves to.
func queueQuery(ctx context.Context, client *node.Client, player *node.Player, channelID, query string) error {
	descriptors, err := client.ResolveTracks(ctx, music.SearchQuery(query))
	if err != nil {
		return err
	}
	if len(descriptors) == 0 {
		return fmt.Errorf("nothing found for %q", query)
	}

	if err := player.Connect(ctx, channelID); err != nil {
		return err
	}
	_, err = player.Enqueue(ctx, descriptors[0], true)
	return err
}

func describeEvent(e node.Event) string {
	switch ev := e.(type) {
	case node.TrackStart:
		return fmt.Sprintf("start     guild=%s track=%q", ev.GuildID, ev.Track.String())
	case node.TrackEnd:
		return fmt.Sprintf("end       guild=%s reason=%s", ev.GuildID, ev.Reason)
	case node.TrackException:
		return fmt.Sprintf("exception guild=%s error=%q", ev.GuildID, ev.Error)
	case node.TrackStuck:
		return fmt.Sprintf("stuck     guild=%s threshold=%s", ev.GuildID, ev.Threshold)
	case node.PlayerUpdate:
		return fmt.Sprintf("update    guild=%s position=%s", ev.GuildID, ev.Position)
	case node.ProtocolError:
		return fmt.Sprintf("error     %v", ev.Err)
	case node.StateChange:
		return fmt.Sprintf("state     %s -> %s", ev.From, ev.To)
	default:
		return fmt.Sprintf("event     %T", e)
	}
}

// lockedWriter serialises event lines written from the receive loop and
// from player calls made on this goroutine.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
