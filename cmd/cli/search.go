package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/keshon/lavaplay/internal/command/music"
	"github.com/keshon/lavaplay/internal/music/resolver"
	"github.com/keshon/lavaplay/internal/music/track"
	"github.com/spf13/cobra"
)

type searchResult struct {
	Handle   string `json:"track"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	URI      string `json:"uri"`
	LengthMs int64  `json:"length"`
	IsStream bool   `json:"isStream"`
}

func newSearchCmd() *cobra.Command {
	var (
		raw    bool
		asJSON bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Resolve a link or search query into tracks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closer, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closer.Close()

			query := args[0]
			if !raw {
				query = music.SearchQuery(query)
			}

			descriptors, err := resolver.New(cfg.Resolver(), log).Resolve(cmd.Context(), query)
			if err != nil {
				return err
			}

			var results []searchResult
			for _, d := range descriptors {
				t, err := track.New(d)
				if err != nil {
					log.Warn().Err(err).Msg("skipping malformed track")
					continue
				}
				results = append(results, searchResult{
					Handle:   t.Handle(),
					Title:    t.Title(),
					Author:   t.Author(),
					URI:      t.URI(),
					LengthMs: t.Length(),
					IsStream: t.IsStream(),
				})
				if limit > 0 && len(results) == limit {
					break
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			if len(results) == 0 {
				_, err := fmt.Fprintln(out, "no tracks found")
				return err
			}
			for i, r := range results {
				length := "live"
				if !r.IsStream {
					length = (time.Duration(r.LengthMs) * time.Millisecond).String()
				}
				if _, err := fmt.Fprintf(out, "%2d. %s - %s [%s] %s\n", i+1, r.Author, r.Title, length, r.URI); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "pass the query to the node unchanged")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of tracks to print (0 for all)")
	return cmd
}
