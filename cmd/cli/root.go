package main

import (
	"fmt"
	"io"

	"github.com/keshon/lavaplay/internal/config"
	"github.com/keshon/lavaplay/internal/logging"
	v "github.com/keshon/lavaplay/internal/version"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           v.AppName,
		Short:         "Talk to an audio node without Discord",
		Long:          "lavaplay resolves tracks through the node's REST API and opens the node channel to watch player events. Settings come from the environment and an optional .env file.",
		Version:       v.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newSearchCmd(),
		newListenCmd(),
	)
	return rootCmd
}

// setup loads configuration and a logger writing to the command's stderr.
func setup(cmd *cobra.Command) (*config.Config, zerolog.Logger, io.Closer, error) {
	config.Load()
	cfg, err := config.New()
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}

	log, closer, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("init logging: %w", err)
	}
	return cfg, log, closer, nil
}
