package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/keshon/lavaplay/internal/config"
	"github.com/keshon/lavaplay/internal/discord"
	"github.com/keshon/lavaplay/internal/logging"
	"github.com/keshon/lavaplay/internal/storage"
	v "github.com/keshon/lavaplay/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	dotenv := config.Load()

	cfg, err := config.New()
	if err != nil {
		return err
	}
	if err := cfg.RequireDiscord(); err != nil {
		return err
	}

	log, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer closer.Close()

	log.Info().Str("version", v.Version).Bool("dotenv", dotenv).Msgf("starting %s bot", v.AppName)

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close storage")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot := discord.NewBot(cfg, store, log)
	if err := bot.Run(ctx); err != nil {
		return fmt.Errorf("discord bot: %w", err)
	}

	log.Info().Msg("discord bot exited cleanly")
	return nil
}
