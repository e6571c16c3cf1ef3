// Package main (in rasterd-subfolder) runs the raster processor as a child process:
// length-prefixed frames on stdin/stdout, logs on stderr only.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/UnendingLoop/BgRemover/internal/appconfig"
	"github.com/UnendingLoop/BgRemover/internal/link"
	"github.com/UnendingLoop/BgRemover/internal/processor"
	"github.com/rs/zerolog"
)

func main() {
	// stdout занят кадрами, поэтому логгер только в stderr
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Str("component", "rasterd").Logger()

	appConfig, err := appconfig.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load envs")
	}
	level, err := zerolog.ParseLevel(appConfig.GetString("LOG_LEVEL"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to parse LOG_LEVEL")
	}
	logger = logger.Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc := processor.New(appConfig.GetInt("MAX_SIDE"), logger)
	if err := link.ServeFrames(ctx, os.Stdin, os.Stdout, proc); err != nil {
		logger.Error().Err(err).Msg("Frame loop stopped")
		os.Exit(1)
	}
	logger.Info().Msg("Stdin closed, exiting rasterd...")
}
