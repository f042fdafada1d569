package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/petems/audiorec/internal/audio"
	"github.com/petems/audiorec/internal/config"
	"github.com/petems/audiorec/internal/logging"
	"github.com/petems/audiorec/internal/permissions"
	"github.com/petems/audiorec/internal/session"
	"github.com/petems/audiorec/internal/transcode"
	"github.com/petems/audiorec/internal/tray"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

func main() {
	// Load config from XDG/Library/AppData
	cfg, err := config.Load()
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger with configured level
	log := logging.NewWithLevel(cfg.LogLevel)

	// macOS requires explicit microphone approval before capture works
	if err := permissions.EnsurePermissions(); err != nil {
		log.Fatal().Err(err).Msg("Required permissions not granted")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize audio source
	src, err := audio.New(log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audio")
	}
	defer src.Close()

	// External AAC encoder; the tray falls back to WAV when missing
	enc := transcode.New(log)
	if cfg.Output.Bitrate != "" {
		enc.Bitrate = cfg.Output.Bitrate
	}

	sess := session.New(src, log)

	ui := tray.New(sess, src, enc, cfg, log, Version, Commit)

	log.Info().Str("version", Version).Msg("audiorec starting...")

	// Setup shutdown signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Shutting down...")
		if sess.State() == session.Recording {
			// Discard the in-flight recording; nothing to save it to
			sess.Stop()
		}
		src.Close()
		os.Exit(0)
	}()

	// Start tray UI - MUST run on main thread
	if err := ui.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Tray error")
	}
}
