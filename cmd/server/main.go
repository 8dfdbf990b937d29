// Package main is the entry point for the Soundscape API server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
//  1. Read configuration (.env files, config.yaml, environment)
//  2. Create the logger
//  3. Start the application
//
// All actual logic lives in imported packages (internal/server,
// internal/service, ...).
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/sakif/soundscape/internal/config"
	"github.com/sakif/soundscape/internal/server"
)

func main() {
	// === 1. LOAD .env FILES ===
	// They only fill variables the real environment leaves unset, so they
	// must be read before config.Load looks at the environment.
	loaded, err := config.LoadDotEnv(".")
	if err != nil {
		slog.Error("failed to load .env files", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. READ CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 3. SET UP LOGGING ===
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if len(loaded) > 0 {
		logger.Info("loaded env files", slog.String("files", strings.Join(loaded, ", ")))
	}
	if cfg.UsingDevSecret() {
		logger.Warn("JWT_SECRET not set, using the development secret; never do this in production")
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newLogger builds the slog logger from log.level and log.format.
// Unknown levels fall back to info.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
