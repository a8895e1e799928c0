package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rpi-gardener/greenhouse/internal/config"
	"github.com/rpi-gardener/greenhouse/internal/database"
	"github.com/rpi-gardener/greenhouse/internal/retention"
	"github.com/rpi-gardener/greenhouse/internal/settings"
	"github.com/rpi-gardener/greenhouse/pkg/logger"
)

// cmd/cleanup runs one retention pass and exits, for environments that would
// rather drive internal/retention from an external cron than from the
// server process's in-process scheduler (original_source/rpi/db_cleanup.py
// is itself a standalone script invoked by system cron).
func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	log.Info().Msg("Starting one-shot retention cleanup")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})

	if _, err := os.Stat(cfg.DatabasePath); errors.Is(err, os.ErrNotExist) {
		log.Info().Str("path", cfg.DatabasePath).Msg("database file not found, skipping retention cleanup")
		return
	}

	db, err := database.New(cfg.DatabasePath, database.Options{Mode: database.Persistent})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	store, err := settings.New(db, cfg.BrokerURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize settings store")
	}
	defer store.Close()

	job := retention.New(db, store, cfg.RetentionDays, log)
	if err := job.RunContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("Retention cleanup failed")
	}

	log.Info().Msg("retention cleanup finished")
}
