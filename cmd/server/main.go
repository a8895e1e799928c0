package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpi-gardener/greenhouse/internal/config"
	"github.com/rpi-gardener/greenhouse/internal/database"
	"github.com/rpi-gardener/greenhouse/internal/events"
	"github.com/rpi-gardener/greenhouse/internal/retention"
	"github.com/rpi-gardener/greenhouse/internal/scheduler"
	"github.com/rpi-gardener/greenhouse/internal/server"
	"github.com/rpi-gardener/greenhouse/internal/settings"
	"github.com/rpi-gardener/greenhouse/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{
		Level:  "info",
		Pretty: true,
	})

	log.Info().Msg("Starting greenhouse dashboard server")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})

	db, err := database.New(cfg.DatabasePath, database.Options{
		Mode:         database.Pool,
		PoolSize:     cfg.DBPoolSize,
		QueryTimeout: time.Duration(cfg.DBQueryTimeout) * time.Second,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	if err := db.SeedAdminPassword(ctx, cfg.AdminInitialPassword); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed admin password")
	}

	bus, err := events.NewRedisBus(cfg.BrokerURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to event broker")
	}
	defer bus.Close()

	store, err := settings.New(db, cfg.BrokerURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize settings store")
	}
	defer store.Close()

	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	cleanupJob := retention.New(db, store, cfg.RetentionDays, log)
	if err := sched.AddJob("0 0 3 * * *", cleanupJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register retention cleanup job")
	}

	srv := server.New(server.Config{
		Port:     cfg.Port,
		Log:      log,
		DB:       db,
		Settings: store,
		Bus:      bus,
		Config:   cfg,
		DevMode:  cfg.DevMode,
	})

	serverCtx, stopServer := context.WithCancel(context.Background())
	defer stopServer()

	go func() {
		if err := srv.Start(serverCtx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	stopServer()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
