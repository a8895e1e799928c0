package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpi-gardener/greenhouse/internal/config"
	"github.com/rpi-gardener/greenhouse/internal/display"
	"github.com/rpi-gardener/greenhouse/internal/events"
	"github.com/rpi-gardener/greenhouse/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	log.Info().Msg("Starting LCD display service")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})

	if !cfg.LCDEnabled {
		log.Info().Msg("LCD_ENABLED is false, exiting")
		return
	}

	bus, err := events.NewRedisBus(cfg.BrokerURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to event broker")
	}
	defer bus.Close()

	renderer := display.NewLoggingLCD(log)
	svc := display.NewLCDService(bus, renderer, 500*time.Millisecond, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutting down lcd service...")
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("lcd service exited with error")
		}
	}

	log.Info().Msg("lcd service stopped")
}
