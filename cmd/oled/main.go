package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rpi-gardener/greenhouse/internal/config"
	"github.com/rpi-gardener/greenhouse/internal/display"
	"github.com/rpi-gardener/greenhouse/internal/events"
	"github.com/rpi-gardener/greenhouse/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	log.Info().Msg("Starting OLED display service")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})

	if !cfg.OLEDEnabled {
		log.Info().Msg("OLED_ENABLED is false, exiting")
		return
	}

	bus, err := events.NewRedisBus(cfg.BrokerURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to event broker")
	}
	defer bus.Close()

	renderer := display.NewLoggingOLED(log)
	svc := display.NewOLEDService(bus, renderer, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutting down oled service...")
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("oled service exited with error")
		}
	}

	log.Info().Msg("oled service stopped")
}
