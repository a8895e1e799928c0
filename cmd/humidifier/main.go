package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rpi-gardener/greenhouse/internal/config"
	"github.com/rpi-gardener/greenhouse/internal/events"
	"github.com/rpi-gardener/greenhouse/internal/humidifier"
	"github.com/rpi-gardener/greenhouse/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	log.Info().Msg("Starting humidifier actuator service")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})

	bus, err := events.NewRedisBus(cfg.BrokerURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to event broker")
	}
	defer bus.Close()

	plug := humidifier.NewLoggingPlug(log)
	svc := humidifier.New(bus, plug, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutting down humidifier service...")
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("humidifier service exited with error")
		}
	}

	log.Info().Msg("humidifier service stopped")
}
