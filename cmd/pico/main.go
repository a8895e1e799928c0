package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpi-gardener/greenhouse/internal/alerts"
	"github.com/rpi-gardener/greenhouse/internal/config"
	"github.com/rpi-gardener/greenhouse/internal/database"
	"github.com/rpi-gardener/greenhouse/internal/events"
	"github.com/rpi-gardener/greenhouse/internal/polling"
	"github.com/rpi-gardener/greenhouse/internal/sensors/moisture"
	"github.com/rpi-gardener/greenhouse/internal/settings"
	"github.com/rpi-gardener/greenhouse/internal/types"
	"github.com/rpi-gardener/greenhouse/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	log.Info().Msg("Starting Pico moisture polling service")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})

	db, err := database.New(cfg.DatabasePath, database.Options{Mode: database.Persistent})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
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

	// Notification dispatch lives in cmd/notifier; see cmd/dht/main.go.
	tracker := alerts.New(log, cfg.ConfirmationCount)
	tracker.RegisterCallback(types.NamespacePico, func(v alerts.ThresholdViolation) {
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		payload := events.NewAlertPayload(v.Namespace, v.SensorName, v.Value, v.Threshold, v.Unit, v.RecordingTime, v.IsResolved)
		if err := bus.Publish(pubCtx, events.TopicAlert, payload); err != nil {
			log.Warn().Err(err).Msg("failed to publish alert event")
		}
	})

	var source moisture.Source
	if cfg.MockSensorMode {
		source = moisture.NewMockSource(time.Now().UnixNano())
	} else {
		log.Fatal().Msg("no physical Pico serial source wired; set MOCK_SENSOR_MODE=true")
	}

	ruleFor := func(plantID int) alerts.ThresholdRule {
		threshold := cfg.MoistureDefault
		if values, err := store.GetAll(ctx); err == nil {
			reader := settings.NewReader(values)
			if key, err := settings.PlantMoistureKey(plantID); err == nil {
				threshold = reader.Int(key, cfg.MoistureDefault)
			}
		}
		return alerts.ThresholdRule{Kind: alerts.Min, Value: threshold, Hysteresis: cfg.HysteresisMoisture}
	}

	svc := moisture.NewService(source, db, bus, tracker, ruleFor, log)
	loop := polling.New[moisture.Batch](svc, time.Duration(cfg.PollingFrequencySec)*time.Second, func(err error) {
		log.Error().Err(err).Msg("pico poll cycle error")
	}, log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- loop.Run(runCtx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutting down pico service...")
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("pico loop exited with error")
		}
	}

	log.Info().Msg("pico service stopped")
}
