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
	"github.com/rpi-gardener/greenhouse/internal/sensors/dht"
	"github.com/rpi-gardener/greenhouse/internal/settings"
	"github.com/rpi-gardener/greenhouse/internal/types"
	"github.com/rpi-gardener/greenhouse/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	log.Info().Msg("Starting DHT polling service")

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

	// Notification dispatch lives in cmd/notifier, which is the sole
	// subscriber to TopicAlert that sends mail/Slack; this process only
	// publishes the committed transition so every interested subscriber
	// (notifier, humidifier, LCD, the dashboard's WS/SSE handlers) sees it
	// exactly once.
	tracker := alerts.New(log, cfg.ConfirmationCount)
	tracker.RegisterCallback(types.NamespaceDHT, func(v alerts.ThresholdViolation) {
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		payload := events.NewAlertPayload(v.Namespace, v.SensorName, v.Value, v.Threshold, v.Unit, v.RecordingTime, v.IsResolved)
		if err := bus.Publish(pubCtx, events.TopicAlert, payload); err != nil {
			log.Warn().Err(err).Msg("failed to publish alert event")
		}
	})

	// The OLED/LCD renderers run as their own subscriber processes
	// (cmd/oled, cmd/lcd), reached through the same event bus this
	// service publishes to; this process never drives a display directly.

	var sensor dht.Sensor
	if cfg.MockSensorMode {
		sensor = dht.NewMockSensor(time.Now().UnixNano())
	} else {
		log.Fatal().Msg("no physical DHT22 driver wired; set MOCK_SENSOR_MODE=true")
	}

	tempMin, tempMax := cfg.TempMin, cfg.TempMax
	humidityMin, humidityMax := cfg.HumidityMin, cfg.HumidityMax
	if values, err := store.GetAll(ctx); err == nil {
		reader := settings.NewReader(values)
		tempMin = reader.Int(settings.KeyTempMin, cfg.TempMin)
		tempMax = reader.Int(settings.KeyTempMax, cfg.TempMax)
		humidityMin = reader.Int(settings.KeyHumidityMin, cfg.HumidityMin)
		humidityMax = reader.Int(settings.KeyHumidityMax, cfg.HumidityMax)
	} else {
		log.Warn().Err(err).Msg("failed to read live thresholds, using configured defaults")
	}

	rules := dht.Rules{
		Temperature: []alerts.ThresholdRule{
			{Kind: alerts.Min, Value: tempMin, Hysteresis: cfg.HysteresisTemp},
			{Kind: alerts.Max, Value: tempMax, Hysteresis: cfg.HysteresisTemp},
		},
		Humidity: []alerts.ThresholdRule{
			{Kind: alerts.Min, Value: humidityMin, Hysteresis: cfg.HysteresisHumidity},
			{Kind: alerts.Max, Value: humidityMax, Hysteresis: cfg.HysteresisHumidity},
		},
	}

	svc := dht.NewService(sensor, db, bus, tracker, rules, nil, log)
	loop := polling.New[dht.Reading](svc, time.Duration(cfg.PollingFrequencySec)*time.Second, func(err error) {
		log.Error().Err(err).Msg("dht poll cycle error")
	}, log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- loop.Run(runCtx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutting down dht service...")
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("dht loop exited with error")
		}
	}

	log.Info().Msg("dht service stopped")
}
