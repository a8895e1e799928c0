package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpi-gardener/greenhouse/internal/alerts"
	"github.com/rpi-gardener/greenhouse/internal/config"
	"github.com/rpi-gardener/greenhouse/internal/events"
	"github.com/rpi-gardener/greenhouse/internal/notify"
	"github.com/rpi-gardener/greenhouse/pkg/logger"
)

// cmd/notifier is the sole consumer of events.TopicAlert that sends mail and
// Slack notifications (original_source/rpi/lib/notifications.py's worker,
// generalized from an in-process asyncio queue to the cross-process event
// bus). Keeping this separate from cmd/dht and cmd/pico means a threshold
// violation is sent exactly once no matter how many sensor processes are
// running.
func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	log.Info().Msg("Starting notification dispatcher service")

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

	dispatcher := notify.FromConfig(log, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := bus.Subscribe(events.TopicAlert, func(topic events.Topic, rawPayload []byte) {
		var payload events.AlertPayload
		if err := json.Unmarshal(rawPayload, &payload); err != nil {
			log.Error().Err(err).Msg("failed to decode alert payload")
			return
		}

		recordingTime, err := events.ParseRecordingTime(payload.RecordingTime)
		if err != nil {
			log.Error().Err(err).Msg("failed to parse alert recording time")
			return
		}

		var threshold float64
		if payload.Threshold != nil {
			threshold = *payload.Threshold
		}

		violation := alerts.ThresholdViolation{
			Namespace:     payload.Namespace,
			SensorName:    payload.SensorName,
			Value:         payload.Value,
			Unit:          payload.Unit,
			Threshold:     threshold,
			RecordingTime: recordingTime,
			IsResolved:    payload.IsResolved,
		}

		sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := dispatcher.Send(sendCtx, violation); err != nil {
			log.Warn().Err(err).Msg("notification dispatch had partial failures")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to subscribe to alert topic")
	}
	defer sub.Unsubscribe()

	log.Info().Msg("notifier service started, listening for alerts")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down notifier service...")
	cancel()
	log.Info().Msg("notifier service stopped")
}
