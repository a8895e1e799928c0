// Package humidifier implements the humidity actuator service (spec.md
// §4.7), grounded on original_source/rpi/humidifier/service.py. It
// subscribes to the alert topic and drives a smart plug on low-humidity
// alerts, turning it off again when the alert resolves or the service
// shuts down.
package humidifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/rpi-gardener/greenhouse/internal/events"
	"github.com/rpi-gardener/greenhouse/internal/types"
)

// Plug is the abstract smart-plug interface; a concrete driver for a
// specific plug protocol is out of scope (spec.md §1 Non-goals).
type Plug interface {
	On(ctx context.Context) error
	Off(ctx context.Context) error
}

// Service subscribes to the alert topic and drives plug accordingly.
type Service struct {
	bus  events.Bus
	plug Plug
	log  zerolog.Logger
}

func New(bus events.Bus, plug Plug, log zerolog.Logger) *Service {
	return &Service{
		bus:  bus,
		plug: plug,
		log:  log.With().Str("component", "humidifier").Logger(),
	}
}

// Run subscribes to alerts and blocks until ctx is cancelled. On return the
// plug is always turned off (spec.md §4.7 "turn_off_on_close").
func (s *Service) Run(ctx context.Context) error {
	sub, err := s.bus.Subscribe(events.TopicAlert, s.handle)
	if err != nil {
		return err
	}
	s.log.Info().Msg("humidifier service started")

	<-ctx.Done()
	sub.Unsubscribe()

	offCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.plug.Off(offCtx); err != nil {
		s.log.Error().Err(err).Msg("failed to turn off humidifier on shutdown")
	}
	s.log.Info().Msg("humidifier service stopped")
	return nil
}

func (s *Service) handle(_ events.Topic, raw []byte) {
	var payload events.AlertPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.log.Warn().Err(err).Msg("failed to parse alert payload")
		return
	}
	if !isLowHumidityAlert(payload) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if payload.IsResolved {
		s.log.Info().Float64("value", payload.Value).Msg("humidity recovered, turning off humidifier")
		if err := s.plug.Off(ctx); err != nil {
			s.log.Error().Err(err).Msg("failed to turn off humidifier")
			return
		}
	} else {
		s.log.Info().Float64("value", payload.Value).Msg("humidity too low, turning on humidifier")
		if err := s.plug.On(ctx); err != nil {
			s.log.Error().Err(err).Msg("failed to turn on humidifier")
			return
		}
	}

	state := events.NewHumidifierStatePayload(!payload.IsResolved, time.Now().UTC())
	if err := s.bus.Publish(ctx, events.TopicHumidifierState, state); err != nil {
		s.log.Error().Err(err).Msg("failed to publish humidifier state")
	}
}

func isLowHumidityAlert(p events.AlertPayload) bool {
	isHumidity := p.Namespace == types.NamespaceDHT && p.SensorName.Kind == types.SensorNamed && p.SensorName.Name == types.MeasureHumidity
	isLow := p.Threshold != nil && p.Value < *p.Threshold
	return isHumidity && (p.IsResolved || isLow)
}
