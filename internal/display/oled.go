// Package display implements the OLED and LCD subscriber services (spec.md
// §4.9), grounded on original_source/rpi/oled/service.py and
// original_source/rpi/lcd/service.py. Concrete hardware drivers are out of
// scope (spec.md §1 Non-goals); only the render interface and logging
// fallback implementation live here.
package display

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/rpi-gardener/greenhouse/internal/events"
)

// OLEDRenderer draws the latest temperature/humidity pair.
type OLEDRenderer interface {
	Render(temperature, humidity float64)
	Clear()
}

// LoggingOLED is an OLEDRenderer that only logs; it is the renderer
// cmd/oled wires, since no physical display driver is provided.
type LoggingOLED struct {
	log zerolog.Logger
}

func NewLoggingOLED(log zerolog.Logger) *LoggingOLED {
	return &LoggingOLED{log: log.With().Str("component", "oled").Logger()}
}

func (d *LoggingOLED) Render(temperature, humidity float64) {
	d.log.Info().Float64("temperature", temperature).Float64("humidity", humidity).Msg("oled render")
}

func (d *LoggingOLED) Clear() {
	d.log.Debug().Msg("oled clear")
}

// OLEDService subscribes to dht.reading and renders every reading.
type OLEDService struct {
	bus      events.Bus
	renderer OLEDRenderer
	log      zerolog.Logger
}

func NewOLEDService(bus events.Bus, renderer OLEDRenderer, log zerolog.Logger) *OLEDService {
	return &OLEDService{bus: bus, renderer: renderer, log: log.With().Str("component", "oled-service").Logger()}
}

// Run subscribes and blocks until ctx is cancelled.
func (s *OLEDService) Run(ctx context.Context) error {
	s.renderer.Clear()
	sub, err := s.bus.Subscribe(events.TopicDHTReading, s.handle)
	if err != nil {
		return err
	}
	s.log.Info().Msg("oled service started")
	<-ctx.Done()
	sub.Unsubscribe()
	s.renderer.Clear()
	s.log.Info().Msg("oled service stopped")
	return nil
}

func (s *OLEDService) handle(_ events.Topic, raw []byte) {
	var payload events.DHTReadingPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.log.Warn().Err(err).Msg("failed to parse dht reading event")
		return
	}
	s.renderer.Render(payload.Temperature, payload.Humidity)
}
