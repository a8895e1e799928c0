// Package dht implements the DHT22 temperature/humidity polling service
// (spec.md §4.5, §4.6), grounded on original_source/rpi/dht/polling.py and
// rpi/dht/audit.py. The concrete sensor chip driver is out of scope
// (spec.md §1 Non-goals) — Sensor is the seam a real driver plugs into.
package dht

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rpi-gardener/greenhouse/internal/alerts"
	"github.com/rpi-gardener/greenhouse/internal/database"
	"github.com/rpi-gardener/greenhouse/internal/display"
	"github.com/rpi-gardener/greenhouse/internal/events"
	"github.com/rpi-gardener/greenhouse/internal/types"
)

// Sensor is the abstract DHT22 reader.
type Sensor interface {
	Read(ctx context.Context) (temperature, humidity float64, err error)
}

// Reading is one DHT22 sample.
type Reading struct {
	Temperature   float64
	Humidity      float64
	RecordingTime time.Time
}

// Sensor bounds the DHT22 chip can physically report (spec.md §4.6
// "Audit"); a reading outside these is a transient sensor fault, not a real
// measurement, and is discarded.
const (
	temperatureMin = -40.0
	temperatureMax = 80.0
	humidityMin    = 0.0
	humidityMax    = 100.0
)

// Rules bundles the candidate MIN/MAX threshold rules evaluated against a
// reading; for each measure, the tracker checks whichever rule is violated
// first (spec.md §4.6, original_source/rpi/dht/audit.py).
type Rules struct {
	Temperature []alerts.ThresholdRule
	Humidity    []alerts.ThresholdRule
}

// Service implements polling.Service[Reading].
type Service struct {
	sensor   Sensor
	db       *database.DB
	bus      events.Bus
	tracker  *alerts.Tracker
	rules    Rules
	renderer display.OLEDRenderer
	log      zerolog.Logger
}

func NewService(sensor Sensor, db *database.DB, bus events.Bus, tracker *alerts.Tracker, rules Rules, renderer display.OLEDRenderer, log zerolog.Logger) *Service {
	return &Service{
		sensor:   sensor,
		db:       db,
		bus:      bus,
		tracker:  tracker,
		rules:    rules,
		renderer: renderer,
		log:      log.With().Str("component", "dht").Logger(),
	}
}

func (s *Service) Name() string { return "dht" }

func (s *Service) Initialize(ctx context.Context) error {
	if s.renderer != nil {
		s.renderer.Clear()
	}
	return nil
}

func (s *Service) Poll(ctx context.Context) (Reading, bool, error) {
	temperature, humidity, err := s.sensor.Read(ctx)
	if err != nil {
		return Reading{}, false, err
	}
	return Reading{
		Temperature:   temperature,
		Humidity:      humidity,
		RecordingTime: time.Now().UTC(),
	}, true, nil
}

// Audit rejects readings outside the DHT22's physical bounds (spec.md §4.6
// "a reading outside bounds is a transient sensor fault, discarded
// silently, not an alert").
func (s *Service) Audit(ctx context.Context, r Reading) bool {
	if r.Temperature < temperatureMin || r.Temperature > temperatureMax {
		s.log.Debug().Float64("temperature", r.Temperature).Msg("reading outside DHT22 temperature bounds, discarding")
		return false
	}
	if r.Humidity < humidityMin || r.Humidity > humidityMax {
		s.log.Debug().Float64("humidity", r.Humidity).Msg("reading outside DHT22 humidity bounds, discarding")
		return false
	}
	return true
}

func (s *Service) Persist(ctx context.Context, r Reading) error {
	if _, err := s.db.Execute(ctx,
		"INSERT INTO reading (temperature, humidity, recording_time) VALUES (?, ?, ?)",
		r.Temperature, r.Humidity, r.RecordingTime); err != nil {
		return fmt.Errorf("persist dht reading: %w", err)
	}

	s.tracker.CheckRules(types.NamespaceDHT, types.Named(types.MeasureTemperature), r.Temperature, "c", s.rules.Temperature, r.RecordingTime)
	s.tracker.CheckRules(types.NamespaceDHT, types.Named(types.MeasureHumidity), r.Humidity, "%", s.rules.Humidity, r.RecordingTime)

	payload := events.NewDHTReadingPayload(r.Temperature, r.Humidity, r.RecordingTime)
	if err := s.bus.Publish(ctx, events.TopicDHTReading, payload); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish dht reading")
	}

	if s.renderer != nil {
		s.renderer.Render(r.Temperature, r.Humidity)
	}
	return nil
}

func (s *Service) Cleanup(ctx context.Context) error {
	if s.renderer != nil {
		s.renderer.Clear()
	}
	return nil
}
