// Package moisture implements the Pico moisture-probe reader (spec.md
// §4.5, §4.6), grounded on original_source/rpi/pico/reader.py. The Pico
// speaks newline-delimited JSON objects of {"plant-N": moisture, ...} over
// USB serial; the concrete serial transport is out of scope (spec.md §1
// Non-goals, and the prior decision not to fabricate a serial dependency),
// so Source abstracts it down to an io.Reader-like line source.
package moisture

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rpi-gardener/greenhouse/internal/alerts"
	"github.com/rpi-gardener/greenhouse/internal/database"
	"github.com/rpi-gardener/greenhouse/internal/events"
	"github.com/rpi-gardener/greenhouse/internal/types"
)

const (
	moistureMin = 0.0
	moistureMax = 100.0
)

// Reading is one plant's validated moisture sample.
type Reading struct {
	PlantID       int
	Moisture      float64
	RecordingTime time.Time
}

// Batch is every plant reading parsed from a single line; a Pico line can
// report several plants at once (spec.md §4.5 "Pico reading").
type Batch []Reading

// Source yields newline-delimited JSON lines. A bufio.Scanner over the
// serial port's io.Reader satisfies this in production; tests use a
// strings.Reader.
type Source interface {
	ReadLine(ctx context.Context) (string, error)
}

// scannerSource adapts an io.Reader to Source.
type scannerSource struct {
	scanner *bufio.Scanner
}

func NewReaderSource(r io.Reader) Source {
	return &scannerSource{scanner: bufio.NewScanner(r)}
}

func (s *scannerSource) ReadLine(ctx context.Context) (string, error) {
	if s.scanner.Scan() {
		return s.scanner.Text(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// RuleFor resolves the moisture threshold rule for a plant; wired from the
// settings store's per-plant keys (spec.md §4.2).
type RuleFor func(plantID int) alerts.ThresholdRule

// Service implements polling.Service[Batch].
type Service struct {
	source  Source
	db      *database.DB
	bus     events.Bus
	tracker *alerts.Tracker
	ruleFor RuleFor
	log     zerolog.Logger
}

func NewService(source Source, db *database.DB, bus events.Bus, tracker *alerts.Tracker, ruleFor RuleFor, log zerolog.Logger) *Service {
	return &Service{
		source:  source,
		db:      db,
		bus:     bus,
		tracker: tracker,
		ruleFor: ruleFor,
		log:     log.With().Str("component", "moisture").Logger(),
	}
}

func (s *Service) Name() string { return "moisture" }

func (s *Service) Initialize(ctx context.Context) error { return nil }
func (s *Service) Cleanup(ctx context.Context) error     { return nil }

func (s *Service) Poll(ctx context.Context) (Batch, bool, error) {
	line, err := s.source.ReadLine(ctx)
	if err != nil {
		return nil, false, err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false, nil
	}

	var raw map[string]json.Number
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		s.log.Warn().Err(err).Str("line", line).Msg("invalid JSON from pico")
		return nil, false, nil
	}

	now := time.Now().UTC()
	var batch Batch
	for key, value := range raw {
		plantID, err := parsePlantID(key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("invalid plant id from pico")
			continue
		}
		moisture, err := value.Float64()
		if err != nil || moisture < moistureMin || moisture > moistureMax {
			s.log.Warn().Str("key", key).Str("value", value.String()).Msg("invalid moisture value from pico")
			continue
		}
		batch = append(batch, Reading{PlantID: plantID, Moisture: moisture, RecordingTime: now})
	}
	return batch, len(batch) > 0, nil
}

func (s *Service) Audit(ctx context.Context, batch Batch) bool {
	return len(batch) > 0
}

func (s *Service) Persist(ctx context.Context, batch Batch) error {
	argSets := make([][]any, 0, len(batch))
	for _, r := range batch {
		argSets = append(argSets, []any{r.PlantID, r.Moisture, r.RecordingTime})
	}
	if err := s.db.ExecuteMany(ctx,
		"INSERT INTO pico_reading (plant_id, moisture, recording_time) VALUES (?, ?, ?)",
		argSets); err != nil {
		return fmt.Errorf("persist pico readings: %w", err)
	}

	for _, r := range batch {
		rule := s.ruleFor(r.PlantID)
		s.tracker.CheckRule(types.NamespacePico, types.Plant(r.PlantID), r.Moisture, "%", rule, r.RecordingTime)

		payload := events.NewPicoReadingPayload(r.PlantID, r.Moisture, r.RecordingTime)
		if err := s.bus.Publish(ctx, events.TopicPicoReading, payload); err != nil {
			s.log.Warn().Err(err).Msg("failed to publish pico reading")
		}
	}
	return nil
}

// parsePlantID parses Pico's "plant-N" key format (spec.md §4.5).
func parsePlantID(key string) (int, error) {
	const prefix = "plant-"
	if !strings.HasPrefix(key, prefix) {
		return 0, fmt.Errorf("plant id must be in 'plant-N' format, got %q", key)
	}
	return strconv.Atoi(strings.TrimPrefix(key, prefix))
}
