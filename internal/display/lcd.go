package display

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rpi-gardener/greenhouse/internal/events"
	"github.com/rpi-gardener/greenhouse/internal/types"
)

// LCDRenderer draws active-alert status and advances any in-progress
// scroll animation.
type LCDRenderer interface {
	ShowOK()
	ShowAlerts(messages []string)
	ScrollStep()
	Clear()
}

// LoggingLCD is an LCDRenderer that only logs.
type LoggingLCD struct {
	log zerolog.Logger
}

func NewLoggingLCD(log zerolog.Logger) *LoggingLCD {
	return &LoggingLCD{log: log.With().Str("component", "lcd").Logger()}
}

func (d *LoggingLCD) ShowOK() { d.log.Info().Msg("lcd: all ok") }
func (d *LoggingLCD) ShowAlerts(messages []string) {
	d.log.Info().Strs("alerts", messages).Msg("lcd: alerts")
}
func (d *LoggingLCD) ScrollStep() {}
func (d *LoggingLCD) Clear()      { d.log.Debug().Msg("lcd clear") }

// LCDService subscribes to alert events, maintains the set of active
// alerts keyed by (namespace, sensor), and drives a scroll tick (spec.md
// §4.9 "LCD").
type LCDService struct {
	bus         events.Bus
	renderer    LCDRenderer
	scrollDelay time.Duration
	log         zerolog.Logger

	mu     sync.Mutex
	active map[types.Key]string
}

func NewLCDService(bus events.Bus, renderer LCDRenderer, scrollDelay time.Duration, log zerolog.Logger) *LCDService {
	if scrollDelay <= 0 {
		scrollDelay = 500 * time.Millisecond
	}
	return &LCDService{
		bus:         bus,
		renderer:    renderer,
		scrollDelay: scrollDelay,
		log:         log.With().Str("component", "lcd-service").Logger(),
		active:      make(map[types.Key]string),
	}
}

// Run subscribes to alerts, starts the scroll ticker, and blocks until ctx
// is cancelled.
func (s *LCDService) Run(ctx context.Context) error {
	s.renderer.ShowOK()

	sub, err := s.bus.Subscribe(events.TopicAlert, s.handle)
	if err != nil {
		return err
	}
	s.log.Info().Msg("lcd service started")

	ticker := time.NewTicker(s.scrollDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
			s.renderer.Clear()
			s.log.Info().Msg("lcd service stopped")
			return nil
		case <-ticker.C:
			s.mu.Lock()
			hasAlerts := len(s.active) > 0
			s.mu.Unlock()
			if hasAlerts {
				s.renderer.ScrollStep()
			}
		}
	}
}

func (s *LCDService) handle(_ events.Topic, raw []byte) {
	var payload events.AlertPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.log.Warn().Err(err).Msg("failed to parse alert event")
		return
	}
	key := types.Key{Namespace: payload.Namespace, Sensor: payload.SensorName}

	s.mu.Lock()
	if payload.IsResolved {
		delete(s.active, key)
	} else {
		s.active[key] = formatAlert(payload)
	}
	messages := make([]string, 0, len(s.active))
	for _, m := range s.active {
		messages = append(messages, m)
	}
	s.mu.Unlock()

	if len(messages) == 0 {
		s.renderer.ShowOK()
	} else {
		s.renderer.ShowAlerts(messages)
	}
}

func formatAlert(p events.AlertPayload) string {
	if p.Namespace == types.NamespacePico {
		return fmt.Sprintf("P%s dry", p.SensorName.String())
	}
	if p.Namespace == types.NamespaceDHT {
		low := p.Threshold != nil && p.Value < *p.Threshold
		switch p.SensorName.Name {
		case types.MeasureTemperature:
			if low {
				return "Temp low"
			}
			return "Temp high"
		case types.MeasureHumidity:
			if low {
				return "Humid low"
			}
			return "Humid high"
		}
	}
	return p.SensorName.String()
}
