// Package notify implements the pluggable notification dispatcher (spec.md
// §4.8), grounded on original_source/rpi/lib/notifications.py's
// AbstractNotifier hierarchy. Concurrent fan-out mirrors the source's
// asyncio.gather(..., return_exceptions=True) with goroutines and a
// result channel instead.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rpi-gardener/greenhouse/internal/alerts"
	"github.com/rpi-gardener/greenhouse/internal/types"
)

// Backend sends one notification for a committed alert transition.
type Backend interface {
	Name() string
	Send(ctx context.Context, violation alerts.ThresholdViolation) error
}

var sensorLabels = map[string]string{
	types.MeasureTemperature: "Temperature",
	types.MeasureHumidity:    "Humidity",
}

// SensorLabel renders a human-readable label for a sensor id, used in every
// backend's message body.
func SensorLabel(sensor types.SensorID) string {
	if sensor.Kind == types.SensorPlant {
		return fmt.Sprintf("Plant %d", sensor.Plant)
	}
	if label, ok := sensorLabels[sensor.Name]; ok {
		return label
	}
	return titleCase(strings.ReplaceAll(sensor.Name, "-", " "))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// FormatMessage renders the plain-text body shared by Gmail and Slack
// (spec.md §4.8 "Message content").
func FormatMessage(v alerts.ThresholdViolation) string {
	label := SensorLabel(v.SensorName)
	timeStr := v.RecordingTime.Format("15:04:05")
	return fmt.Sprintf(
		"%s alert!\n\nCurrent value: %.1f%s\nThreshold: %.0f%s\nTime: %s",
		label, v.Value, v.Unit, v.Threshold, v.Unit, timeStr,
	)
}

// PartialNotificationError reports which backends failed in a composite
// send; spec.md §4.8 addition not present in the Python source, which
// silently swallowed per-backend errors via return_exceptions=True.
type PartialNotificationError struct {
	Failures map[string]error
	Total    int
}

func (e *PartialNotificationError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for name, err := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", name, err))
	}
	return fmt.Sprintf("%d of %d backend(s) failed: %s", len(e.Failures), e.Total, strings.Join(parts, "; "))
}

// Dispatcher sends a violation to every configured backend.
type Dispatcher struct {
	backends []Backend
	log      zerolog.Logger
}

// New builds a Dispatcher. An empty backend list is valid and behaves as a
// no-op notifier, matching the source's NoOpNotifier fallback.
func New(log zerolog.Logger, backends ...Backend) *Dispatcher {
	return &Dispatcher{
		backends: backends,
		log:      log.With().Str("component", "notify").Logger(),
	}
}

// Send fans the violation out to every backend concurrently and returns a
// *PartialNotificationError listing the failed backends if any backend
// failed (including when every backend failed), or nil if all succeeded.
func (d *Dispatcher) Send(ctx context.Context, violation alerts.ThresholdViolation) error {
	if len(d.backends) == 0 {
		d.log.Info().Str("sensor", violation.SensorName.String()).Msg("notifications disabled, ignoring alert")
		return nil
	}

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(d.backends))

	for _, b := range d.backends {
		b := b
		go func() {
			err := b.Send(ctx, violation)
			results <- result{name: b.Name(), err: err}
		}()
	}

	failures := make(map[string]error)
	for range d.backends {
		r := <-results
		if r.err != nil {
			d.log.Error().Err(r.err).Str("backend", r.name).Msg("notification send failed")
			failures[r.name] = r.err
		}
	}

	if len(failures) == 0 {
		return nil
	}
	return &PartialNotificationError{Failures: failures, Total: len(d.backends)}
}
