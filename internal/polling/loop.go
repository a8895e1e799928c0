// Package polling implements the generic fixed-cadence poll → audit →
// persist loop (spec.md §4.6), grounded on
// original_source/rpi/lib/polling.py's PollingService[T] base class.
// Go has no async event loop to borrow time from, so the cadence
// bookkeeping (cycle_start, max(0, freq-elapsed) sleep) is reproduced with
// time.Now and a cancellable timer against a context the caller cancels —
// signal handling itself stays in cmd/*/main.go, matching the teacher's
// main() shutdown idiom rather than the source's in-class signal.signal.
package polling

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Service is implemented by each concrete poller (DHT, moisture) and driven
// by Loop. T is the reading type produced by Poll.
type Service[T any] interface {
	// Name identifies the service in logs.
	Name() string
	// Initialize acquires resources needed before polling starts.
	Initialize(ctx context.Context) error
	// Poll takes one reading. A nil-ish false return (via ok) means no
	// reading was available this cycle and audit/persist are skipped.
	Poll(ctx context.Context) (reading T, ok bool, err error)
	// Audit validates a reading before it is persisted.
	Audit(ctx context.Context, reading T) bool
	// Persist stores a validated reading.
	Persist(ctx context.Context, reading T) error
	// Cleanup releases resources on shutdown.
	Cleanup(ctx context.Context) error
}

// ErrorHandler is called with any error raised during a poll cycle
// (spec.md §4.6 "on_poll_error"); the loop always continues to the next
// cycle regardless of what this does.
type ErrorHandler func(err error)

// Loop runs svc's poll → audit → persist cycle at a fixed cadence until ctx
// is cancelled (spec.md §4.6 "Cadence").
type Loop[T any] struct {
	svc       Service[T]
	frequency time.Duration
	onError   ErrorHandler
	log       zerolog.Logger
}

// New builds a Loop. frequency <= 0 defaults to one second, matching the
// source's behavior of always producing a positive sleep_time floor.
func New[T any](svc Service[T], frequency time.Duration, onError ErrorHandler, log zerolog.Logger) *Loop[T] {
	if frequency <= 0 {
		frequency = time.Second
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Loop[T]{
		svc:       svc,
		frequency: frequency,
		onError:   onError,
		log:       log.With().Str("component", "polling").Str("service", svc.Name()).Logger(),
	}
}

// Run blocks, executing cycles until ctx is cancelled, then calls
// Cleanup and returns.
func (l *Loop[T]) Run(ctx context.Context) error {
	if err := l.svc.Initialize(ctx); err != nil {
		return err
	}
	l.log.Info().Msg("polling service started")

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.svc.Cleanup(cleanupCtx); err != nil {
			l.log.Error().Err(err).Msg("cleanup failed")
		}
		l.log.Info().Msg("polling service shutdown complete")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		cycleStart := time.Now()
		if err := l.cycle(ctx); err != nil {
			l.onError(err)
		}

		elapsed := time.Since(cycleStart)
		sleepFor := l.frequency - elapsed
		if sleepFor <= 0 {
			continue
		}

		timer := time.NewTimer(sleepFor)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (l *Loop[T]) cycle(ctx context.Context) error {
	reading, ok, err := l.svc.Poll(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if !l.svc.Audit(ctx, reading) {
		return nil
	}
	return l.svc.Persist(ctx, reading)
}
