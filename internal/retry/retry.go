// Package retry implements exponential backoff retry, grounded on
// original_source/rpi/lib/retry.py's with_retry. Go has no
// exception-type matching, so the retryable/non-retryable distinction
// becomes a predicate the caller supplies.
package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Options configures a retry attempt sequence.
type Options struct {
	Name            string
	MaxRetries      int
	InitialBackoff  time.Duration
	// Retryable decides whether err should trigger another attempt. A nil
	// Retryable treats every error as retryable.
	Retryable func(err error) bool
}

// Do runs fn up to opts.MaxRetries times, doubling the backoff delay after
// each retryable failure (spec.md §4.6/§4.8 "Retry"). It returns nil on
// success, or the last error seen if every attempt failed or a
// non-retryable error was returned.
func Do(ctx context.Context, log zerolog.Logger, opts Options, fn func(ctx context.Context) error) error {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	backoff := opts.InitialBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	retryable := opts.Retryable
	if retryable == nil {
		retryable = func(error) bool { return true }
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if !retryable(err) {
			log.Error().Err(err).Str("name", opts.Name).Msg("non-retryable failure")
			return err
		}

		lastErr = err
		delay := backoff * time.Duration(1<<uint(attempt))
		log.Warn().
			Err(err).
			Str("name", opts.Name).
			Int("attempt", attempt+1).
			Int("max_retries", maxRetries).
			Dur("retry_in", delay).
			Msg("retrying after failure")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	log.Error().Err(lastErr).Str("name", opts.Name).Int("attempts", maxRetries).Msg("all retry attempts exhausted")
	return lastErr
}
