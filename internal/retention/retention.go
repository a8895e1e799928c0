// Package retention implements the scheduled reading-table cleanup job
// (spec.md §4.12 "Retention cleanup"), grounded on
// original_source/rpi/db_cleanup.py: delete rows older than the configured
// retention window, then reclaim space with an incremental vacuum. Unlike
// the original's hardcoded settings read, retentionDays is pulled through
// internal/settings so an admin-API change takes effect on the next run
// without a restart.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rpi-gardener/greenhouse/internal/database"
	"github.com/rpi-gardener/greenhouse/internal/settings"
)

const vacuumPages = 500

// Job deletes reading/pico_reading rows older than the configured retention
// window and satisfies scheduler.Job so it can be registered on a cron
// schedule alongside the server process.
type Job struct {
	db          *database.DB
	store       *settings.Store
	defaultDays int
	log         zerolog.Logger
}

func New(db *database.DB, store *settings.Store, defaultRetentionDays int, log zerolog.Logger) *Job {
	return &Job{
		db:          db,
		store:       store,
		defaultDays: defaultRetentionDays,
		log:         log.With().Str("component", "retention").Logger(),
	}
}

func (j *Job) Name() string { return "retention_cleanup" }

// Run is scheduler.Job's synchronous entry point; it derives its own
// bounded context since cron jobs are not handed one.
func (j *Job) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return j.RunContext(ctx)
}

// RunContext performs one cleanup pass: resolve the current retention
// window, delete everything older than it, and reclaim the freed pages.
func (j *Job) RunContext(ctx context.Context) error {
	days := j.defaultDays
	if j.store != nil {
		values, err := j.store.GetAll(ctx)
		if err != nil {
			j.log.Warn().Err(err).Msg("failed to read retention setting, using configured default")
		} else {
			days = settings.NewReader(values).Int(settings.KeyRetentionDays, j.defaultDays)
		}
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	j.log.Info().Int("retention_days", days).Time("cutoff", cutoff).Msg("starting retention cleanup")

	readingResult, err := j.db.Execute(ctx, "DELETE FROM reading WHERE recording_time < ?", cutoff)
	if err != nil {
		return fmt.Errorf("delete old readings: %w", err)
	}
	picoResult, err := j.db.Execute(ctx, "DELETE FROM pico_reading WHERE recording_time < ?", cutoff)
	if err != nil {
		return fmt.Errorf("delete old pico readings: %w", err)
	}

	if err := j.db.Pragma(ctx, fmt.Sprintf("incremental_vacuum(%d)", vacuumPages)); err != nil {
		return fmt.Errorf("incremental vacuum: %w", err)
	}

	readingDeleted, _ := readingResult.RowsAffected()
	picoDeleted, _ := picoResult.RowsAffected()
	j.log.Info().
		Int64("reading_rows_deleted", readingDeleted).
		Int64("pico_rows_deleted", picoDeleted).
		Msg("retention cleanup complete")

	return nil
}
