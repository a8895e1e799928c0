package retention

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rpi-gardener/greenhouse/internal/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "greenhouse.db")
	db, err := database.New(path, database.Options{Mode: database.Persistent})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestJobRunContextDeletesOldRowsOnly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC()
	old := now.AddDate(0, 0, -40)
	recent := now.AddDate(0, 0, -1)

	_, err := db.Execute(ctx, "INSERT INTO reading (temperature, humidity, recording_time) VALUES (?, ?, ?)", 21.0, 55.0, old)
	require.NoError(t, err)
	_, err = db.Execute(ctx, "INSERT INTO reading (temperature, humidity, recording_time) VALUES (?, ?, ?)", 22.0, 56.0, recent)
	require.NoError(t, err)
	_, err = db.Execute(ctx, "INSERT INTO pico_reading (plant_id, moisture, recording_time) VALUES (?, ?, ?)", 1, 40.0, old)
	require.NoError(t, err)

	job := New(db, nil, 30, zerolog.Nop())
	require.NoError(t, job.RunContext(ctx))

	var readingCount, picoCount int
	require.NoError(t, db.FetchOne(ctx, "SELECT COUNT(*) FROM reading", nil, func(row *sql.Row) error {
		return row.Scan(&readingCount)
	}))
	require.NoError(t, db.FetchOne(ctx, "SELECT COUNT(*) FROM pico_reading", nil, func(row *sql.Row) error {
		return row.Scan(&picoCount)
	}))

	require.Equal(t, 1, readingCount)
	require.Equal(t, 0, picoCount)
}

func TestJobName(t *testing.T) {
	job := New(nil, nil, 30, zerolog.Nop())
	require.Equal(t, "retention_cleanup", job.Name())
}
