package server

import (
	"context"
	"database/sql"
	"time"

	"github.com/rpi-gardener/greenhouse/internal/database"
)

// dhtRow mirrors one row of the reading table, serialized for the
// dashboard/SSE/WS JSON responses (spec.md §6 "reading table").
type dhtRow struct {
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	RecordingTime string  `json:"recording_time"`
}

type picoRow struct {
	PlantID       int     `json:"plant_id"`
	Moisture      float64 `json:"moisture"`
	RecordingTime string  `json:"recording_time"`
}

type dhtStatsRow struct {
	MinTemperature float64 `json:"min_temperature"`
	MaxTemperature float64 `json:"max_temperature"`
	AvgTemperature float64 `json:"avg_temperature"`
	MinHumidity    float64 `json:"min_humidity"`
	MaxHumidity    float64 `json:"max_humidity"`
	AvgHumidity    float64 `json:"avg_humidity"`
}

const recordingTimeLayout = "2006-01-02 15:04:05"

// targetChartPoints is the ~fixed point count a chart query downsamples to
// regardless of window size (spec.md §4.9 "Query-param bucketing"),
// grounded on original_source/rpi/lib/db/queries.py's
// _calculate_bucket_size(target_points=500).
const targetChartPoints = 500

// bucketSizeSeconds mirrors _calculate_bucket_size: the window is divided
// into targetChartPoints buckets, floored at 1 second so short windows
// aren't aggregated at all.
func bucketSizeSeconds(since time.Time) int64 {
	windowSeconds := int64(time.Now().UTC().Sub(since).Seconds())
	bucket := windowSeconds / targetChartPoints
	if bucket < 1 {
		bucket = 1
	}
	return bucket
}

func getLatestDHT(ctx context.Context, db *database.DB) (*dhtRow, error) {
	var row dhtRow
	err := db.FetchOne(ctx,
		"SELECT temperature, humidity, recording_time FROM reading ORDER BY recording_time DESC LIMIT 1",
		nil, func(r *sql.Row) error {
			return r.Scan(&row.Temperature, &row.Humidity, &row.RecordingTime)
		})
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func getLatestPico(ctx context.Context, db *database.DB) ([]picoRow, error) {
	var rows []picoRow
	err := db.FetchAll(ctx, `
		SELECT plant_id, moisture, recording_time FROM pico_reading p
		WHERE recording_time = (
			SELECT MAX(recording_time) FROM pico_reading WHERE plant_id = p.plant_id
		)
		ORDER BY plant_id`, nil, func(r *sql.Rows) error {
		var row picoRow
		if err := r.Scan(&row.PlantID, &row.Moisture, &row.RecordingTime); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

// getInitialDHT returns the chart series for the window, downsampled to
// ~targetChartPoints rows by averaging within fixed-size time buckets
// (spec.md §4.9 "Query-param bucketing"), grounded on
// original_source/rpi/lib/db/queries.py + views/_queries.py's
// dht_chart.sql (bucketed GROUP BY in place of the raw-row template).
func getInitialDHT(ctx context.Context, db *database.DB, since time.Time) ([]dhtRow, error) {
	bucket := bucketSizeSeconds(since)
	var rows []dhtRow
	err := db.FetchAll(ctx, `
		SELECT AVG(temperature), AVG(humidity), MIN(recording_time)
		FROM reading
		WHERE recording_time >= ?
		GROUP BY CAST(strftime('%s', recording_time) / ? AS INTEGER)
		ORDER BY recording_time ASC`,
		[]any{since.UTC().Format(recordingTimeLayout), bucket}, func(r *sql.Rows) error {
			var row dhtRow
			if err := r.Scan(&row.Temperature, &row.Humidity, &row.RecordingTime); err != nil {
				return err
			}
			rows = append(rows, row)
			return nil
		})
	return rows, err
}

// getInitialPico returns each plant's chart series for the window,
// downsampled the same way as getInitialDHT, bucketed per plant
// (original_source/rpi/lib/db/queries.py + views/_queries.py's
// pico_chart.sql).
func getInitialPico(ctx context.Context, db *database.DB, since time.Time) ([]picoRow, error) {
	bucket := bucketSizeSeconds(since)
	var rows []picoRow
	err := db.FetchAll(ctx, `
		SELECT plant_id, AVG(moisture), MIN(recording_time)
		FROM pico_reading
		WHERE recording_time >= ?
		GROUP BY plant_id, CAST(strftime('%s', recording_time) / ? AS INTEGER)
		ORDER BY recording_time ASC, plant_id ASC`,
		[]any{since.UTC().Format(recordingTimeLayout), bucket}, func(r *sql.Rows) error {
			var row picoRow
			if err := r.Scan(&row.PlantID, &row.Moisture, &row.RecordingTime); err != nil {
				return err
			}
			rows = append(rows, row)
			return nil
		})
	return rows, err
}

func getStatsDHT(ctx context.Context, db *database.DB, since time.Time) (*dhtStatsRow, error) {
	var row dhtStatsRow
	err := db.FetchOne(ctx, `
		SELECT
			COALESCE(MIN(temperature), 0), COALESCE(MAX(temperature), 0), COALESCE(AVG(temperature), 0),
			COALESCE(MIN(humidity), 0), COALESCE(MAX(humidity), 0), COALESCE(AVG(humidity), 0)
		FROM reading WHERE recording_time >= ?`,
		[]any{since.UTC().Format(recordingTimeLayout)}, func(r *sql.Row) error {
			return r.Scan(&row.MinTemperature, &row.MaxTemperature, &row.AvgTemperature,
				&row.MinHumidity, &row.MaxHumidity, &row.AvgHumidity)
		})
	if err != nil {
		return nil, err
	}
	return &row, nil
}
