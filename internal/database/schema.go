package database

import "context"

// Persisted state layout (spec.md §6). Table creation is idempotent (IF NOT
// EXISTS) so every process can call Migrate at startup regardless of which
// process created the file first.
const (
	createReadingTable = `
CREATE TABLE IF NOT EXISTS reading (
	temperature REAL NOT NULL,
	humidity REAL NOT NULL,
	recording_time TIMESTAMP NOT NULL
)`
	createReadingIndex = `
CREATE INDEX IF NOT EXISTS idx_reading_time ON reading (recording_time)`

	createPicoReadingTable = `
CREATE TABLE IF NOT EXISTS pico_reading (
	plant_id INTEGER NOT NULL,
	moisture REAL NOT NULL,
	recording_time TIMESTAMP NOT NULL
)`
	createPicoReadingIndex = `
CREATE INDEX IF NOT EXISTS idx_pico_reading_plant_time ON pico_reading (plant_id, recording_time)`

	createSettingsTable = `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

	createAdminTable = `
CREATE TABLE IF NOT EXISTS admin (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	password_hash TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`
)

// Migrate creates the schema if absent. It is safe to call from every
// process at startup (spec.md §4.1 "required tables created if absent").
func (db *DB) Migrate(ctx context.Context) error {
	statements := []string{
		createReadingTable,
		createReadingIndex,
		createPicoReadingTable,
		createPicoReadingIndex,
		createSettingsTable,
		createAdminTable,
	}
	for _, stmt := range statements {
		if _, err := db.Execute(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
