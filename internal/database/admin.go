package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/rpi-gardener/greenhouse/internal/auth"
)

// GetAdminPasswordHash returns the stored admin password hash, or ("", nil)
// if no admin password has been configured yet.
func (db *DB) GetAdminPasswordHash(ctx context.Context) (string, error) {
	var hash string
	err := db.FetchOne(ctx, "SELECT password_hash FROM admin WHERE id = 1", nil, func(row *sql.Row) error {
		return row.Scan(&hash)
	})
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

// SetAdminPasswordHash inserts or replaces the single admin password row.
func (db *DB) SetAdminPasswordHash(ctx context.Context, hash string) error {
	_, err := db.Execute(ctx, `
		INSERT INTO admin (id, password_hash, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			password_hash = excluded.password_hash,
			updated_at = excluded.updated_at`,
		hash, time.Now().UTC())
	return err
}

// SeedAdminPassword hashes and stores initialPassword if no admin password
// exists yet (spec.md §4.1 "admin table seeded with a freshly hashed password
// if an environment-supplied initial password is present"). A blank
// initialPassword with no existing row is not an error — the admin API
// simply stays locked behind a 503 until a password is configured.
func (db *DB) SeedAdminPassword(ctx context.Context, initialPassword string) error {
	existing, err := db.GetAdminPasswordHash(ctx)
	if err != nil {
		return err
	}
	if existing != "" || initialPassword == "" {
		return nil
	}

	hash, err := auth.HashPassword(initialPassword)
	if err != nil {
		return err
	}
	return db.SetAdminPasswordHash(ctx, hash)
}
