// Package database wraps the pure-Go modernc.org/sqlite driver with the two
// connection-sharing patterns spec.md §4.1 requires: a persistent
// single-connection mode for polling processes, and a semaphore-bounded pool
// mode for the HTTP/WS server. Grounded on the teacher's internal/database/db.go,
// which already picks modernc.org/sqlite specifically to avoid a cgo toolchain
// on a Raspberry Pi cross-build.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotConnected is returned by any operation attempted before New succeeds
// or after Close (spec.md §4.1 "a non-connected access fails with NotConnected").
var ErrNotConnected = errors.New("database: not connected")

// Mode selects the connection-sharing pattern.
type Mode int

const (
	// Persistent opens a single connection reused sequentially by one
	// polling loop (spec.md §4.1 "Persistent single-connection mode").
	Persistent Mode = iota
	// Pool opens up to PoolSize connections, acquisition bounded by a
	// counting semaphore (spec.md §4.1 "Bounded pool mode").
	Pool
)

// DB wraps a SQLite connection (or connection pool) opened against the
// on-disk reading/settings/admin schema (spec.md §6 "Persisted state layout").
type DB struct {
	conn         *sql.DB
	path         string
	mode         Mode
	sem          chan struct{} // nil in Persistent mode; bounds concurrent pool acquisitions
	queryTimeout time.Duration
}

// Options configures New.
type Options struct {
	Mode         Mode
	PoolSize     int           // only meaningful for Mode == Pool; default 5
	QueryTimeout time.Duration // default 5s
}

// New opens the database file, applying the startup invariants from
// spec.md §4.1: WAL journal mode, incremental auto-vacuum, foreign keys on.
func New(dbPath string, opts Options) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=auto_vacuum(INCREMENTAL)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	poolSize := opts.PoolSize
	if poolSize <= 0 {
		poolSize = 5
	}
	queryTimeout := opts.QueryTimeout
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}

	db := &DB{conn: conn, path: dbPath, mode: opts.Mode, queryTimeout: queryTimeout}

	switch opts.Mode {
	case Persistent:
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	case Pool:
		conn.SetMaxOpenConns(poolSize)
		conn.SetMaxIdleConns(poolSize)
		db.sem = make(chan struct{}, poolSize)
	}

	return db, nil
}

// Close closes the connection (or pool). In pool mode the pool may be
// reopened in the same process lifetime by calling New again.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	return err
}

// Conn exposes the underlying *sql.DB for callers that need raw access
// (e.g. repository-style query helpers built on top of this package).
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the on-disk database file path.
func (db *DB) Path() string {
	return db.path
}

// acquire bounds concurrent logical operations in Pool mode so a stuck query
// cannot starve the rest of the pool; it is a no-op in Persistent mode, where
// sequential await by a single owning loop already serializes access.
func (db *DB) acquire(ctx context.Context) (func(), error) {
	if db.sem == nil {
		return func() {}, nil
	}
	select {
	case db.sem <- struct{}{}:
		return func() { <-db.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Execute runs a statement that doesn't return rows.
func (db *DB) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if db.conn == nil {
		return nil, ErrNotConnected
	}
	release, err := db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, db.queryTimeout)
	defer cancel()
	return db.conn.ExecContext(ctx, query, args...)
}

// ExecuteMany runs the same statement once per row of argSets, inside a
// single transaction (spec.md §4.1 `execute_many`).
func (db *DB) ExecuteMany(ctx context.Context, query string, argSets [][]any) error {
	return db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, args := range argSets {
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return err
			}
		}
		return nil
	})
}

// FetchOne runs query and calls scan against the single resulting row. It
// returns sql.ErrNoRows if there is no match, matching database/sql idiom.
func (db *DB) FetchOne(ctx context.Context, query string, args []any, scan func(*sql.Row) error) error {
	if db.conn == nil {
		return ErrNotConnected
	}
	release, err := db.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, db.queryTimeout)
	defer cancel()
	return scan(db.conn.QueryRowContext(ctx, query, args...))
}

// FetchAll runs query and calls scan once per row via rows.Next(); scan is
// responsible for calling rows.Scan(...) and appending to its own collector.
func (db *DB) FetchAll(ctx context.Context, query string, args []any, scan func(*sql.Rows) error) error {
	if db.conn == nil {
		return ErrNotConnected
	}
	release, err := db.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, db.queryTimeout)
	defer cancel()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Transaction runs fn inside a BEGIN/COMMIT block, rolling back on error or
// panic (spec.md §4.1 `transaction() scope`).
func (db *DB) Transaction(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	if db.conn == nil {
		return ErrNotConnected
	}
	release, err := db.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}

// Pragma executes a PRAGMA statement directly against the connection.
func (db *DB) Pragma(ctx context.Context, pragma string) error {
	if db.conn == nil {
		return ErrNotConnected
	}
	_, err := db.conn.ExecContext(ctx, "PRAGMA "+pragma)
	return err
}
