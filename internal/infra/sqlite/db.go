// Package sqlite persists engagement state, the pick ledger and the
// notification outbox in a single WAL-mode SQLite file.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens dir/state.db and brings its schema up to date.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// schema is applied in order; entry i brings the database to version i+1.
// Append only: released steps must never change.
var schema = [][]string{
	{
		// Engagement state, one row per persisted field
		`CREATE TABLE engagement (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		// Pick ledger: one row per calendar day, never updated or deleted
		`CREATE TABLE picks (
			day        TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL
		)`,
	},
	{
		`CREATE TABLE notifications (
			id         TEXT PRIMARY KEY,
			type       TEXT NOT NULL,
			title      TEXT NOT NULL,
			body       TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			shown      BOOLEAN DEFAULT 0
		)`,
		`CREATE INDEX idx_notif_created ON notifications(created_at)`,
	},
}

// SchemaVersion is the version a freshly migrated database reports.
const SchemaVersion = 2

// Version returns the schema version recorded in the database.
func (d *DB) Version() (int, error) {
	var v int
	if err := d.db.QueryRow(`PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// migrate applies every schema step above the recorded version, each in
// its own transaction together with the version bump.
func (d *DB) migrate() error {
	current, err := d.Version()
	if err != nil {
		return err
	}
	if current > len(schema) {
		return fmt.Errorf("database schema v%d is newer than this binary (v%d)", current, len(schema))
	}

	for v := current; v < len(schema); v++ {
		tx, err := d.db.Begin()
		if err != nil {
			return err
		}
		for _, stmt := range schema[v] {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("schema v%d: %w\nSQL: %s", v+1, err, stmt)
			}
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("schema v%d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("schema v%d: %w", v+1, err)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
