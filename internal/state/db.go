// Package state provides SQLite-based persistence for jobforge runs.
// It records runs, their event logs and periodic world snapshots, either in
// the global database (~/.local/share/jobforge/jobforge.db) or a
// project-local one (.jobforge/state.db).
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	// DriverModernc is the pure-Go driver and the default.
	DriverModernc = "sqlite"
	// DriverCgo is the cgo driver backed by the SQLite C library.
	DriverCgo = "sqlite3"
)

// DB wraps an SQLite database connection with jobforge-specific operations.
type DB struct {
	conn   *sql.DB
	path   string
	driver string
	mu     sync.RWMutex
}

// ProjectDBPath returns the path to the project-local database.
func ProjectDBPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".jobforge", "state.db")
}

// Open opens an SQLite database at the given path with the default driver.
func Open(path string) (*DB, error) {
	return OpenWithDriver(DriverModernc, path)
}

// OpenWithDriver opens an SQLite database with driver "sqlite" or "sqlite3".
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func OpenWithDriver(driver, path string) (*DB, error) {
	switch driver {
	case "":
		driver = DriverModernc
	case DriverModernc, DriverCgo:
	default:
		return nil, fmt.Errorf("unknown sqlite driver %q", driver)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer at a time.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{conn: conn, path: path, driver: driver}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Driver returns the database/sql driver name in use.
func (db *DB) Driver() string {
	return db.driver
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Runs},
		{2, migrationV2Events},
		{3, migrationV3Snapshots},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Migration SQL statements
const migrationV1Runs = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	scenario TEXT NOT NULL,
	policy TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	ticks INTEGER NOT NULL DEFAULT 0,
	pid INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'running'
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

const migrationV2Events = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	tick INTEGER NOT NULL,
	topic TEXT NOT NULL,
	entity INTEGER NOT NULL,
	payload TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick);
CREATE INDEX IF NOT EXISTS idx_events_topic ON events(topic);
`

const migrationV3Snapshots = `
CREATE TABLE IF NOT EXISTS snapshots (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	tick INTEGER NOT NULL,
	world TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (run_id, tick)
);
`

// Exec executes a query that doesn't return rows.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows.
func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row.
func (db *DB) QueryRow(query string, args ...any) *sql.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryRow(query, args...)
}

// Transaction runs the given function within a transaction.
func (db *DB) Transaction(fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// timeLayout is fixed-width so stored times compare correctly as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

// parseNullableTime parses a nullable time string from SQLite.
func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}

// PurgeOldRuns deletes runs started before now minus olderThan, together
// with their events and snapshots. Returns the number of runs deleted.
func (db *DB) PurgeOldRuns(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	var count int64
	err := db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM events WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, cutoff); err != nil {
			return fmt.Errorf("purge events: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM snapshots WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, cutoff); err != nil {
			return fmt.Errorf("purge snapshots: %w", err)
		}
		result, err := tx.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("purge old runs: %w", err)
		}
		count, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	return count, err
}
