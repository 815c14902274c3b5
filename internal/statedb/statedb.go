// Package statedb indexes runs in a local SQLite database so listing and
// lookup never have to walk every run directory.
package statedb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("statedb: not found")

// LastRunKey is the state key holding the most recent apply run ID.
const LastRunKey = "last_run"

type DB struct {
	db   *sql.DB
	path string
}

// RunRecord is one indexed run.
type RunRecord struct {
	ID          string `json:"id"`
	Profile     string `json:"profile"`
	State       string `json:"state"` // RUNNING / COMPLETED / COMPLETED_WITH_FAILURES / ABORTED / REVERTED
	ActionCount int    `json:"action_count"`
	StartedAt   string `json:"started_at"` // RFC3339
	EndedAt     string `json:"ended_at"`   // RFC3339 or empty
}

// StateEntry is one key-value state row (e.g. the last_run pointer).
type StateEntry struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	UpdatedAt string `json:"updated_at"` // RFC3339
}

// Open creates or opens the database at path with WAL mode, a 5 second
// busy timeout, and foreign keys enabled, creating tables as needed.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("statedb: open: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("statedb: ping: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("statedb: %s: %w", p, err)
		}
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id           TEXT PRIMARY KEY,
			profile      TEXT NOT NULL DEFAULT '',
			state        TEXT NOT NULL DEFAULT 'RUNNING',
			action_count INTEGER NOT NULL DEFAULT 0,
			started_at   TEXT NOT NULL,
			ended_at     TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS state (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}
	for _, ddl := range tables {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("statedb: create table: %w", err)
		}
	}

	return &DB{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// InsertRun inserts a new run record.
func (d *DB) InsertRun(r RunRecord) error {
	_, err := d.db.Exec(
		`INSERT INTO runs (id, profile, state, action_count, started_at, ended_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Profile, r.State, r.ActionCount, r.StartedAt, r.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("statedb: insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run record by ID.
func (d *DB) GetRun(id string) (RunRecord, error) {
	var r RunRecord
	err := d.db.QueryRow(
		`SELECT id, profile, state, action_count, started_at, ended_at FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Profile, &r.State, &r.ActionCount, &r.StartedAt, &r.EndedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, ErrNotFound
		}
		return RunRecord{}, fmt.Errorf("statedb: get run: %w", err)
	}
	return r, nil
}

// UpdateRunState updates a run's state. Terminal states stamp ended_at.
func (d *DB) UpdateRunState(id, state string) error {
	endedAt := ""
	if state != "RUNNING" {
		endedAt = time.Now().UTC().Format(time.RFC3339)
	}

	var result sql.Result
	var err error
	if endedAt != "" {
		result, err = d.db.Exec(`UPDATE runs SET state = ?, ended_at = ? WHERE id = ?`, state, endedAt, id)
	} else {
		result, err = d.db.Exec(`UPDATE runs SET state = ? WHERE id = ?`, state, id)
	}
	if err != nil {
		return fmt.Errorf("statedb: update run state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("statedb: rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRuns returns the most recent runs ordered by started_at descending.
// A limit of 0 returns everything.
func (d *DB) ListRuns(limit int) ([]RunRecord, error) {
	query := `SELECT id, profile, state, action_count, started_at, ended_at FROM runs ORDER BY started_at DESC`

	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = d.db.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = d.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("statedb: list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Profile, &r.State, &r.ActionCount, &r.StartedAt, &r.EndedAt); err != nil {
			return nil, fmt.Errorf("statedb: scan run: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("statedb: rows runs: %w", err)
	}
	return records, nil
}

// DeleteRun removes one run record, used by retention pruning.
func (d *DB) DeleteRun(id string) error {
	if _, err := d.db.Exec(`DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("statedb: delete run: %w", err)
	}
	return nil
}

// SetState upserts a key-value state entry.
func (d *DB) SetState(key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO state (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, now,
	)
	if err != nil {
		return fmt.Errorf("statedb: set state: %w", err)
	}
	return nil
}

// GetState retrieves a state entry by key.
func (d *DB) GetState(key string) (StateEntry, error) {
	var e StateEntry
	err := d.db.QueryRow(
		`SELECT key, value, updated_at FROM state WHERE key = ?`, key,
	).Scan(&e.Key, &e.Value, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StateEntry{}, ErrNotFound
		}
		return StateEntry{}, fmt.Errorf("statedb: get state: %w", err)
	}
	return e, nil
}
