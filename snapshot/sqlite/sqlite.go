// Package sqlite stores simulation snapshots in an SQLite database using the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/agentorg/snapshot"
)

const schemaV1 = `
CREATE TABLE IF NOT EXISTS snapshots (
	run_id    TEXT PRIMARY KEY,
	goal      TEXT NOT NULL,
	tasks     INTEGER NOT NULL,
	complete  INTEGER NOT NULL,
	saved_at  INTEGER NOT NULL,
	data      BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_saved_at ON snapshots(saved_at);
`

// Store is a snapshot.Store backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

var _ snapshot.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the
// schema. ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if s.path != ":memory:" {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("enable WAL mode: %w", err)
		}
	}
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}
	migrations := []struct {
		version int
		sql     string
	}{
		{1, schemaV1},
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)", m.version, time.Now().Unix()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Save inserts or replaces the snapshot of snap.RunID.
func (s *Store) Save(ctx context.Context, snap snapshot.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (run_id, goal, tasks, complete, saved_at, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			goal = excluded.goal,
			tasks = excluded.tasks,
			complete = excluded.complete,
			saved_at = excluded.saved_at,
			data = excluded.data`,
		snap.RunID, snap.Goal, len(snap.Tasks), snap.Complete, snap.SavedAt.UnixNano(), data)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.RunID, err)
	}
	return nil
}

// Load returns the snapshot of runID.
func (s *Store) Load(ctx context.Context, runID string) (snapshot.Snapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM snapshots WHERE run_id = ?", runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshot.Snapshot{}, snapshot.ErrNotFound
	}
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("load snapshot %s: %w", runID, err)
	}
	var snap snapshot.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", runID, err)
	}
	return snap, nil
}

// List returns the stored runs, most recently saved first.
func (s *Store) List(ctx context.Context) ([]snapshot.Summary, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT run_id, goal, tasks, complete, saved_at FROM snapshots ORDER BY saved_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []snapshot.Summary
	for rows.Next() {
		var (
			sum     snapshot.Summary
			savedAt int64
		)
		if err := rows.Scan(&sum.RunID, &sum.Goal, &sum.Tasks, &sum.Complete, &savedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		sum.SavedAt = time.Unix(0, savedAt).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}
