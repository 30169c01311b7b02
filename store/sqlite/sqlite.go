/*
Package sqlite provides a SQLite-backed implementation of pipeline.RunStore.

PURPOSE:
  Keeps the history of pipeline runs (result, message, full log text, stage
  timings) and the analysis snapshot taken after each successful run, so the
  API can serve past results without re-reading the workbook.

KEY TABLES:
  runs:               one row per pipeline run
  analysis_snapshots: metrics.Analysis as JSON, keyed by ledger path

INDEXES:
  - idx_runs_started_at:           run history, newest first
  - idx_snapshots_ledger_taken_at: latest snapshot per ledger

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. With PostgreSQL (store/postgres),
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/kpi.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  p := pipeline.New(xlsx.OpenStore, logger)
  p.Runs = store

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - pipeline/store.go: RunStore interface and in-memory implementation
  - store/postgres: same contract over pgx
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/inspection-kpi/pipeline"
)

// timeLayout sorts lexically in chronological order (UTC, fixed width).
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Store implements pipeline.RunStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ pipeline.RunStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each :memory: connection is its own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Pipeline runs
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		variant TEXT NOT NULL DEFAULT '',
		system TEXT NOT NULL DEFAULT '',
		ledger_path TEXT NOT NULL,
		feed_path TEXT NOT NULL DEFAULT '',
		success BOOLEAN NOT NULL,
		message TEXT NOT NULL,
		output_path TEXT NOT NULL DEFAULT '',
		logs TEXT NOT NULL DEFAULT '',
		stages_json TEXT NOT NULL DEFAULT '[]',
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at
		ON runs(started_at DESC);

	-- Analysis snapshots (one per successful run)
	CREATE TABLE IF NOT EXISTS analysis_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		ledger_path TEXT NOT NULL,
		site TEXT NOT NULL DEFAULT '',
		taken_at TEXT NOT NULL,
		analysis_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_ledger_taken_at
		ON analysis_snapshots(ledger_path, taken_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RUNS
// =============================================================================

// SaveRun inserts a run, replacing any run with the same ID.
func (s *Store) SaveRun(ctx context.Context, run pipeline.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stagesJSON, err := json.Marshal(run.Stages)
	if err != nil {
		return fmt.Errorf("failed to encode stages: %w", err)
	}

	query := `
		INSERT INTO runs
		(id, variant, system, ledger_path, feed_path, success, message, output_path,
		 logs, stages_json, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			success = excluded.success,
			message = excluded.message,
			output_path = excluded.output_path,
			logs = excluded.logs,
			stages_json = excluded.stages_json,
			finished_at = excluded.finished_at
	`

	_, err = s.db.ExecContext(ctx, query,
		run.ID,
		run.Variant,
		run.System,
		run.LedgerPath,
		run.FeedPath,
		run.Success,
		run.Message,
		run.OutputPath,
		run.Logs,
		string(stagesJSON),
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun returns a run by ID, or pipeline.ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (pipeline.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, variant, system, ledger_path, feed_path, success, message, output_path,
		       logs, stages_json, started_at, finished_at
		FROM runs
		WHERE id = ?
	`

	runs, err := s.queryRuns(ctx, query, id)
	if err != nil {
		return pipeline.Run{}, err
	}
	if len(runs) == 0 {
		return pipeline.Run{}, pipeline.ErrRunNotFound
	}
	return runs[0], nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]pipeline.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	query := `
		SELECT id, variant, system, ledger_path, feed_path, success, message, output_path,
		       logs, stages_json, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	return s.queryRuns(ctx, query, limit)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]pipeline.Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []pipeline.Run
	for rows.Next() {
		var r pipeline.Run
		var stagesJSON, startedAt, finishedAt string

		if err := rows.Scan(&r.ID, &r.Variant, &r.System, &r.LedgerPath, &r.FeedPath,
			&r.Success, &r.Message, &r.OutputPath, &r.Logs, &stagesJSON,
			&startedAt, &finishedAt); err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(stagesJSON), &r.Stages); err != nil {
			return nil, fmt.Errorf("failed to decode stages of run %s: %w", r.ID, err)
		}
		r.StartedAt, _ = time.Parse(timeLayout, startedAt)
		r.FinishedAt, _ = time.Parse(timeLayout, finishedAt)

		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// ANALYSIS SNAPSHOTS
// =============================================================================

// SaveSnapshot appends an analysis snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap pipeline.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	analysisJSON, err := json.Marshal(snap.Analysis)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_snapshots (run_id, ledger_path, site, taken_at, analysis_json)
		VALUES (?, ?, ?, ?, ?)`,
		snap.RunID, snap.LedgerPath, snap.Site, formatTime(snap.TakenAt), string(analysisJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot for a ledger path.
func (s *Store) LatestSnapshot(ctx context.Context, ledgerPath string) (pipeline.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap pipeline.Snapshot
	var takenAt, analysisJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, ledger_path, site, taken_at, analysis_json
		 FROM analysis_snapshots WHERE ledger_path = ?
		 ORDER BY taken_at DESC, id DESC LIMIT 1`,
		ledgerPath,
	).Scan(&snap.RunID, &snap.LedgerPath, &snap.Site, &takenAt, &analysisJSON)

	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.Snapshot{}, pipeline.ErrRunNotFound
	}
	if err != nil {
		return pipeline.Snapshot{}, err
	}

	if err := json.Unmarshal([]byte(analysisJSON), &snap.Analysis); err != nil {
		return pipeline.Snapshot{}, fmt.Errorf("failed to decode analysis: %w", err)
	}
	snap.TakenAt, _ = time.Parse(timeLayout, takenAt)
	return snap, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"analysis_snapshots", "runs"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
