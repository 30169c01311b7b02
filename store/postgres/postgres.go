/*
Package postgres provides a PostgreSQL-backed implementation of pipeline.RunStore.

Same tables and semantics as store/sqlite, with native types (BOOLEAN,
TIMESTAMPTZ, JSONB). Connections go through database/sql with the pgx driver.

USAGE:
  store, err := postgres.New(ctx, "postgres://kpi@localhost/kpi")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/warp/inspection-kpi/pipeline"
)

const connectTimeout = 12 * time.Second

// Store implements pipeline.RunStore using PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ pipeline.RunStore = (*Store)(nil)

// New connects to url and migrates the schema.
func New(ctx context.Context, url string) (*Store, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
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
		stages_json JSONB NOT NULL DEFAULT '[]',
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);

	CREATE TABLE IF NOT EXISTS analysis_snapshots (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		ledger_path TEXT NOT NULL,
		site TEXT NOT NULL DEFAULT '',
		taken_at TIMESTAMPTZ NOT NULL,
		analysis_json JSONB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_ledger_taken_at
		ON analysis_snapshots(ledger_path, taken_at DESC);
	`)
	return err
}

// =============================================================================
// RUNS
// =============================================================================

func (s *Store) SaveRun(ctx context.Context, run pipeline.Run) error {
	stagesJSON, err := json.Marshal(run.Stages)
	if err != nil {
		return fmt.Errorf("failed to encode stages: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, variant, system, ledger_path, feed_path, success, message, output_path,
		 logs, stages_json, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			success = EXCLUDED.success,
			message = EXCLUDED.message,
			output_path = EXCLUDED.output_path,
			logs = EXCLUDED.logs,
			stages_json = EXCLUDED.stages_json,
			finished_at = EXCLUDED.finished_at`,
		run.ID, run.Variant, run.System, run.LedgerPath, run.FeedPath, run.Success,
		run.Message, run.OutputPath, run.Logs, string(stagesJSON),
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

const selectRuns = `
	SELECT id, variant, system, ledger_path, feed_path, success, message, output_path,
	       logs, stages_json::text, started_at, finished_at
	FROM runs`

func (s *Store) GetRun(ctx context.Context, id string) (pipeline.Run, error) {
	runs, err := s.queryRuns(ctx, selectRuns+` WHERE id = $1`, id)
	if err != nil {
		return pipeline.Run{}, err
	}
	if len(runs) == 0 {
		return pipeline.Run{}, pipeline.ErrRunNotFound
	}
	return runs[0], nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]pipeline.Run, error) {
	if limit <= 0 {
		return s.queryRuns(ctx, selectRuns+` ORDER BY started_at DESC`)
	}
	return s.queryRuns(ctx, selectRuns+` ORDER BY started_at DESC LIMIT $1`, limit)
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
		var stagesJSON string
		if err := rows.Scan(&r.ID, &r.Variant, &r.System, &r.LedgerPath, &r.FeedPath,
			&r.Success, &r.Message, &r.OutputPath, &r.Logs, &stagesJSON,
			&r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(stagesJSON), &r.Stages); err != nil {
			return nil, fmt.Errorf("failed to decode stages of run %s: %w", r.ID, err)
		}
		r.StartedAt = r.StartedAt.UTC()
		r.FinishedAt = r.FinishedAt.UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// ANALYSIS SNAPSHOTS
// =============================================================================

func (s *Store) SaveSnapshot(ctx context.Context, snap pipeline.Snapshot) error {
	analysisJSON, err := json.Marshal(snap.Analysis)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_snapshots (run_id, ledger_path, site, taken_at, analysis_json)
		VALUES ($1, $2, $3, $4, $5)`,
		snap.RunID, snap.LedgerPath, snap.Site, snap.TakenAt.UTC(), string(analysisJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *Store) LatestSnapshot(ctx context.Context, ledgerPath string) (pipeline.Snapshot, error) {
	var snap pipeline.Snapshot
	var analysisJSON string

	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, ledger_path, site, taken_at, analysis_json::text
		FROM analysis_snapshots WHERE ledger_path = $1
		ORDER BY taken_at DESC, id DESC LIMIT 1`,
		ledgerPath,
	).Scan(&snap.RunID, &snap.LedgerPath, &snap.Site, &snap.TakenAt, &analysisJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.Snapshot{}, pipeline.ErrRunNotFound
	}
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	if err := json.Unmarshal([]byte(analysisJSON), &snap.Analysis); err != nil {
		return pipeline.Snapshot{}, fmt.Errorf("failed to decode analysis: %w", err)
	}
	snap.TakenAt = snap.TakenAt.UTC()
	return snap, nil
}

// Reset clears all data (for testing).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `TRUNCATE analysis_snapshots, runs`)
	return err
}
