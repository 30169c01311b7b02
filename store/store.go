// Package store opens the run history backend selected by configuration.
package store

import (
	"context"
	"io"

	"github.com/warp/inspection-kpi/config"
	"github.com/warp/inspection-kpi/pipeline"
	"github.com/warp/inspection-kpi/store/postgres"
	"github.com/warp/inspection-kpi/store/sqlite"
)

// RunStore is a closable pipeline.RunStore.
type RunStore interface {
	pipeline.RunStore
	io.Closer
}

// Open returns PostgreSQL when a database URL is set, SQLite when a path is
// set, and an in-memory store otherwise.
func Open(ctx context.Context, cfg config.StorageConfig) (RunStore, string, error) {
	switch {
	case cfg.DatabaseURL != "":
		s, err := postgres.New(ctx, cfg.DatabaseURL)
		return s, "postgres", err
	case cfg.SQLitePath != "":
		s, err := sqlite.New(cfg.SQLitePath)
		return s, "sqlite", err
	default:
		return memory{pipeline.NewMemoryRuns()}, "memory", nil
	}
}

type memory struct{ *pipeline.MemoryRuns }

func (memory) Close() error { return nil }
