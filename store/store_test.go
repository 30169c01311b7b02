package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inspection-kpi/config"
	"github.com/warp/inspection-kpi/pipeline"
	"github.com/warp/inspection-kpi/store"
)

func TestOpen_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, kind, err := store.Open(ctx, config.StorageConfig{})
	require.NoError(t, err)
	assert.Equal(t, "memory", kind)
	require.NoError(t, s.Close())

	s, kind, err = store.Open(ctx, config.StorageConfig{SQLitePath: filepath.Join(t.TempDir(), "kpi.db")})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "sqlite", kind)

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, pipeline.ErrRunNotFound)
}
