package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inspection-kpi/metrics"
	"github.com/warp/inspection-kpi/pipeline"
	"github.com/warp/inspection-kpi/store/postgres"
)

// Requires a disposable database: KPI_TEST_DATABASE_URL=postgres://...
func newStore(t *testing.T) *postgres.Store {
	t.Helper()
	url := os.Getenv("KPI_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("KPI_TEST_DATABASE_URL not set")
	}
	s, err := postgres.New(context.Background(), url)
	require.NoError(t, err)
	require.NoError(t, s.Reset(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRuns_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	started := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)

	run := pipeline.Run{
		ID:         uuid.NewString(),
		LedgerPath: "/data/ledger.xlsx",
		Success:    false,
		Message:    pipeline.MsgNormalizeFailed,
		Stages:     []pipeline.StageResult{{Name: pipeline.StageNormalize, Status: pipeline.StageFailed, Error: "boom"}},
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	}
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Message, got.Message)
	assert.Equal(t, run.Stages, got.Stages)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, pipeline.ErrRunNotFound)
}

func TestSnapshots_Latest(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)

	a := metrics.New(now).Analyze(nil)
	require.NoError(t, s.SaveSnapshot(ctx, pipeline.Snapshot{RunID: "a", LedgerPath: "/l", TakenAt: now, Analysis: a}))
	require.NoError(t, s.SaveSnapshot(ctx, pipeline.Snapshot{RunID: "b", LedgerPath: "/l", TakenAt: now.Add(time.Minute), Analysis: a}))

	snap, err := s.LatestSnapshot(ctx, "/l")
	require.NoError(t, err)
	assert.Equal(t, "b", snap.RunID)
	assert.Equal(t, a.Performance.Completion, snap.Analysis.Performance.Completion)
}
