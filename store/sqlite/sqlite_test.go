package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inspection-kpi/inspection"
	"github.com/warp/inspection-kpi/metrics"
	"github.com/warp/inspection-kpi/pipeline"
	"github.com/warp/inspection-kpi/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var t0 = time.Date(2025, time.March, 3, 10, 0, 0, 123456000, time.UTC)

func TestRuns_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	// GIVEN
	run := pipeline.Run{
		ID:         "run-1",
		Variant:    "CLV-PG2025",
		System:     "prod",
		LedgerPath: "/data/ledger.xlsx",
		FeedPath:   "/data/_woStatus.xlsx",
		Success:    true,
		Message:    pipeline.MsgSuccess,
		OutputPath: "/data/ledger.xlsx",
		Logs:       "2025-03-03 10:00:00 - INFO - Starting KPI update pipeline\n",
		Stages: []pipeline.StageResult{
			{Name: pipeline.StageNormalize, Status: pipeline.StageComplete, DurationMS: 12},
		},
		StartedAt:  t0,
		FinishedAt: t0.Add(3 * time.Second),
	}

	// WHEN
	require.NoError(t, s.SaveRun(ctx, run))
	got, err := s.GetRun(ctx, "run-1")

	// THEN
	require.NoError(t, err)
	assert.Equal(t, run, got)
}

func TestRuns_ListNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveRun(ctx, pipeline.Run{
			ID: id, LedgerPath: "l", Message: "m",
			StartedAt:  t0.Add(time.Duration(i) * time.Hour),
			FinishedAt: t0.Add(time.Duration(i) * time.Hour),
		}))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRuns_SaveTwiceUpdates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	run := pipeline.Run{ID: "r", LedgerPath: "l", Message: "running", StartedAt: t0, FinishedAt: t0}
	require.NoError(t, s.SaveRun(ctx, run))
	run.Message = pipeline.MsgReconcileFailed
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, pipeline.MsgReconcileFailed, got.Message)
}

func TestRuns_NotFound(t *testing.T) {
	_, err := newStore(t).GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, pipeline.ErrRunNotFound)
}

func TestSnapshots_Latest(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	agg := metrics.New(t0)
	older := agg.Analyze([]inspection.Record{{Category: "Piping", Backlog: true, PlannedMonth: 1}})
	newer := agg.Analyze([]inspection.Record{
		{Category: "Piping", Backlog: true, Compliance: inspection.SCE, PlannedMonth: 2},
		{Category: "Lifting", Backlog: true, PlannedMonth: 2},
	})

	require.NoError(t, s.SaveSnapshot(ctx, pipeline.Snapshot{RunID: "a", LedgerPath: "/l.xlsx", TakenAt: t0, Analysis: older}))
	require.NoError(t, s.SaveSnapshot(ctx, pipeline.Snapshot{RunID: "b", LedgerPath: "/l.xlsx", Site: "GIR", TakenAt: t0.Add(time.Minute), Analysis: newer}))
	require.NoError(t, s.SaveSnapshot(ctx, pipeline.Snapshot{RunID: "c", LedgerPath: "/other.xlsx", TakenAt: t0.Add(time.Hour), Analysis: older}))

	snap, err := s.LatestSnapshot(ctx, "/l.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "b", snap.RunID)
	assert.Equal(t, "GIR", snap.Site)
	assert.Equal(t, newer, snap.Analysis)

	_, err = s.LatestSnapshot(ctx, "/missing.xlsx")
	assert.ErrorIs(t, err, pipeline.ErrRunNotFound)
}
