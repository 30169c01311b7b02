package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/warp/inspection-kpi/metrics"
)

// ErrRunNotFound is returned when a run or snapshot does not exist.
var ErrRunNotFound = errors.New("run not found")

// Run is the persisted record of one pipeline execution.
type Run struct {
	ID         string
	Variant    string
	System     string
	LedgerPath string
	FeedPath   string
	Success    bool
	Message    string
	OutputPath string
	Logs       string
	Stages     []StageResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Snapshot is the analysis of a ledger as it stood after a successful run.
type Snapshot struct {
	RunID      string
	LedgerPath string
	Site       string
	TakenAt    time.Time
	Analysis   metrics.Analysis
}

// RunStore persists run history.
type RunStore interface {
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns returns the most recent runs first. limit <= 0 returns all.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	SaveSnapshot(ctx context.Context, s Snapshot) error
	// LatestSnapshot returns the newest snapshot for a ledger path.
	LatestSnapshot(ctx context.Context, ledgerPath string) (Snapshot, error)
}

// =============================================================================
// MEMORY RUN STORE - For testing and servers without a database
// =============================================================================

type MemoryRuns struct {
	mu        sync.RWMutex
	runs      map[string]Run
	snapshots []Snapshot
}

func NewMemoryRuns() *MemoryRuns {
	return &MemoryRuns{runs: make(map[string]Run)}
}

func (m *MemoryRuns) SaveRun(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *MemoryRuns) GetRun(_ context.Context, id string) (Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return run, nil
}

func (m *MemoryRuns) ListRuns(_ context.Context, limit int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRuns) SaveSnapshot(_ context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, s)
	return nil
}

func (m *MemoryRuns) LatestSnapshot(_ context.Context, ledgerPath string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if m.snapshots[i].LedgerPath == ledgerPath {
			return m.snapshots[i], nil
		}
	}
	return Snapshot{}, ErrRunNotFound
}
