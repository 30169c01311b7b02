/*
scheduler.go - Periodic pipeline runs

PURPOSE:
  Re-runs the pipeline on the configured ledger at a fixed interval, so the
  workbook and the stored analysis snapshot stay current without a manual
  trigger.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Shares the Handler's run lock: a tick that finds a run in progress
    (scheduled or manual) is skipped, never queued
  - Each run is recorded in the run store like a manual run

USAGE:
  scheduler := NewRunScheduler(handler, req, time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: CreateRun endpoint (manual runs)
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/warp/inspection-kpi/pipeline"
	"go.uber.org/zap"
)

// RunScheduler triggers pipeline runs periodically.
type RunScheduler struct {
	Handler  *Handler
	Request  pipeline.Request
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRunScheduler creates a scheduler. A non-positive interval disables it.
func NewRunScheduler(h *Handler, req pipeline.Request, interval time.Duration) *RunScheduler {
	return &RunScheduler{
		Handler:  h,
		Request:  req,
		Interval: interval,
		Enabled:  interval > 0 && req.LedgerPath != "",
		stop:     make(chan struct{}),
	}
}

// Start begins the scheduler.
func (rs *RunScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	log := rs.Handler.Logger
	if !rs.Enabled {
		log.Info("scheduler disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rs.cancel = cancel
	rs.ticker = time.NewTicker(rs.Interval)
	rs.wg.Add(1)

	go rs.run(ctx)

	log.Info("scheduler started", zap.Duration("interval", rs.Interval), zap.String("ledger", rs.Request.LedgerPath))
}

// Stop stops the scheduler and waits for a run in progress to return.
func (rs *RunScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		rs.cancel()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.Handler.Logger.Info("scheduler stopped")
	}
}

func (rs *RunScheduler) run(ctx context.Context) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.tick(ctx)

	for {
		select {
		case <-rs.ticker.C:
			rs.tick(ctx)
		case <-rs.stop:
			return
		}
	}
}

// tick runs the pipeline once. It reports whether a run actually happened.
func (rs *RunScheduler) tick(ctx context.Context) bool {
	log := rs.Handler.Logger
	res, err := rs.Handler.RunPipeline(ctx, rs.Request)
	if errors.Is(err, ErrRunInProgress) {
		log.Info("scheduled run skipped, another run in progress")
		return false
	}
	if res.Success {
		log.Info("scheduled run complete", zap.String("run_id", res.RunID))
	} else {
		log.Warn("scheduled run failed", zap.String("run_id", res.RunID), zap.String("message", res.Message))
	}
	return true
}

// RunNow triggers an immediate run (for testing/admin).
func (rs *RunScheduler) RunNow(ctx context.Context) bool {
	return rs.tick(ctx)
}

// NextRunTime returns when the next scheduled run will occur.
func (rs *RunScheduler) NextRunTime() time.Time {
	return time.Now().Add(rs.Interval)
}
