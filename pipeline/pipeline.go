/*
Package pipeline runs the KPI update end to end.

PURPOSE:
  One run takes a ledger workbook and a status feed (supplied, or produced by
  the extractor), normalizes the feed, reconciles the ledger and writes the
  category sheets. The caller always gets a Result: a success flag, a short
  message, the output path and the run's full log text.

STAGES (in order, each guarded):
  extract    -> feed path (skipped when a feed file is supplied)
  normalize  -> wostatus.Normalizer
  reconcile  -> reconcile.Reconciler
  categories -> categories.Generator
  snapshot   -> metrics.Analyze, stored with the run (best effort)

A failed stage stops the run. Stage errors and panics never escape Run.

SEE ALSO:
  - runlog.go: per-run log buffer
  - store.go: run history
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/warp/inspection-kpi/categories"
	"github.com/warp/inspection-kpi/config"
	"github.com/warp/inspection-kpi/extract"
	"github.com/warp/inspection-kpi/inspection"
	"github.com/warp/inspection-kpi/metrics"
	"github.com/warp/inspection-kpi/reconcile"
	"github.com/warp/inspection-kpi/sheet"
	"github.com/warp/inspection-kpi/wostatus"
	"go.uber.org/zap"
)

// Result messages.
const (
	MsgExtractionUnavailable = "SAP extraction not available. Provide _woStatus.xlsx."
	MsgNormalizeFailed       = "Processing _woStatus.xlsx failed."
	MsgReconcileFailed       = "Updating main workbook failed."
	MsgCategoriesFailed      = "Generating categorized sheets failed."
	MsgSuccess               = "Success"
)

// Stage names.
const (
	StageExtract    = "extract"
	StageNormalize  = "normalize"
	StageReconcile  = "reconcile"
	StageCategories = "categories"
	StageSnapshot   = "snapshot"
)

// Request is one run's inputs. FeedPath, when set, replaces extraction.
type Request struct {
	Variant    string
	System     string
	LedgerPath string
	FeedPath   string
	OutputDir  string
	Site       string // optional, selects a row limit for the snapshot
}

type StageStatus string

const (
	StageComplete StageStatus = "complete"
	StageFailed   StageStatus = "failed"
	StageSkipped  StageStatus = "skipped"
)

// StageResult records one stage's outcome.
type StageResult struct {
	Name       string
	Status     StageStatus
	DurationMS int64
	Error      string
}

// Result is what a caller sees of a run.
type Result struct {
	RunID      string
	Success    bool
	Message    string
	OutputPath string
	Logs       string
	Stages     []StageResult
}

// Opener opens a workbook file as a sheet.Store.
type Opener func(path string) (sheet.Store, error)

// Pipeline holds everything a run needs except its inputs.
type Pipeline struct {
	Schema     inspection.Schema
	Codes      inspection.Codes
	Categories []string
	Region     sheet.Region
	Sites      map[string]inspection.Site

	Extractor extract.Extractor
	Open      Opener
	Runs      RunStore // optional

	Logger *zap.Logger
	Now    func() time.Time
}

func New(open Opener, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		Schema:     inspection.DefaultSchema(),
		Codes:      inspection.DefaultCodes(),
		Categories: inspection.DefaultCategories(),
		Region:     reconcile.DefaultLedgerRegion,
		Sites:      inspection.DefaultSites(),
		Extractor:  extract.Unavailable{},
		Open:       open,
		Logger:     logger,
		Now:        time.Now,
	}
}

// NewFromConfig builds a pipeline from cfg. A configured extract command
// replaces the unavailable extractor.
func NewFromConfig(cfg *config.Config, open Opener, logger *zap.Logger) *Pipeline {
	p := New(open, logger)
	p.Schema = cfg.Schema
	p.Codes = cfg.Codes
	p.Categories = cfg.Categories
	p.Region = cfg.LedgerRegion()
	p.Sites = cfg.Sites
	p.Extractor = extract.New(cfg.Extract.Command, p.Logger)
	if c, ok := p.Extractor.(extract.Command); ok {
		c.Timeout = cfg.Extract.Timeout
		p.Extractor = c
	}
	return p
}

// RequestFromConfig builds a run request from cfg's defaults.
func RequestFromConfig(cfg *config.Config, ledgerPath, feedPath string) Request {
	return Request{
		Variant:    cfg.SAP.Variant,
		System:     cfg.SAP.System,
		LedgerPath: ledgerPath,
		FeedPath:   feedPath,
		OutputDir:  cfg.OutputDir,
		Site:       cfg.Site,
	}
}

// stageError carries the user-facing message of the stage that failed.
type stageError struct {
	message string
	err     error
}

func (e *stageError) Error() string { return fmt.Sprintf("%s: %v", e.message, e.err) }
func (e *stageError) Unwrap() error { return e.err }

// Run executes one pipeline run.
func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	runID := uuid.NewString()
	rl := NewRunLog(p.Logger)
	log := rl.Logger().With(zap.String("run_id", runID))

	started := p.Now()
	res := Result{RunID: runID}
	outputPath, err := p.execute(ctx, req, log, &res)
	switch {
	case err == nil:
		res.Success = true
		res.Message = MsgSuccess
		res.OutputPath = outputPath
		log.Info("KPI update pipeline completed", zap.String("output", outputPath))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		res.Message = fmt.Sprintf("Run failed: %v", err)
		log.Warn("run stopped", zap.Error(err))
	default:
		var se *stageError
		if errors.As(err, &se) {
			res.Message = se.message
		} else {
			res.Message = fmt.Sprintf("Run failed: %v", err)
		}
		log.Error("run failed", zap.Error(err))
	}

	runsTotal.WithLabelValues(outcome(res.Success)).Inc()
	res.Logs = rl.String()

	if p.Runs != nil {
		run := Run{
			ID:         runID,
			Variant:    req.Variant,
			System:     req.System,
			LedgerPath: req.LedgerPath,
			FeedPath:   req.FeedPath,
			Success:    res.Success,
			Message:    res.Message,
			OutputPath: res.OutputPath,
			Logs:       res.Logs,
			Stages:     res.Stages,
			StartedAt:  started,
			FinishedAt: p.Now(),
		}
		if err := p.Runs.SaveRun(context.WithoutCancel(ctx), run); err != nil {
			p.Logger.Warn("failed to persist run", zap.String("run_id", runID), zap.Error(err))
		}
	}
	return res
}

// execute runs the stages, turning a panic into an error.
func (p *Pipeline) execute(ctx context.Context, req Request, log *zap.Logger, res *Result) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	log.Info("Starting KPI update pipeline")

	stage := func(name string, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		fnErr := fn()
		elapsed := time.Since(start)
		stageDuration.WithLabelValues(name).Observe(elapsed.Seconds())

		sr := StageResult{Name: name, Status: StageComplete, DurationMS: elapsed.Milliseconds()}
		if fnErr != nil {
			sr.Status = StageFailed
			sr.Error = fnErr.Error()
			stageFailures.WithLabelValues(name).Inc()
			log.Error("stage failed", zap.String("stage", name), zap.Duration("duration", elapsed), zap.Error(fnErr))
		} else {
			log.Info("stage complete", zap.String("stage", name), zap.Duration("duration", elapsed))
		}
		res.Stages = append(res.Stages, sr)
		return fnErr
	}

	outputDir, err := filepath.Abs(req.OutputDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	ledgerPath, err := filepath.Abs(req.LedgerPath)
	if err != nil {
		return "", err
	}

	// Feed
	feedPath := req.FeedPath
	if feedPath != "" {
		feedPath, err = filepath.Abs(feedPath)
		if err != nil {
			return "", err
		}
		log.Info("Using provided "+extract.FeedFileName, zap.String("path", feedPath))
		res.Stages = append(res.Stages, StageResult{Name: StageExtract, Status: StageSkipped})
	} else {
		err := stage(StageExtract, func() error {
			var xerr error
			feedPath, xerr = p.Extractor.Extract(ctx, req.Variant, outputDir, req.System)
			return xerr
		})
		if err != nil {
			log.Warn("SAP extraction not executed. Please upload " + extract.FeedFileName + ".")
			return "", &stageError{message: MsgExtractionUnavailable, err: err}
		}
	}

	feed, closeFeed, err := p.open(feedPath)
	if err != nil {
		return "", &stageError{message: MsgNormalizeFailed, err: err}
	}
	defer closeFeed()

	err = stage(StageNormalize, func() error {
		_, nerr := wostatus.NewNormalizer(p.Schema, p.Codes, log).Run(ctx, feed)
		return nerr
	})
	if err != nil {
		return "", &stageError{message: MsgNormalizeFailed, err: err}
	}

	ledger, closeLedger, err := p.open(ledgerPath)
	if err != nil {
		return "", &stageError{message: MsgReconcileFailed, err: err}
	}
	defer closeLedger()

	err = stage(StageReconcile, func() error {
		r := reconcile.New(p.Schema, p.Region, log)
		r.Now = p.Now
		stats, rerr := r.Run(ctx, ledger, feed)
		rowsReconciled.Add(float64(stats.Matched))
		return rerr
	})
	if err != nil {
		return "", &stageError{message: MsgReconcileFailed, err: err}
	}

	err = stage(StageCategories, func() error {
		g := categories.NewGenerator(p.Categories, p.Schema, p.Codes, p.Region, log)
		sum, gerr := g.Run(ctx, ledger)
		sheetsWritten.Add(float64(len(sum.Written)))
		return gerr
	})
	if err != nil {
		return "", &stageError{message: MsgCategoriesFailed, err: err}
	}

	if p.Runs != nil {
		// Snapshot failures are logged; the workbook is already updated.
		_ = stage(StageSnapshot, func() error {
			return p.snapshot(ctx, ledger, ledgerPath, req.Site, res.RunID)
		})
	}

	return ledgerPath, nil
}

func (p *Pipeline) open(path string) (sheet.Store, func(), error) {
	st, err := p.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	closer := func() {}
	if c, ok := st.(io.Closer); ok {
		closer = func() {
			if err := c.Close(); err != nil {
				p.Logger.Warn("close workbook", zap.String("path", path), zap.Error(err))
			}
		}
	}
	return st, closer, nil
}

func (p *Pipeline) snapshot(ctx context.Context, ledger sheet.Store, ledgerPath, site, runID string) error {
	now := p.Now()
	records, err := p.LoadRecords(ctx, ledger, site, now)
	if err != nil {
		return err
	}
	return p.Runs.SaveSnapshot(ctx, Snapshot{
		RunID:      runID,
		LedgerPath: ledgerPath,
		Site:       site,
		TakenAt:    now,
		Analysis:   metrics.New(now).Analyze(records),
	})
}

// LoadRecords reads the ledger region and applies the site's row limit.
func (p *Pipeline) LoadRecords(ctx context.Context, ledger sheet.Store, site string, now time.Time) ([]inspection.Record, error) {
	t, err := ledger.Read(ctx, p.Region)
	if err != nil {
		return nil, err
	}
	t.TrimHeaders()
	return inspection.Load(t, p.Schema, inspection.LoadOptions{
		MaxRows: p.Sites[site].MaxRows,
		Now:     now,
	}), nil
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
