/*
handlers.go - HTTP API handlers for the KPI engine

PURPOSE:
  Exposes pipeline runs and the dashboard metrics via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the pipeline and
  metrics packages.

ENDPOINTS:
  Runs:
    POST   /api/runs                  Run the pipeline (one at a time)
    GET    /api/runs                  Run history, newest first
    GET    /api/runs/{id}             One run, including its log

  Metrics:
    GET    /api/analysis              Backlog, performance, SCE performance, breakdown
    GET    /api/backlog               Backlog rows of one aging bucket (?delay=)
    GET    /api/monthly               Per-category progress for one month (?month=)
    GET    /api/categories/{name}     A generated category sheet

  Every metrics endpoint takes ?ledger= (defaults to the configured ledger)
  and ?site= (selects the row limit).

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Pipeline: runs the stages; its Open/Schema/Region are reused for reads
  - Runs: run history and snapshots
  - Defaults: request fields the client may omit

ANALYSIS SOURCE:
  /api/analysis reads the ledger on every call. With ?source=snapshot it serves
  the snapshot stored by the last successful run instead.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Run, ledger sheet or snapshot not found
  - 409: A run is already in progress
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. Ledger paths are taken from the client
  as-is; deploy behind a trusted network only.

SEE ALSO:
  - dto.go: Request/response data structures
  - scheduler.go: periodic runs
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/inspection-kpi/inspection"
	"github.com/warp/inspection-kpi/metrics"
	"github.com/warp/inspection-kpi/pipeline"
	"github.com/warp/inspection-kpi/sheet"
	"go.uber.org/zap"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Defaults fill the fields a run request or query leaves empty.
type Defaults struct {
	Variant    string
	System     string
	LedgerPath string
	FeedPath   string
	OutputDir  string
	Site       string
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Pipeline *pipeline.Pipeline
	Runs     pipeline.RunStore
	Defaults Defaults
	Logger   *zap.Logger

	running sync.Mutex
}

// NewHandler creates a handler. A nil runs store keeps history in memory.
func NewHandler(p *pipeline.Pipeline, runs pipeline.RunStore, defaults Defaults, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runs == nil {
		runs = pipeline.NewMemoryRuns()
	}
	p.Runs = runs
	return &Handler{
		Pipeline: p,
		Runs:     runs,
		Defaults: defaults,
		Logger:   logger,
	}
}

// RunPipeline runs the pipeline unless a run is already active.
func (h *Handler) RunPipeline(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
	if !h.running.TryLock() {
		return pipeline.Result{}, ErrRunInProgress
	}
	defer h.running.Unlock()
	return h.Pipeline.Run(ctx, req), nil
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// CreateRun runs the pipeline synchronously and returns its result.
// POST /api/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req := pipeline.Request{
		Variant:    or(body.Variant, h.Defaults.Variant),
		System:     or(body.System, h.Defaults.System),
		LedgerPath: or(body.LedgerPath, h.Defaults.LedgerPath),
		FeedPath:   or(body.StatusFeedPath, h.Defaults.FeedPath),
		OutputDir:  or(body.OutputDir, h.Defaults.OutputDir),
		Site:       or(body.Site, h.Defaults.Site),
	}
	if req.LedgerPath == "" {
		writeError(w, http.StatusBadRequest, "ledger_path is required", nil)
		return
	}
	if req.OutputDir == "" {
		writeError(w, http.StatusBadRequest, "output_dir is required", nil)
		return
	}
	if err := h.checkSite(req.Site); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid site", err)
		return
	}

	res, err := h.RunPipeline(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusConflict, "Pipeline busy", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunResultDTO(res))
}

// ListRuns returns run history.
// GET /api/runs?limit=50
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.Runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run, false)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns a single run with its log.
// GET /api/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.Runs.GetRun(r.Context(), id)
	if errors.Is(err, pipeline.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "Run not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get run", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(run, true))
}

// =============================================================================
// METRICS HANDLERS
// =============================================================================

// GetAnalysis returns every dashboard structure for a ledger.
// GET /api/analysis?ledger=&site=&source=ledger|snapshot
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	q := h.query(r)

	if r.URL.Query().Get("source") == "snapshot" {
		// Runs store absolute ledger paths.
		ledgerPath, err := filepath.Abs(q.ledger)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid ledger path", err)
			return
		}
		snap, err := h.Runs.LatestSnapshot(r.Context(), ledgerPath)
		if errors.Is(err, pipeline.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "No snapshot for ledger", nil)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to get snapshot", err)
			return
		}
		dto := toAnalysisDTO(snap.Analysis)
		dto.LedgerPath = snap.LedgerPath
		dto.Site = snap.Site
		dto.AsOf = snap.TakenAt.Format(time.RFC3339)
		dto.Source = "snapshot"
		writeJSON(w, http.StatusOK, dto)
		return
	}

	records, agg, ok := h.load(w, r, q)
	if !ok {
		return
	}
	dto := toAnalysisDTO(agg.Analyze(records))
	dto.LedgerPath = q.ledger
	dto.Site = q.site
	dto.AsOf = agg.Now().Format(time.RFC3339)
	dto.Source = "ledger"
	writeJSON(w, http.StatusOK, dto)
}

// GetBacklog lists the backlog rows of one aging bucket.
// GET /api/backlog?delay=<bucket>
func (h *Handler) GetBacklog(w http.ResponseWriter, r *http.Request) {
	bucket := inspection.ParseAgingBucket(r.URL.Query().Get("delay"))
	if bucket == inspection.AgingNone {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid delay %q", r.URL.Query().Get("delay")), nil)
		return
	}

	records, agg, ok := h.load(w, r, h.query(r))
	if !ok {
		return
	}

	items := agg.BacklogDetails(records, bucket)
	dto := BacklogDetailsDTO{
		Delay: string(bucket),
		Color: bucket.Color(),
		Items: make([]BacklogItemDTO, len(items)),
	}
	for i, it := range items {
		dto.Items[i] = BacklogItemDTO{
			Category:   it.Category,
			Unit:       it.Unit,
			Scope:      it.Scope,
			Compliance: string(it.Compliance),
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetMonthly returns per-category progress for one month, the current one by default.
// GET /api/monthly?month=1..12
func (h *Handler) GetMonthly(w http.ResponseWriter, r *http.Request) {
	month := 0
	if v := r.URL.Query().Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			writeError(w, http.StatusBadRequest, "month must be 1..12", err)
			return
		}
		month = n
	}

	records, agg, ok := h.load(w, r, h.query(r))
	if !ok {
		return
	}
	if month == 0 {
		month = agg.CurrentMonth()
	}

	cats := agg.MonthlyCategoryPerformance(records, month)
	dto := MonthlyDetailsDTO{
		Month:      month,
		Label:      inspection.MonthLabels[month-1],
		Categories: make([]CategoryMonthDTO, len(cats)),
	}
	for i, c := range cats {
		dto.Categories[i] = CategoryMonthDTO{
			Category:      c.Category,
			YearlyScope:   c.YearlyScope,
			MonthlyTarget: c.MonthlyTarget,
			Accomplished:  c.Accomplished,
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetCategorySheet returns a category sheet as written by the last run.
// GET /api/categories/{name}
func (h *Handler) GetCategorySheet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	q := h.query(r)
	if q.ledger == "" {
		writeError(w, http.StatusBadRequest, "ledger is required", nil)
		return
	}

	st, closeFn, err := h.open(q.ledger)
	if err != nil {
		writeError(w, http.StatusNotFound, "Failed to open ledger", err)
		return
	}
	defer closeFn()

	t, err := st.Read(r.Context(), sheet.Region{Sheet: name, HeaderRow: 1})
	if errors.Is(err, sheet.ErrRegionNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Category sheet %q not found", name), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read category sheet", err)
		return
	}
	writeJSON(w, http.StatusOK, toSheetDTO(name, t))
}

// =============================================================================
// HELPERS
// =============================================================================

type ledgerQuery struct {
	ledger string
	site   string
}

func (h *Handler) query(r *http.Request) ledgerQuery {
	q := r.URL.Query()
	return ledgerQuery{
		ledger: or(q.Get("ledger"), h.Defaults.LedgerPath),
		site:   or(q.Get("site"), h.Defaults.Site),
	}
}

// load reads the ledger and builds records. On failure it writes the error
// response and returns ok=false.
func (h *Handler) load(w http.ResponseWriter, r *http.Request, q ledgerQuery) ([]inspection.Record, *metrics.Aggregator, bool) {
	if q.ledger == "" {
		writeError(w, http.StatusBadRequest, "ledger is required", nil)
		return nil, nil, false
	}
	if err := h.checkSite(q.site); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid site", err)
		return nil, nil, false
	}

	st, closeFn, err := h.open(q.ledger)
	if err != nil {
		writeError(w, http.StatusNotFound, "Failed to open ledger", err)
		return nil, nil, false
	}
	defer closeFn()

	agg := metrics.NewFromClock(h.Pipeline.Now)
	records, err := h.Pipeline.LoadRecords(r.Context(), st, q.site, agg.Now())
	switch {
	case errors.Is(err, sheet.ErrRegionNotFound):
		writeError(w, http.StatusNotFound, "Ledger sheet not found", err)
		return nil, nil, false
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to read ledger", err)
		return nil, nil, false
	}
	return records, agg, true
}

func (h *Handler) open(path string) (sheet.Store, func(), error) {
	st, err := h.Pipeline.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if c, ok := st.(io.Closer); ok {
		return st, func() { c.Close() }, nil
	}
	return st, func() {}, nil
}

func (h *Handler) checkSite(site string) error {
	if site == "" {
		return nil
	}
	if _, ok := h.Pipeline.Sites[site]; !ok {
		return fmt.Errorf("unknown site %q", site)
	}
	return nil
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
