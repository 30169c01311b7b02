/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. The engine's own types
  (pipeline.Result, metrics.Analysis) carry no JSON tags; these types are the
  external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Runs:
    RunRequest, RunResultDTO, RunDTO, StageDTO

  Analysis:
    AnalysisDTO, BacklogSummaryDTO, PerformanceDTO, MonthlyRecordDTO,
    CompletionDTO, BreakdownDTO

  Drill-downs:
    BacklogItemDTO, CategoryMonthDTO, SheetDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/inspection-kpi/metrics"
	"github.com/warp/inspection-kpi/pipeline"
	"github.com/warp/inspection-kpi/sheet"
)

// =============================================================================
// RUNS
// =============================================================================

// RunRequest starts a pipeline run. Empty fields take the server defaults.
type RunRequest struct {
	Variant        string `json:"variant"`
	System         string `json:"system"`
	LedgerPath     string `json:"ledger_path"`
	StatusFeedPath string `json:"status_feed_path,omitempty"`
	OutputDir      string `json:"output_dir"`
	Site           string `json:"site,omitempty"`
}

// RunResultDTO is the outcome of one run.
type RunResultDTO struct {
	RunID      string     `json:"run_id"`
	Success    bool       `json:"success"`
	Message    string     `json:"message"`
	OutputPath string     `json:"output_path,omitempty"`
	Logs       string     `json:"logs"`
	Stages     []StageDTO `json:"stages"`
}

type StageDTO struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// RunDTO is a persisted run.
type RunDTO struct {
	ID         string     `json:"id"`
	Variant    string     `json:"variant"`
	System     string     `json:"system"`
	LedgerPath string     `json:"ledger_path"`
	FeedPath   string     `json:"status_feed_path,omitempty"`
	Success    bool       `json:"success"`
	Message    string     `json:"message"`
	OutputPath string     `json:"output_path,omitempty"`
	Logs       string     `json:"logs,omitempty"`
	Stages     []StageDTO `json:"stages"`
	StartedAt  string     `json:"started_at"`
	FinishedAt string     `json:"finished_at"`
}

func toStageDTOs(stages []pipeline.StageResult) []StageDTO {
	dtos := make([]StageDTO, len(stages))
	for i, s := range stages {
		dtos[i] = StageDTO{
			Name:       s.Name,
			Status:     string(s.Status),
			DurationMS: s.DurationMS,
			Error:      s.Error,
		}
	}
	return dtos
}

func toRunResultDTO(res pipeline.Result) RunResultDTO {
	return RunResultDTO{
		RunID:      res.RunID,
		Success:    res.Success,
		Message:    res.Message,
		OutputPath: res.OutputPath,
		Logs:       res.Logs,
		Stages:     toStageDTOs(res.Stages),
	}
}

// toRunDTO converts a stored run. Logs are only included on single-run reads.
func toRunDTO(r pipeline.Run, withLogs bool) RunDTO {
	dto := RunDTO{
		ID:         r.ID,
		Variant:    r.Variant,
		System:     r.System,
		LedgerPath: r.LedgerPath,
		FeedPath:   r.FeedPath,
		Success:    r.Success,
		Message:    r.Message,
		OutputPath: r.OutputPath,
		Stages:     toStageDTOs(r.Stages),
		StartedAt:  r.StartedAt.Format(time.RFC3339),
		FinishedAt: r.FinishedAt.Format(time.RFC3339),
	}
	if withLogs {
		dto.Logs = r.Logs
	}
	return dto
}

// =============================================================================
// ANALYSIS
// =============================================================================

type AnalysisDTO struct {
	LedgerPath     string            `json:"ledger_path"`
	Site           string            `json:"site,omitempty"`
	AsOf           string            `json:"as_of"`
	Source         string            `json:"source"` // "ledger" or "snapshot"
	Backlog        BacklogSummaryDTO `json:"backlog"`
	Performance    PerformanceDTO    `json:"performance"`
	SCEPerformance PerformanceDTO    `json:"sce_performance"`
	Breakdown      BreakdownDTO      `json:"breakdown"`
}

type BacklogSummaryDTO struct {
	Total         int     `json:"total_backlog"`
	SCE           int     `json:"sce_backlog"`
	SCEPercentage float64 `json:"sce_percentage"`
}

type PerformanceDTO struct {
	Monthly    []MonthlyRecordDTO `json:"monthly"`
	Completion CompletionDTO      `json:"completion"`
}

type MonthlyRecordDTO struct {
	Month              int     `json:"month"`
	Label              string  `json:"label"`
	TotalPlanned       int     `json:"total_planned"`
	BacklogCount       int     `json:"backlog_count"`
	CompletedCount     int     `json:"completed_count"`
	ProgressPercentage float64 `json:"progress_percentage"`
}

type CompletionDTO struct {
	TotalJobs      int     `json:"total_jobs"`
	CompletedJobs  int     `json:"completed_jobs"`
	CompletionRate float64 `json:"completion_rate"`
	OnTimeRate     float64 `json:"on_time_rate"`
	YTDPercentage  int     `json:"ytd_percentage"`
}

// BreakdownDTO flattens the cross-tabulation: Columns[i] labels Counts[i]
// of every row.
type BreakdownDTO struct {
	Columns []BreakdownColumnDTO `json:"columns"`
	Rows    []BreakdownRowDTO    `json:"rows"`
	Summary BreakdownSummaryDTO  `json:"summary"`
}

type BreakdownColumnDTO struct {
	Aging      string `json:"aging"`
	Compliance string `json:"compliance"`
	Color      string `json:"color"`
}

type BreakdownRowDTO struct {
	Category string `json:"category"`
	Counts   []int  `json:"counts"`
}

type BreakdownSummaryDTO struct {
	TotalBacklog int `json:"total_backlog"`
	SCEBacklog   int `json:"sce_backlog"`
	Categories   int `json:"categories"`
}

func toAnalysisDTO(a metrics.Analysis) AnalysisDTO {
	return AnalysisDTO{
		Backlog: BacklogSummaryDTO{
			Total:         a.Backlog.Total,
			SCE:           a.Backlog.SCE,
			SCEPercentage: a.Backlog.SCEPercentage,
		},
		Performance:    toPerformanceDTO(a.Performance),
		SCEPerformance: toPerformanceDTO(a.SCEPerformance),
		Breakdown:      toBreakdownDTO(a.Breakdown),
	}
}

func toPerformanceDTO(p metrics.Performance) PerformanceDTO {
	monthly := make([]MonthlyRecordDTO, len(p.Monthly))
	for i, m := range p.Monthly {
		monthly[i] = MonthlyRecordDTO{
			Month:              m.Month,
			Label:              m.Label,
			TotalPlanned:       m.TotalPlanned,
			BacklogCount:       m.BacklogCount,
			CompletedCount:     m.CompletedCount,
			ProgressPercentage: m.ProgressPercentage,
		}
	}
	c := p.Completion
	return PerformanceDTO{
		Monthly: monthly,
		Completion: CompletionDTO{
			TotalJobs:      c.TotalJobs,
			CompletedJobs:  c.CompletedJobs,
			CompletionRate: c.CompletionRate,
			OnTimeRate:     c.OnTimeRate,
			YTDPercentage:  c.YTDPercentage,
		},
	}
}

func toBreakdownDTO(b metrics.Breakdown) BreakdownDTO {
	dto := BreakdownDTO{
		Columns: make([]BreakdownColumnDTO, len(b.Columns)),
		Rows:    make([]BreakdownRowDTO, len(b.Rows)),
		Summary: BreakdownSummaryDTO{
			TotalBacklog: b.Summary.TotalBacklog,
			SCEBacklog:   b.Summary.SCEBacklog,
			Categories:   b.Summary.Categories,
		},
	}
	for i, c := range b.Columns {
		dto.Columns[i] = BreakdownColumnDTO{
			Aging:      string(c.Aging),
			Compliance: string(c.Compliance),
			Color:      c.Aging.Color(),
		}
	}
	for i, r := range b.Rows {
		dto.Rows[i] = BreakdownRowDTO{Category: r.Category, Counts: r.Counts}
	}
	return dto
}

// =============================================================================
// DRILL-DOWNS
// =============================================================================

type BacklogItemDTO struct {
	Category   string `json:"category"`
	Unit       string `json:"unit"`
	Scope      string `json:"scope"`
	Compliance string `json:"compliance"`
}

type BacklogDetailsDTO struct {
	Delay string           `json:"delay"`
	Color string           `json:"color"`
	Items []BacklogItemDTO `json:"items"`
}

type CategoryMonthDTO struct {
	Category      string `json:"category"`
	YearlyScope   int    `json:"yearly_scope"`
	MonthlyTarget int    `json:"monthly_target"`
	Accomplished  int    `json:"accomplished"`
}

type MonthlyDetailsDTO struct {
	Month      int                `json:"month"`
	Label      string             `json:"label"`
	Categories []CategoryMonthDTO `json:"categories"`
}

// SheetDTO is a table as read from a workbook sheet.
type SheetDTO struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

func toSheetDTO(name string, t *sheet.Table) SheetDTO {
	rows := t.Rows
	if rows == nil {
		rows = [][]string{}
	}
	return SheetDTO{Name: name, Columns: t.Columns, Rows: rows}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
