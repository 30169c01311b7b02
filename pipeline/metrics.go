package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	// runsTotal counts pipeline runs by result
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kpi_pipeline_runs_total",
		Help: "Total pipeline runs by result",
	}, []string{"result"})

	// stageDuration tracks stage latency
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kpi_pipeline_stage_duration_seconds",
		Help:    "Pipeline stage duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	}, []string{"stage"})

	// stageFailures counts failed stages
	stageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kpi_pipeline_stage_failures_total",
		Help: "Total failed pipeline stages",
	}, []string{"stage"})

	rowsReconciled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kpi_ledger_rows_matched_total",
		Help: "Ledger rows matched to a status feed row",
	})

	sheetsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kpi_category_sheets_written_total",
		Help: "Category sheets written",
	})
)
