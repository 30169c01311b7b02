/*
Package metrics computes the KPI structures shown on the inspection dashboard.

PURPOSE:
  Everything here is a pure function of a slice of inspection.Record and the
  clock captured when the Aggregator was built. No I/O, no errors: malformed
  fields were already coerced to "absent" by inspection.Load and simply do not
  count.

KEY CONCEPTS IN THIS FILE (types.go):
  - BacklogSummary:    backlog size and its SCE share
  - MonthlyRecord:     planned / completed / backlog for one calendar month
  - CompletionMetrics: completion and on-time rates, year-to-date progress
  - Breakdown:         backlog by category x (aging bucket, compliance class)

CARRY-OVER:
  Months before the current month report their own backlog (frozen). The
  current month reports its own backlog plus every earlier month's. Later
  months report zero.

SEE ALSO:
  - aggregator.go: the computations
  - percent.go: rounding rules
*/
package metrics

import "github.com/warp/inspection-kpi/inspection"

// BacklogSummary counts backlog rows.
type BacklogSummary struct {
	Total         int
	SCE           int
	SCEPercentage float64 // 0 when Total is 0
}

// MonthlyRecord is one calendar month of the plan. Month is 1..12.
type MonthlyRecord struct {
	Month              int
	Label              string
	TotalPlanned       int
	BacklogCount       int
	CompletedCount     int
	ProgressPercentage float64
}

// CompletionMetrics summarizes job completion over a record set.
type CompletionMetrics struct {
	TotalJobs      int
	CompletedJobs  int
	CompletionRate float64
	OnTimeRate     float64
	YTDPercentage  int
}

// Performance is the monthly table plus completion metrics.
type Performance struct {
	Monthly    [12]MonthlyRecord
	Completion CompletionMetrics
}

// BreakdownColumn is one (aging bucket, compliance class) pair.
type BreakdownColumn struct {
	Aging      inspection.AgingBucket
	Compliance inspection.ComplianceClass
}

// BreakdownRow holds one category's counts, aligned with Breakdown.Columns.
type BreakdownRow struct {
	Category string
	Counts   []int
}

// BreakdownSummary carries the headline numbers shown next to the table.
type BreakdownSummary struct {
	TotalBacklog int
	SCEBacklog   int
	Categories   int
}

// Breakdown is the backlog cross-tabulation. Rows are sorted by category.
type Breakdown struct {
	Columns []BreakdownColumn
	Rows    []BreakdownRow
	Summary BreakdownSummary
}

// Count returns the cell for a category and column, or 0.
func (b Breakdown) Count(category string, col BreakdownColumn) int {
	ci := -1
	for i, c := range b.Columns {
		if c == col {
			ci = i
			break
		}
	}
	if ci < 0 {
		return 0
	}
	for _, r := range b.Rows {
		if r.Category == category {
			return r.Counts[ci]
		}
	}
	return 0
}

// Analysis bundles every dashboard structure for one ledger.
type Analysis struct {
	Backlog        BacklogSummary
	Performance    Performance
	SCEPerformance Performance
	Breakdown      Breakdown
}

// BacklogItem is one backlog row as listed under an aging bucket.
type BacklogItem struct {
	Category   string
	Unit       string
	Scope      string
	Compliance inspection.ComplianceClass
}

// CategoryMonth is one category's plan position for a selected month.
type CategoryMonth struct {
	Category      string
	YearlyScope   int // every row of the category
	MonthlyTarget int // rows planned in the month
	Accomplished  int // of those, completed
}

// BreakdownColumns returns the canonical column order: buckets by severity,
// then SCE before Non-SCE.
func BreakdownColumns() []BreakdownColumn {
	cols := make([]BreakdownColumn, 0, len(inspection.AgingBuckets)*len(inspection.ComplianceClasses))
	for _, b := range inspection.AgingBuckets {
		for _, c := range inspection.ComplianceClasses {
			cols = append(cols, BreakdownColumn{Aging: b, Compliance: c})
		}
	}
	return cols
}
