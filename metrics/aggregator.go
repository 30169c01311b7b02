package metrics

import (
	"sort"
	"time"

	"github.com/warp/inspection-kpi/inspection"
)

// Aggregator computes metrics relative to a fixed instant. The clock is read
// once, so every structure of one run agrees on the current month.
type Aggregator struct {
	now time.Time
}

func New(now time.Time) *Aggregator {
	return &Aggregator{now: now}
}

// NewFromClock captures clock() once.
func NewFromClock(clock func() time.Time) *Aggregator {
	return New(clock())
}

// Now returns the captured instant.
func (a *Aggregator) Now() time.Time { return a.now }

// CurrentMonth is the month carry-over is computed against.
func (a *Aggregator) CurrentMonth() int { return int(a.now.Month()) }

// =============================================================================
// BACKLOG
// =============================================================================

func (a *Aggregator) BacklogSummary(records []inspection.Record) BacklogSummary {
	var s BacklogSummary
	for _, r := range records {
		if !r.Backlog {
			continue
		}
		s.Total++
		if r.Compliance == inspection.SCE {
			s.SCE++
		}
	}
	s.SCEPercentage = Percent(s.SCE, s.Total)
	return s
}

// BacklogDetails lists backlog rows in one aging bucket, in ledger order.
func (a *Aggregator) BacklogDetails(records []inspection.Record, bucket inspection.AgingBucket) []BacklogItem {
	var out []BacklogItem
	for _, r := range records {
		if r.Backlog && r.Aging == bucket {
			out = append(out, BacklogItem{
				Category:   r.Category,
				Unit:       r.Unit,
				Scope:      r.Scope,
				Compliance: r.Compliance,
			})
		}
	}
	return out
}

// =============================================================================
// MONTHLY PERFORMANCE
// =============================================================================

func (a *Aggregator) MonthlyPerformance(records []inspection.Record) [12]MonthlyRecord {
	current := a.CurrentMonth()

	var planned, completed, backlog [13]int
	carried := 0
	for _, r := range records {
		m := r.PlannedMonth
		if m == 0 {
			continue
		}
		planned[m]++
		if r.IsCompleted() {
			completed[m]++
		}
		if r.Backlog {
			backlog[m]++
			if m < current {
				carried++
			}
		}
	}

	var out [12]MonthlyRecord
	for m := 1; m <= 12; m++ {
		rec := MonthlyRecord{
			Month:              m,
			Label:              inspection.MonthLabels[m-1],
			TotalPlanned:       planned[m],
			CompletedCount:     completed[m],
			ProgressPercentage: Percent(completed[m], planned[m]),
		}
		switch {
		case m < current:
			rec.BacklogCount = backlog[m]
		case m == current:
			rec.BacklogCount = backlog[m] + carried
		}
		out[m-1] = rec
	}
	return out
}

// MonthlyCategoryPerformance reports, per category, the yearly scope and the
// selected month's target and progress. Rows without a category are ignored.
func (a *Aggregator) MonthlyCategoryPerformance(records []inspection.Record, month int) []CategoryMonth {
	byCat := make(map[string]*CategoryMonth)
	for _, r := range records {
		if r.Category == "" {
			continue
		}
		c, ok := byCat[r.Category]
		if !ok {
			c = &CategoryMonth{Category: r.Category}
			byCat[r.Category] = c
		}
		c.YearlyScope++
		if r.PlannedMonth == month {
			c.MonthlyTarget++
			if r.IsCompleted() {
				c.Accomplished++
			}
		}
	}

	out := make([]CategoryMonth, 0, len(byCat))
	for _, c := range byCat {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// =============================================================================
// COMPLETION
// =============================================================================

func (a *Aggregator) CompletionMetrics(records []inspection.Record) CompletionMetrics {
	m := CompletionMetrics{TotalJobs: len(records)}
	onTime := 0
	for _, r := range records {
		if !r.IsCompleted() {
			continue
		}
		m.CompletedJobs++
		if r.CompletedOnTime() {
			onTime++
		}
	}
	m.CompletionRate = Percent(m.CompletedJobs, m.TotalJobs)
	m.OnTimeRate = Percent(onTime, m.CompletedJobs)

	_, week := a.now.ISOWeek()
	m.YTDPercentage = YTDPercentage(week)
	return m
}

func (a *Aggregator) Performance(records []inspection.Record) Performance {
	return Performance{
		Monthly:    a.MonthlyPerformance(records),
		Completion: a.CompletionMetrics(records),
	}
}

// =============================================================================
// CATEGORY BREAKDOWN
// =============================================================================

// CategoryBreakdown cross-tabulates backlog rows. Rows with no category or no
// aging bucket count toward the summary only.
func (a *Aggregator) CategoryBreakdown(records []inspection.Record) Breakdown {
	cols := BreakdownColumns()
	colIndex := make(map[BreakdownColumn]int, len(cols))
	for i, c := range cols {
		colIndex[c] = i
	}

	b := Breakdown{Columns: cols}
	rows := make(map[string][]int)
	for _, r := range records {
		if !r.Backlog {
			continue
		}
		b.Summary.TotalBacklog++
		if r.Compliance == inspection.SCE {
			b.Summary.SCEBacklog++
		}

		ci, ok := colIndex[BreakdownColumn{Aging: r.Aging, Compliance: r.Compliance}]
		if !ok || r.Category == "" {
			continue
		}
		counts, ok := rows[r.Category]
		if !ok {
			counts = make([]int, len(cols))
			rows[r.Category] = counts
		}
		counts[ci]++
	}

	for cat, counts := range rows {
		b.Rows = append(b.Rows, BreakdownRow{Category: cat, Counts: counts})
	}
	sort.Slice(b.Rows, func(i, j int) bool { return b.Rows[i].Category < b.Rows[j].Category })
	b.Summary.Categories = len(b.Rows)
	return b
}

// =============================================================================
// ANALYSIS
// =============================================================================

// Analyze computes every dashboard structure. SCEPerformance repeats the
// performance computation over SCE rows only.
func (a *Aggregator) Analyze(records []inspection.Record) Analysis {
	return Analysis{
		Backlog:        a.BacklogSummary(records),
		Performance:    a.Performance(records),
		SCEPerformance: a.Performance(inspection.FilterCompliance(records, inspection.SCE)),
		Breakdown:      a.CategoryBreakdown(records),
	}
}
