/*
Package reconcile merges the normalized status feed into the inspection ledger.

PURPOSE:
  The ledger is planned by hand; the status feed reflects the work-order system.
  Reconciliation copies the live status and due date of each order onto its
  ledger row and derives the columns the KPIs are computed from.

KEY CONCEPTS:
  - Merge key:  an order identifier, resolved independently on each side
  - Left join:  every ledger row survives; unmatched rows get blank enrichment
  - Derived:    status target, due-date target, Due Month, Delay (aging bucket)

INVARIANTS:
  1. Ledger row count and order never change
  2. Only derived columns are written; feed columns are not appended
  3. A duplicated feed key matches its first occurrence only

SEE ALSO:
  - aging.go: day-threshold classification
  - reconciler.go: read / merge / write-back against a sheet.Store
*/
package reconcile

import (
	"strconv"
	"time"

	"github.com/warp/inspection-kpi/inspection"
	"github.com/warp/inspection-kpi/sheet"
)

// MergeStats summarizes one merge.
type MergeStats struct {
	Rows          int
	Matched       int
	DuplicateKeys int    // feed rows ignored because their key was already seen
	LedgerKey     string // resolved ledger key column
	FeedKey       string // resolved feed key column
	StatusColumn  string // ledger column that received the status, "" if skipped
	DueDateColumn string // ledger column that received the due date, "" if skipped
}

// Merge returns a copy of ledger enriched from feed. Neither input is modified.
func Merge(ledger, feed *sheet.Table, schema inspection.Schema, now time.Time) (*sheet.Table, MergeStats, error) {
	ledgerKey, ok := ledger.Resolve(schema.OrderKey)
	if !ok {
		return nil, MergeStats{}, &KeyError{Side: "ledger", Aliases: schema.OrderKey}
	}
	feedKey, ok := feed.Resolve(schema.OrderKey)
	if !ok {
		return nil, MergeStats{}, &KeyError{Side: "status feed", Aliases: schema.OrderKey}
	}

	out := ledger.Clone()
	out.MapColumn(ledgerKey, sheet.Canonical)

	stats := MergeStats{Rows: out.Len(), LedgerKey: ledgerKey, FeedKey: feedKey}

	index := make(map[string]int, feed.Len())
	fk := feed.Index(feedKey)
	for i, row := range feed.Rows {
		key := sheet.Canonical(row[fk])
		if key == "" {
			continue
		}
		if _, seen := index[key]; seen {
			stats.DuplicateKeys++
			continue
		}
		index[key] = i
	}

	// match[i] is the feed row for ledger row i, or -1.
	match := make([]int, out.Len())
	lk := out.Index(ledgerKey)
	for i, row := range out.Rows {
		match[i] = -1
		if j, found := index[row[lk]]; found && row[lk] != "" {
			match[i] = j
			stats.Matched++
		}
	}

	if src, ok := feed.Resolve(schema.StatusSource); ok {
		target := schema.StatusTarget.ResolveOr(out.Columns)
		out.SetColumn(target, lookup(feed, src, match))
		stats.StatusColumn = target
	}

	if src, ok := feed.Resolve(schema.DueDateSource); ok {
		raw := lookup(feed, src, match)
		dates := make([]string, len(raw))
		months := make([]string, len(raw))
		delays := make([]string, len(raw))
		for i, cell := range raw {
			due, ok := sheet.ParseDate(cell)
			if !ok {
				continue
			}
			dates[i] = sheet.FormatDate(due)
			months[i] = strconv.Itoa(int(due.Month()))
			delays[i] = string(Classify(due, now))
		}
		target := schema.DueDateTarget.ResolveOr(out.Columns)
		out.SetColumn(target, dates)
		out.SetColumn(inspection.ColDueMonth, months)
		out.SetColumn(inspection.ColDelay, delays)
		stats.DueDateColumn = target
	}

	return out, stats, nil
}

// lookup projects a feed column onto ledger rows through match.
func lookup(feed *sheet.Table, column string, match []int) []string {
	c := feed.Index(column)
	out := make([]string, len(match))
	for i, j := range match {
		if j >= 0 {
			out[i] = feed.Rows[j][c]
		}
	}
	return out
}
