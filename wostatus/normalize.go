/*
Package wostatus normalizes the work-order status feed before it is merged.

PURPOSE:
  The status feed is exported from the work-order system with drifting header
  spelling, padded identifiers and a raw system status string such as
  "CLSD NMAT PRC". Normalization gives the Reconciler one clean status value per
  order: the user status, forced to the closed sentinel when the order is
  closed at system level.

STEPS (Normalize):
  1. Trim every header
  2. Canonicalize every identifier column that is present
  3. Derive "Last System Status" (first 4 characters) unless it already exists
  4. Derive "Normalized Status" when a user status and a derived status exist

Normalize is pure and idempotent: running it on its own output changes nothing.
*/
package wostatus

import (
	"context"
	"fmt"

	"github.com/warp/inspection-kpi/inspection"
	"github.com/warp/inspection-kpi/sheet"
	"go.uber.org/zap"
)

const systemStatusWidth = 4

// Report describes what a normalization pass found and derived.
type Report struct {
	Rows         int
	Identifiers  []string // identifier columns canonicalized
	SystemStatus string   // resolved system status column, "" if none
	UserStatus   string   // resolved user status column, "" if none
	Derived      bool     // Last System Status was derived in this pass
	Normalized   bool     // Normalized Status was (re)computed
}

// Normalize rewrites t in place.
func Normalize(t *sheet.Table, schema inspection.Schema, codes inspection.Codes) Report {
	rep := Report{Rows: t.Len()}

	t.TrimHeaders()

	for _, col := range schema.FeedIdentifiers.Present(t.Columns) {
		t.MapColumn(col, sheet.Canonical)
		rep.Identifiers = append(rep.Identifiers, col)
	}

	if col, ok := sheet.ResolvePrefix(schema.SystemStatusPrefix, t.Columns); ok {
		rep.SystemStatus = col
		if !t.Has(inspection.ColLastSystemStatus) {
			raw := t.Column(col)
			derived := make([]string, len(raw))
			for i, v := range raw {
				derived[i] = leading(v, systemStatusWidth)
			}
			t.SetColumn(inspection.ColLastSystemStatus, derived)
			rep.Derived = true
		}
	}

	user, ok := sheet.ResolvePrefix(schema.UserStatusPrefix, t.Columns)
	if ok {
		rep.UserStatus = user
	}
	if ok && t.Has(inspection.ColLastSystemStatus) {
		closed := make(map[string]struct{}, len(codes.ClosedSystemStatuses))
		for _, c := range codes.ClosedSystemStatuses {
			closed[c] = struct{}{}
		}
		users := t.Column(user)
		last := t.Column(inspection.ColLastSystemStatus)
		out := make([]string, len(users))
		for i := range users {
			out[i] = users[i]
			if _, isClosed := closed[last[i]]; isClosed {
				out[i] = codes.ClosedSentinel
			}
		}
		t.SetColumn(inspection.ColNormalizedStatus, out)
		rep.Normalized = true
	}

	return rep
}

// leading returns the first n runes of s.
func leading(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// =============================================================================
// PERSISTED PASS
// =============================================================================

// Normalizer reads the feed's first sheet, normalizes it and replaces the sheet.
type Normalizer struct {
	Schema inspection.Schema
	Codes  inspection.Codes
	Logger *zap.Logger
}

func NewNormalizer(schema inspection.Schema, codes inspection.Codes, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{Schema: schema, Codes: codes, Logger: logger}
}

// Run normalizes the feed held by st in place.
func (n *Normalizer) Run(ctx context.Context, st sheet.Store) (Report, error) {
	names, err := st.Sheets(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list feed sheets: %w", err)
	}
	if len(names) == 0 {
		return Report{}, fmt.Errorf("%w: status feed has no sheets", sheet.ErrRegionNotFound)
	}
	region := sheet.Region{Sheet: names[0], HeaderRow: 1}

	t, err := st.Read(ctx, region)
	if err != nil {
		return Report{}, fmt.Errorf("read status feed: %w", err)
	}

	rep := Normalize(t, n.Schema, n.Codes)
	if rep.SystemStatus == "" {
		n.Logger.Warn("no system status column in status feed", zap.String("prefix", n.Schema.SystemStatusPrefix))
	}
	if rep.UserStatus == "" {
		n.Logger.Warn("no user status column in status feed", zap.String("prefix", n.Schema.UserStatusPrefix))
	}

	if err := st.Commit(ctx, sheet.Write{Region: region, Table: t, Mode: sheet.Replace}); err != nil {
		return rep, fmt.Errorf("write status feed: %w", err)
	}
	n.Logger.Info("status feed normalized",
		zap.String("sheet", names[0]),
		zap.Int("rows", rep.Rows),
		zap.Strings("identifiers", rep.Identifiers),
		zap.Bool("normalized_status", rep.Normalized))
	return rep, nil
}

// NormalizeStore is Run with the default logger.
func NormalizeStore(ctx context.Context, st sheet.Store, schema inspection.Schema, codes inspection.Codes) (Report, error) {
	return NewNormalizer(schema, codes, nil).Run(ctx, st)
}
