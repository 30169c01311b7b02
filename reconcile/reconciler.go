package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/inspection-kpi/inspection"
	"github.com/warp/inspection-kpi/sheet"
	"go.uber.org/zap"
)

// DefaultLedgerRegion is where the ledger keeps its data: four preamble rows,
// header on row 5.
var DefaultLedgerRegion = sheet.Region{Sheet: "Data Base", HeaderRow: 5}

// Reconciler runs Merge against persisted artifacts.
type Reconciler struct {
	Schema inspection.Schema
	Region sheet.Region
	Now    func() time.Time
	Logger *zap.Logger
}

func New(schema inspection.Schema, region sheet.Region, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{Schema: schema, Region: region, Now: time.Now, Logger: logger}
}

// Run reads the feed's first sheet and the ledger region, merges them and
// overlays the result onto the ledger region. Nothing is written on failure.
func (r *Reconciler) Run(ctx context.Context, ledger, feed sheet.Store) (MergeStats, error) {
	names, err := feed.Sheets(ctx)
	if err != nil {
		return MergeStats{}, fmt.Errorf("list feed sheets: %w", err)
	}
	if len(names) == 0 {
		return MergeStats{}, fmt.Errorf("%w: status feed has no sheets", sheet.ErrRegionNotFound)
	}
	ft, err := feed.Read(ctx, sheet.Region{Sheet: names[0], HeaderRow: 1})
	if err != nil {
		return MergeStats{}, fmt.Errorf("read status feed: %w", err)
	}
	ft.TrimHeaders()

	lt, err := ledger.Read(ctx, r.Region)
	if err != nil {
		return MergeStats{}, fmt.Errorf("read ledger %q: %w", r.Region.Sheet, err)
	}
	lt.TrimHeaders()

	merged, stats, err := Merge(lt, ft, r.Schema, r.Now())
	if err != nil {
		return MergeStats{}, err
	}
	if stats.StatusColumn == "" {
		r.Logger.Warn("no status column in feed, status not updated")
	}
	if stats.DueDateColumn == "" {
		r.Logger.Warn("no due date column in feed, aging not derived")
	}

	if err := ledger.Commit(ctx, sheet.Write{Region: r.Region, Table: merged, Mode: sheet.Overlay}); err != nil {
		return stats, fmt.Errorf("write ledger %q: %w", r.Region.Sheet, err)
	}

	r.Logger.Info("ledger reconciled",
		zap.Int("rows", stats.Rows),
		zap.Int("matched", stats.Matched),
		zap.Int("duplicate_keys", stats.DuplicateKeys),
		zap.String("status_column", stats.StatusColumn),
		zap.String("due_date_column", stats.DueDateColumn))
	return stats, nil
}
