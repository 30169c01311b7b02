package categories

import (
	"context"
	"fmt"
	"runtime"

	"github.com/warp/inspection-kpi/inspection"
	"github.com/warp/inspection-kpi/sheet"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Summary lists what one generation pass wrote.
type Summary struct {
	Written []string // categories written, in canonical order
	Skipped []string // categories with no rows
	// PositionalColumn is set when the category column had to be assumed.
	PositionalColumn string
}

// Generator writes the category sheets of a ledger workbook.
type Generator struct {
	Categories []string
	Schema     inspection.Schema
	Codes      inspection.Codes
	Region     sheet.Region // ledger data region
	Workers    int          // zero = GOMAXPROCS
	Logger     *zap.Logger
}

func NewGenerator(categories []string, schema inspection.Schema, codes inspection.Codes, region sheet.Region, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		Categories: categories,
		Schema:     schema,
		Codes:      codes,
		Region:     region,
		Logger:     logger,
	}
}

// Compute builds every category table from one ledger snapshot. The result is
// indexed like g.Categories.
func (g *Generator) Compute(ctx context.Context, ledger *sheet.Table) ([]*sheet.Table, error) {
	col, positional := CategoryColumn(ledger, g.Schema)
	if positional {
		g.Logger.Warn("category column not found, filtering on assumed column",
			zap.Strings("aliases", g.Schema.Category),
			zap.String("column", col))
	}

	workers := g.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]*sheet.Table, len(g.Categories))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, category := range g.Categories {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = Build(ledger, col, category, g.Schema, g.Codes)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Run reads the ledger region, computes every category and writes the
// non-empty ones as replacement sheets in one commit.
func (g *Generator) Run(ctx context.Context, st sheet.Store) (Summary, error) {
	ledger, err := st.Read(ctx, g.Region)
	if err != nil {
		return Summary{}, fmt.Errorf("read ledger %q: %w", g.Region.Sheet, err)
	}
	ledger.TrimHeaders()

	var sum Summary
	if col, positional := CategoryColumn(ledger, g.Schema); positional {
		sum.PositionalColumn = col
	}

	results, err := g.Compute(ctx, ledger)
	if err != nil {
		return Summary{}, fmt.Errorf("compute category sheets: %w", err)
	}

	var writes []sheet.Write
	for i, category := range g.Categories {
		t := results[i]
		if t.Empty() {
			sum.Skipped = append(sum.Skipped, category)
			continue
		}
		writes = append(writes, sheet.Write{
			Region: sheet.Region{Sheet: category, HeaderRow: 1},
			Table:  t,
			Mode:   sheet.Replace,
		})
		sum.Written = append(sum.Written, category)
	}

	if len(writes) > 0 {
		if err := st.Commit(ctx, writes...); err != nil {
			return Summary{}, fmt.Errorf("write category sheets: %w", err)
		}
	}

	g.Logger.Info("category sheets generated",
		zap.Int("written", len(sum.Written)),
		zap.Strings("skipped", sum.Skipped))
	return sum, nil
}
