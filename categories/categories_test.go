package categories_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inspection-kpi/categories"
	"github.com/warp/inspection-kpi/inspection"
	"github.com/warp/inspection-kpi/reconcile"
	"github.com/warp/inspection-kpi/sheet"
	"github.com/warp/inspection-kpi/sheet/store"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func reconciledLedger() *sheet.Table {
	t := sheet.NewTable("Order", "Item Class", "SECE STATUS", "Status", "TAG", "FL", "Description", "Due Date")
	t.AppendRow("A100", "Piping", "SECE", "QCAP", "P-101", "GIR/CPF", "Line 4in", "2024-01-15")
	t.AppendRow("A101", " Piping ", "", "INPR", "P-102", "GIR/CPF", "Line 6in", "")
	t.AppendRow("A102", "Lifting", "", "EXDO", "L-1", "GIR/DECK", "Crane", "2024-03-02")
	return t
}

func TestBuild_ProjectsFixedSchema(t *testing.T) {
	// GIVEN
	ledger := reconciledLedger()
	col, positional := categories.CategoryColumn(ledger, inspection.DefaultSchema())
	require.False(t, positional)

	// WHEN
	out := categories.Build(ledger, col, "Piping", inspection.DefaultSchema(), inspection.DefaultCodes())

	// THEN: trimmed category match, projected columns, derived month and flag
	assert.Equal(t, []string{"#", "WO Number", "Status", "TAG", "FL", "Description", "Due Date", "Due Month", "QCAP/EXDO"}, out.Columns)
	assert.Equal(t, [][]string{
		{"1", "A100", "QCAP", "P-101", "GIR/CPF", "Line 4in", "2024-01-15", "1", "YES"},
		{"2", "A101", "INPR", "P-102", "GIR/CPF", "Line 6in", "", "", "NO"},
	}, out.Rows)
}

func TestBuild_StatusPrefersStatusOverCompliance(t *testing.T) {
	ledger := reconciledLedger()

	out := categories.Build(ledger, "Item Class", "Lifting", inspection.DefaultSchema(), inspection.DefaultCodes())

	assert.Equal(t, "EXDO", out.Value(0, "Status"))
	assert.Equal(t, "YES", out.Value(0, "QCAP/EXDO"))
}

func TestBuild_NoMatchIsEmpty(t *testing.T) {
	out := categories.Build(reconciledLedger(), "Item Class", "Flare TIP", inspection.DefaultSchema(), inspection.DefaultCodes())
	assert.True(t, out.Empty())
}

func TestCategoryColumn_PositionalFallback(t *testing.T) {
	two := sheet.NewTable("Order", "Class")
	col, positional := categories.CategoryColumn(two, inspection.DefaultSchema())
	assert.True(t, positional)
	assert.Equal(t, "Class", col)

	one := sheet.NewTable("Class")
	col, _ = categories.CategoryColumn(one, inspection.DefaultSchema())
	assert.Equal(t, "Class", col)
}

func TestGenerator_SkipsEmptyCategories(t *testing.T) {
	ctx := context.Background()

	// GIVEN: a ledger workbook with no Flare TIP rows and a stale Flare TIP sheet absent
	wb := store.NewMemory()
	rows := [][]string{{"Program"}, {}, {}, {}}
	rows = append(rows, reconciledLedger().ToRows()...)
	wb.PutRows("Data Base", rows)

	g := categories.NewGenerator(inspection.DefaultCategories(), inspection.DefaultSchema(), inspection.DefaultCodes(), reconcile.DefaultLedgerRegion, nil)
	g.Workers = 3

	// WHEN
	sum, err := g.Run(ctx, wb)

	// THEN: only non-empty categories are written, in canonical order, in one commit
	require.NoError(t, err)
	assert.Equal(t, []string{"Piping", "Lifting"}, sum.Written)
	assert.Contains(t, sum.Skipped, "Flare TIP")
	assert.Len(t, sum.Skipped, len(inspection.DefaultCategories())-2)
	assert.Equal(t, 1, wb.Commits())

	names, _ := wb.Sheets(ctx)
	assert.Equal(t, []string{"Data Base", "Piping", "Lifting"}, names)
	_, ok := wb.Rows("Flare TIP")
	assert.False(t, ok)

	piping, err := wb.Read(ctx, sheet.Region{Sheet: "Piping"})
	require.NoError(t, err)
	assert.Equal(t, 2, piping.Len())
}

func TestGenerator_ReplacesPriorSheet(t *testing.T) {
	ctx := context.Background()
	wb := store.NewMemory()
	rows := [][]string{{}, {}, {}, {}}
	rows = append(rows, reconciledLedger().ToRows()...)
	wb.PutRows("Data Base", rows)
	wb.PutRows("Lifting", [][]string{{"stale"}, {"x"}, {"y"}})

	g := categories.NewGenerator([]string{"Lifting"}, inspection.DefaultSchema(), inspection.DefaultCodes(), reconcile.DefaultLedgerRegion, nil)
	_, err := g.Run(ctx, wb)
	require.NoError(t, err)

	lifting, err := wb.Read(ctx, sheet.Region{Sheet: "Lifting"})
	require.NoError(t, err)
	assert.Equal(t, "#", lifting.Columns[0])
	assert.Equal(t, 1, lifting.Len())
}

func TestGenerator_NothingToWrite(t *testing.T) {
	ctx := context.Background()
	wb := store.NewMemory()
	wb.PutRows("Data Base", [][]string{{}, {}, {}, {}, {"Order", "Item Class"}, {"A1", "Unknown"}})

	g := categories.NewGenerator(inspection.DefaultCategories(), inspection.DefaultSchema(), inspection.DefaultCodes(), reconcile.DefaultLedgerRegion, nil)
	sum, err := g.Run(ctx, wb)

	require.NoError(t, err)
	assert.Empty(t, sum.Written)
	assert.Equal(t, 0, wb.Commits())
}

func TestGenerator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := categories.NewGenerator(inspection.DefaultCategories(), inspection.DefaultSchema(), inspection.DefaultCodes(), reconcile.DefaultLedgerRegion, nil)
	_, err := g.Compute(ctx, reconciledLedger())
	assert.ErrorIs(t, err, context.Canceled)
}
