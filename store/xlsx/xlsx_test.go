package xlsx_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inspection-kpi/sheet"
	"github.com/warp/inspection-kpi/store/xlsx"
	"github.com/xuri/excelize/v2"
)

// newWorkbook writes a ledger-shaped workbook: two preamble rows, a header on
// row 3, and a second sheet that must never be touched.
func newWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "Data Base"))
	rows := [][]interface{}{
		{"Inspection Program 2025"},
		{"Site: GIR"},
		{"Order", "Category", "Status"},
		{"100", "Piping", "OPEN"},
		{"200", "Lifting", "CLSD"},
		{"300", "Piping", "OPEN"},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Data Base", cell, &r))
	}
	_, err := f.NewSheet("Notes")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Notes", "A1", "keep me"))

	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func open(t *testing.T, path string) *xlsx.Workbook {
	t.Helper()
	wb, err := xlsx.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { wb.Close() })
	return wb
}

var region = sheet.Region{Sheet: "Data Base", HeaderRow: 3}

// =============================================================================
// READ
// =============================================================================

func TestRead_HeaderOffset(t *testing.T) {
	wb := open(t, newWorkbook(t))

	tbl, err := wb.Read(context.Background(), region)
	require.NoError(t, err)

	assert.Equal(t, []string{"Order", "Category", "Status"}, tbl.Columns)
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, "200", tbl.Value(1, "Order"))
	assert.Equal(t, "CLSD", tbl.Value(1, "Status"))
}

func TestRead_EmptySheetNameSelectsFirst(t *testing.T) {
	wb := open(t, newWorkbook(t))

	tbl, err := wb.Read(context.Background(), sheet.Region{HeaderRow: 3})
	require.NoError(t, err)
	assert.Equal(t, "Order", tbl.Columns[0])
}

func TestRead_MissingSheet(t *testing.T) {
	wb := open(t, newWorkbook(t))

	_, err := wb.Read(context.Background(), sheet.Region{Sheet: "Nope"})
	assert.ErrorIs(t, err, sheet.ErrRegionNotFound)
}

// =============================================================================
// COMMIT
// =============================================================================

func TestCommit_OverlayKeepsPreambleAndOtherSheets(t *testing.T) {
	ctx := context.Background()
	path := newWorkbook(t)
	wb := open(t, path)

	// GIVEN: a shorter, wider table
	tbl := sheet.NewTable("Order", "Category", "Status", "Aging")
	tbl.AppendRow("100", "Piping", "OPEN", "< 6 Months")

	// WHEN
	require.NoError(t, wb.Commit(ctx, sheet.Write{Region: region, Table: tbl, Mode: sheet.Overlay}))

	// THEN: reopening from disk shows the new region and the untouched rest
	reopened := open(t, path)
	got, err := reopened.Read(ctx, region)
	require.NoError(t, err)
	assert.Equal(t, tbl.Columns, got.Columns)
	require.Equal(t, 1, got.Len(), "stale rows must be cleared")
	assert.Equal(t, "< 6 Months", got.Value(0, "Aging"))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	title, err := f.GetCellValue("Data Base", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Inspection Program 2025", title)
	note, err := f.GetCellValue("Notes", "A1")
	require.NoError(t, err)
	assert.Equal(t, "keep me", note)
}

func TestCommit_ReplaceCreatesAndOverwritesSheets(t *testing.T) {
	ctx := context.Background()
	path := newWorkbook(t)
	wb := open(t, path)

	piping := sheet.NewTable("#", "WO Number")
	piping.AppendRow("1", "100")
	piping.AppendRow("2", "300")
	require.NoError(t, wb.Commit(ctx, sheet.Write{Region: sheet.Region{Sheet: "Piping"}, Table: piping, Mode: sheet.Replace}))

	smaller := sheet.NewTable("#", "WO Number")
	smaller.AppendRow("1", "300")
	require.NoError(t, wb.Commit(ctx, sheet.Write{Region: sheet.Region{Sheet: "Piping"}, Table: smaller, Mode: sheet.Replace}))

	reopened := open(t, path)
	sheets, err := reopened.Sheets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Data Base", "Notes", "Piping"}, sheets)

	got, err := reopened.Read(ctx, sheet.Region{Sheet: "Piping"})
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "300", got.Value(0, "WO Number"))
}

func TestCommit_FailedBatchLeavesFileIntact(t *testing.T) {
	ctx := context.Background()
	path := newWorkbook(t)
	wb := open(t, path)

	// GIVEN: a valid replace followed by an overlay on a missing sheet
	tbl := sheet.NewTable("A")
	tbl.AppendRow("x")

	// WHEN
	err := wb.Commit(ctx,
		sheet.Write{Region: sheet.Region{Sheet: "Piping"}, Table: tbl, Mode: sheet.Replace},
		sheet.Write{Region: sheet.Region{Sheet: "Missing", HeaderRow: 2}, Table: tbl, Mode: sheet.Overlay},
	)

	// THEN: nothing from the batch is visible, in memory or on disk
	require.ErrorIs(t, err, sheet.ErrRegionNotFound)

	sheets, err := wb.Sheets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Data Base", "Notes"}, sheets)

	reopened := open(t, path)
	sheets, err = reopened.Sheets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Data Base", "Notes"}, sheets)
}

func TestCommit_NumbersStayNumeric(t *testing.T) {
	ctx := context.Background()
	path := newWorkbook(t)
	wb := open(t, path)

	tbl := sheet.NewTable("Order", "Tag")
	tbl.AppendRow("42", "007")
	require.NoError(t, wb.Commit(ctx, sheet.Write{Region: sheet.Region{Sheet: "Out"}, Table: tbl, Mode: sheet.Replace}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	typ, err := f.GetCellType("Out", "A2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ)
	assert.NotEqual(t, excelize.CellTypeInlineString, typ)

	tag, err := f.GetCellValue("Out", "B2")
	require.NoError(t, err)
	assert.Equal(t, "007", tag)
}

func TestCommit_CancelledContext(t *testing.T) {
	wb := open(t, newWorkbook(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := wb.Commit(ctx, sheet.Write{Region: region, Table: sheet.NewTable("A"), Mode: sheet.Overlay})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenStore_MissingFile(t *testing.T) {
	_, err := xlsx.OpenStore(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}
