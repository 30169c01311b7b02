package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inspection-kpi/inspection"
	"github.com/warp/inspection-kpi/reconcile"
	"github.com/warp/inspection-kpi/sheet"
	"github.com/warp/inspection-kpi/sheet/store"
)

var sept1 = time.Date(2024, time.September, 1, 9, 30, 0, 0, time.UTC)

// =============================================================================
// AGING
// =============================================================================

func TestClassify_Boundaries(t *testing.T) {
	now := time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)
	ago := func(days int) time.Time { return now.AddDate(0, 0, -days) }

	cases := []struct {
		days int
		want inspection.AgingBucket
	}{
		{0, inspection.AgingUnder6Months},
		{182, inspection.AgingUnder6Months},
		{183, inspection.Aging6MonthsTo1Year},
		{365, inspection.Aging6MonthsTo1Year},
		{366, inspection.Aging1To2Years},
		{730, inspection.Aging1To2Years},
		{731, inspection.Aging2To3Years},
		{1095, inspection.Aging2To3Years},
		{1096, inspection.AgingOver3Years},
		{-30, inspection.AgingUnder6Months},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, reconcile.Classify(ago(tc.days), now), "%d days", tc.days)
	}
}

func TestClassify_Monotonic(t *testing.T) {
	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	prev := -1
	for d := 0; d <= 1500; d++ {
		rank := reconcile.Classify(now.AddDate(0, 0, -d), now).Rank()
		require.GreaterOrEqual(t, rank, prev, "day %d", d)
		prev = rank
	}
}

func TestClassifyCell_Unparseable(t *testing.T) {
	assert.Equal(t, inspection.AgingNone, reconcile.ClassifyCell("", sept1))
	assert.Equal(t, inspection.AgingNone, reconcile.ClassifyCell("tbd", sept1))
	assert.Equal(t, inspection.Aging6MonthsTo1Year, reconcile.ClassifyCell("2024-01-01", sept1))
}

// =============================================================================
// MERGE
// =============================================================================

func ledger() *sheet.Table {
	t := sheet.NewTable("Order", "Item Class", "Status", "Job Done", "PMonth Insp")
	t.AppendRow("  A100 ", "Piping", "old", "Compl", "3")
	t.AppendRow("A200", "Structure", "old", "", "4")
	t.AppendRow("", "Lifting", "old", "", "")
	return t
}

func normalizedFeed() *sheet.Table {
	t := sheet.NewTable("Order", "Normalized Status", "Basic finish", "Description")
	t.AppendRow("A100", "QCAP", "2024-01-01", "vessel")
	t.AppendRow("A100", "INPR", "2020-01-01", "duplicate")
	t.AppendRow("A300", "WAPP", "2024-08-01", "not in ledger")
	return t
}

func TestMerge_CanonicalKeysMatch(t *testing.T) {
	// GIVEN: a ledger identifier padded with spaces and a clean feed identifier
	l, f := ledger(), normalizedFeed()

	// WHEN
	out, stats, err := reconcile.Merge(l, f, inspection.DefaultSchema(), sept1)

	// THEN: the padded row matched the first feed occurrence
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, 1, stats.DuplicateKeys)
	assert.Equal(t, "Status", stats.StatusColumn)
	assert.Equal(t, "Due Date", stats.DueDateColumn)

	assert.Equal(t, "A100", out.Value(0, "Order"))
	assert.Equal(t, "QCAP", out.Value(0, "Status"))
	assert.Equal(t, "2024-01-01", out.Value(0, "Due Date"))
	assert.Equal(t, "1", out.Value(0, inspection.ColDueMonth))
	assert.Equal(t, string(inspection.Aging6MonthsTo1Year), out.Value(0, inspection.ColDelay))
}

func TestMerge_LeftJoinKeepsRowsAndBlanksUnmatched(t *testing.T) {
	l, f := ledger(), normalizedFeed()

	out, _, err := reconcile.Merge(l, f, inspection.DefaultSchema(), sept1)
	require.NoError(t, err)

	require.Equal(t, 3, out.Len())
	for _, row := range []int{1, 2} {
		assert.Equal(t, "", out.Value(row, "Status"))
		assert.Equal(t, "", out.Value(row, "Due Date"))
		assert.Equal(t, "", out.Value(row, inspection.ColDueMonth))
		assert.Equal(t, "", out.Value(row, inspection.ColDelay))
	}
	assert.False(t, out.Has("Description"), "feed columns are not appended")
}

func TestMerge_InputsUntouched(t *testing.T) {
	l, f := ledger(), normalizedFeed()
	lBefore, fBefore := l.Clone(), f.Clone()

	_, _, err := reconcile.Merge(l, f, inspection.DefaultSchema(), sept1)
	require.NoError(t, err)

	assert.Equal(t, lBefore, l)
	assert.Equal(t, fBefore, f)
}

func TestMerge_PrefersExistingTargetAlias(t *testing.T) {
	l := sheet.NewTable("Order", "User Status", "Next Insp")
	l.AppendRow("A100", "", "")

	out, stats, err := reconcile.Merge(l, normalizedFeed(), inspection.DefaultSchema(), sept1)
	require.NoError(t, err)

	assert.Equal(t, "User Status", stats.StatusColumn)
	assert.Equal(t, "Next Insp", stats.DueDateColumn)
	assert.False(t, out.Has("Status"))
	assert.Equal(t, "QCAP", out.Value(0, "User Status"))
}

func TestMerge_MissingKeyIsFatal(t *testing.T) {
	noKey := sheet.NewTable("Item Class")

	_, _, err := reconcile.Merge(noKey, normalizedFeed(), inspection.DefaultSchema(), sept1)
	require.ErrorIs(t, err, reconcile.ErrMergeKeyNotFound)

	var keyErr *reconcile.KeyError
	require.True(t, errors.As(err, &keyErr))
	assert.Equal(t, "ledger", keyErr.Side)

	_, _, err = reconcile.Merge(ledger(), noKey, inspection.DefaultSchema(), sept1)
	require.True(t, errors.As(err, &keyErr))
	assert.Equal(t, "status feed", keyErr.Side)
}

func TestMerge_MissingOptionalSourcesSkipDerivation(t *testing.T) {
	f := sheet.NewTable("Order")
	f.AppendRow("A100")

	out, stats, err := reconcile.Merge(ledger(), f, inspection.DefaultSchema(), sept1)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Matched)
	assert.Empty(t, stats.StatusColumn)
	assert.Empty(t, stats.DueDateColumn)
	assert.Equal(t, "old", out.Value(0, "Status"))
	assert.False(t, out.Has(inspection.ColDelay))
}

// =============================================================================
// RECONCILER
// =============================================================================

func TestReconciler_OverlaysLedgerRegion(t *testing.T) {
	ctx := context.Background()

	// GIVEN: a ledger workbook with a 4-row preamble and a second sheet
	wb := store.NewMemory()
	rows := [][]string{{"Inspection Program 2024"}, {"Site", "GIR"}, {}, {}}
	rows = append(rows, ledger().ToRows()...)
	wb.PutRows("Data Base", rows)
	wb.PutRows("Piping", [][]string{{"#"}, {"1"}})

	fd := store.NewMemory()
	fd.PutRows("Sheet1", normalizedFeed().ToRows())

	r := reconcile.New(inspection.DefaultSchema(), reconcile.DefaultLedgerRegion, nil)
	r.Now = func() time.Time { return sept1 }

	// WHEN
	stats, err := r.Run(ctx, wb, fd)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Rows)
	assert.Equal(t, 1, wb.Commits())

	raw, _ := wb.Rows("Data Base")
	assert.Equal(t, []string{"Inspection Program 2024"}, raw[0])
	assert.Equal(t, []string{"Site", "GIR"}, raw[1])

	got, err := wb.Read(ctx, reconcile.DefaultLedgerRegion)
	require.NoError(t, err)
	assert.Equal(t, "QCAP", got.Value(0, "Status"))
	assert.Equal(t, string(inspection.Aging6MonthsTo1Year), got.Value(0, inspection.ColDelay))

	other, _ := wb.Rows("Piping")
	assert.Equal(t, [][]string{{"#"}, {"1"}}, other)
}

func TestReconciler_KeyFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	wb := store.NewMemory()
	wb.PutRows("Data Base", [][]string{{}, {}, {}, {}, {"Item Class"}, {"Piping"}})
	fd := store.NewMemory()
	fd.PutRows("Sheet1", normalizedFeed().ToRows())

	_, err := reconcile.New(inspection.DefaultSchema(), reconcile.DefaultLedgerRegion, nil).Run(ctx, wb, fd)

	assert.ErrorIs(t, err, reconcile.ErrMergeKeyNotFound)
	assert.Equal(t, 0, wb.Commits())
}
