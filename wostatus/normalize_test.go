package wostatus_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inspection-kpi/inspection"
	"github.com/warp/inspection-kpi/sheet"
	"github.com/warp/inspection-kpi/sheet/store"
	"github.com/warp/inspection-kpi/wostatus"
)

func feed() *sheet.Table {
	t := sheet.NewTable(" Order ", "System Status", "User status ", "Basic finish")
	t.AppendRow("  A100 ", "CLSDxx", "INPR", "2024-01-01")
	t.AppendRow("A101", "REL  PRC", "WAPP", "2024-02-01")
	t.AppendRow("A102", "TCLO", "", "")
	return t
}

func TestNormalize_ClosedSystemStatusForcesSentinel(t *testing.T) {
	// GIVEN: a feed row whose system status starts with CLSD
	tbl := feed()

	// WHEN
	rep := wostatus.Normalize(tbl, inspection.DefaultSchema(), inspection.DefaultCodes())

	// THEN: derived status is the 4-letter prefix and the user status is overridden
	require.True(t, rep.Derived)
	require.True(t, rep.Normalized)
	assert.Equal(t, []string{"CLSD", "REL ", "TCLO"}, tbl.Column(inspection.ColLastSystemStatus))
	assert.Equal(t, []string{"QCAP", "WAPP", "QCAP"}, tbl.Column(inspection.ColNormalizedStatus))
}

func TestNormalize_TrimsHeadersAndIdentifiers(t *testing.T) {
	tbl := feed()

	rep := wostatus.Normalize(tbl, inspection.DefaultSchema(), inspection.DefaultCodes())

	assert.Equal(t, []string{"Order"}, rep.Identifiers)
	assert.Equal(t, "User status", rep.UserStatus)
	assert.Equal(t, "A100", tbl.Value(0, "Order"))
}

func TestNormalize_Idempotent(t *testing.T) {
	// GIVEN: a feed normalized once
	tbl := feed()
	wostatus.Normalize(tbl, inspection.DefaultSchema(), inspection.DefaultCodes())
	once := tbl.Clone()

	// WHEN: normalizing its own output
	rep := wostatus.Normalize(tbl, inspection.DefaultSchema(), inspection.DefaultCodes())

	// THEN: nothing changes and the derived column is not recomputed
	assert.False(t, rep.Derived)
	assert.Equal(t, once, tbl)
}

func TestNormalize_ExistingDerivedColumnIsKept(t *testing.T) {
	tbl := sheet.NewTable("Order", "System Status", "User Status", inspection.ColLastSystemStatus)
	tbl.AppendRow("A1", "CLSD", "INPR", "REL")

	wostatus.Normalize(tbl, inspection.DefaultSchema(), inspection.DefaultCodes())

	assert.Equal(t, "REL", tbl.Value(0, inspection.ColLastSystemStatus))
	assert.Equal(t, "INPR", tbl.Value(0, inspection.ColNormalizedStatus))
}

func TestNormalize_MissingUserStatusSkipsNormalizedColumn(t *testing.T) {
	tbl := sheet.NewTable("Order", "System Status")
	tbl.AppendRow("A1", "CLSD")

	rep := wostatus.Normalize(tbl, inspection.DefaultSchema(), inspection.DefaultCodes())

	assert.True(t, rep.Derived)
	assert.False(t, rep.Normalized)
	assert.False(t, tbl.Has(inspection.ColNormalizedStatus))
}

func TestNormalizeStore_ReplacesFirstSheet(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	m.PutRows("Sheet1", feed().ToRows())
	m.PutRows("Other", [][]string{{"x"}})

	rep, err := wostatus.NormalizeStore(ctx, m, inspection.DefaultSchema(), inspection.DefaultCodes())
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Rows)

	got, err := m.Read(ctx, sheet.Region{Sheet: "Sheet1"})
	require.NoError(t, err)
	assert.True(t, got.Has(inspection.ColNormalizedStatus))
	assert.Equal(t, "A100", got.Value(0, "Order"))

	other, _ := m.Rows("Other")
	assert.Equal(t, [][]string{{"x"}}, other)
}

func TestNormalizeStore_EmptyWorkbook(t *testing.T) {
	_, err := wostatus.NormalizeStore(context.Background(), store.NewMemory(), inspection.DefaultSchema(), inspection.DefaultCodes())
	assert.ErrorIs(t, err, sheet.ErrRegionNotFound)
}
