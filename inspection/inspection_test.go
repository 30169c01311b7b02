package inspection_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/inspection-kpi/inspection"
	"github.com/warp/inspection-kpi/sheet"
)

func TestParseAgingBucket_AcceptsBothSpellings(t *testing.T) {
	assert.Equal(t, inspection.Aging6MonthsTo1Year, inspection.ParseAgingBucket("6 Months < x <1 Yrs"))
	assert.Equal(t, inspection.Aging6MonthsTo1Year, inspection.ParseAgingBucket("6 Months < x < 1 Yrs"))
	assert.Equal(t, inspection.Aging1To2Years, inspection.ParseAgingBucket("1 Yrs < x <2 Yrs"))
	assert.Equal(t, inspection.AgingNone, inspection.ParseAgingBucket(""))
	assert.Equal(t, inspection.AgingNone, inspection.ParseAgingBucket("later"))
}

func TestAgingBucket_RankFollowsSeverity(t *testing.T) {
	for i, b := range inspection.AgingBuckets {
		assert.Equal(t, i, b.Rank())
		assert.NotEmpty(t, b.Color())
	}
	assert.Equal(t, -1, inspection.AgingNone.Rank())
}

func TestParseComplianceClass(t *testing.T) {
	assert.Equal(t, inspection.SCE, inspection.ParseComplianceClass("sece"))
	assert.Equal(t, inspection.SCE, inspection.ParseComplianceClass(" SCE "))
	assert.Equal(t, inspection.NonSCE, inspection.ParseComplianceClass(""))
	assert.Equal(t, inspection.NonSCE, inspection.ParseComplianceClass("Non-SCE"))
}

func TestLoad_DefaultsAndCoercion(t *testing.T) {
	// GIVEN: a ledger with blank rows, malformed months and missing fields
	tbl := sheet.NewTable("Order", "Item Class", "SECE STATUS", "Backlog?", "Year", "Job Done", "PMonth Insp", "CMonth Insp", "Delay", "Due Date")
	tbl.AppendRow(" A100 ", "Piping", "SECE", "Yes", "2024", "Compl", "3", "2", "6 Months < x <1 Yrs", "2024-01-01")
	tbl.AppendRow()
	tbl.AppendRow("A101", "Structure", "", "", "", "", "13", "x", "", "")
	tbl.AppendRow("A102", "Lifting", "Non-SCE", "No", "2023", "Not Compl", "4.5", "", "> 3 Yrs", "junk")

	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	// WHEN
	records := inspection.Load(tbl, inspection.DefaultSchema(), inspection.LoadOptions{Now: now})

	// THEN
	require.Len(t, records, 3, "blank row dropped")

	first := records[0]
	assert.Equal(t, "A100", first.Identifier)
	assert.Equal(t, inspection.SCE, first.Compliance)
	assert.True(t, first.Backlog)
	assert.Equal(t, 2024, first.Year)
	assert.True(t, first.IsCompleted())
	assert.Equal(t, 3, first.PlannedMonth)
	assert.True(t, first.CompletedOnTime())
	assert.Equal(t, inspection.Aging6MonthsTo1Year, first.Aging)
	require.NotNil(t, first.DueDate)

	second := records[1]
	assert.Equal(t, 2, second.Row)
	assert.Equal(t, 2025, second.Year, "missing year defaults to now")
	assert.Equal(t, inspection.NotCompleted, second.JobDone)
	assert.False(t, second.Backlog)
	assert.Equal(t, 0, second.PlannedMonth, "13 is not a month")
	assert.Equal(t, 0, second.CompletedMonth)

	third := records[2]
	assert.Equal(t, 0, third.PlannedMonth, "fractional month is absent")
	assert.Nil(t, third.DueDate)
}

func TestLoad_MaxRowsCountsBeforeBlankDrop(t *testing.T) {
	tbl := sheet.NewTable("Item Class")
	tbl.AppendRow("Piping")
	tbl.AppendRow("")
	tbl.AppendRow("Structure")

	records := inspection.Load(tbl, inspection.DefaultSchema(), inspection.LoadOptions{MaxRows: 2})
	require.Len(t, records, 1)
	assert.Equal(t, "Piping", records[0].Category)
}
