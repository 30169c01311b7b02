/*
Package categories produces one extract sheet per inspection category.

PURPOSE:
  Field teams work from per-class lists rather than the full ledger. For each
  category the generator filters the reconciled ledger and projects a small,
  fixed set of columns, then writes the non-empty results back into the ledger
  workbook as sheets named after the category.

OUTPUT COLUMNS:
  #, WO Number, Status, TAG, FL, Description, Due Date   (each only when resolvable)
  Due Month                                              (when Due Date exists)
  QCAP/EXDO  YES|NO                                      (when Status exists)

CONCURRENCY:
  Build is a pure function of an immutable ledger snapshot. Generator.Run fans
  Build out over a bounded errgroup, waits for every category, then commits all
  sheets in canonical order with a single store write.

SEE ALSO:
  - generator.go: fan-out and persistence
*/
package categories

import (
	"strconv"
	"strings"

	"github.com/warp/inspection-kpi/inspection"
	"github.com/warp/inspection-kpi/sheet"
)

const (
	ColSeq         = "#"
	ColWONumber    = "WO Number"
	ColStatus      = "Status"
	ColTag         = "TAG"
	ColLocation    = "FL"
	ColDescription = "Description"
	ColDueDate     = "Due Date"
	ColFlag        = "QCAP/EXDO"
)

// CategoryColumn resolves the ledger column holding the category. When no alias
// matches, it assumes the second column (the first when there is only one) and
// reports positional = true.
func CategoryColumn(ledger *sheet.Table, schema inspection.Schema) (name string, positional bool) {
	if col, ok := ledger.Resolve(schema.Category); ok {
		return col, false
	}
	switch len(ledger.Columns) {
	case 0:
		return "", true
	case 1:
		return ledger.Columns[0], true
	default:
		return ledger.Columns[1], true
	}
}

// Build projects the ledger rows of one category. categoryCol comes from
// CategoryColumn. The result has no rows when nothing matches.
func Build(ledger *sheet.Table, categoryCol, category string, schema inspection.Schema, codes inspection.Codes) *sheet.Table {
	ci := ledger.Index(categoryCol)
	if ci < 0 {
		return sheet.NewTable()
	}
	rows := ledger.Filter(func(i int) bool {
		return strings.TrimSpace(ledger.Rows[i][ci]) == category
	})
	if rows.Empty() {
		return sheet.NewTable()
	}

	mapping := []struct {
		target  string
		aliases sheet.Aliases
	}{
		{ColWONumber, schema.ViewOrder},
		{ColStatus, schema.ViewStatus},
		{ColTag, schema.ViewTag},
		{ColLocation, schema.ViewLocation},
		{ColDescription, schema.ViewDescription},
		{ColDueDate, schema.DueDateTarget},
	}

	out := sheet.NewTable(ColSeq)
	for i := 0; i < rows.Len(); i++ {
		out.AppendRow(strconv.Itoa(i + 1))
	}
	for _, m := range mapping {
		if src, ok := rows.Resolve(m.aliases); ok {
			out.SetColumn(m.target, rows.Column(src))
		}
	}

	if out.Has(ColDueDate) {
		due := out.Column(ColDueDate)
		months := make([]string, len(due))
		for i, cell := range due {
			if d, ok := sheet.ParseDate(cell); ok {
				months[i] = strconv.Itoa(int(d.Month()))
			}
		}
		out.SetColumn(inspection.ColDueMonth, months)
	}

	if out.Has(ColStatus) {
		flagged := make(map[string]struct{}, len(codes.FlagStatuses))
		for _, s := range codes.FlagStatuses {
			flagged[s] = struct{}{}
		}
		status := out.Column(ColStatus)
		flags := make([]string, len(status))
		for i, s := range status {
			flags[i] = "NO"
			if _, ok := flagged[s]; ok {
				flags[i] = "YES"
			}
		}
		out.SetColumn(ColFlag, flags)
	}

	return out
}
