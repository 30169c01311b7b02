/*
Package sheet provides the tabular model shared by every stage of the KPI engine.

PURPOSE:
  The ledger and the status feed are spreadsheets produced by different systems.
  Their column names drift between exports, cell types are unreliable, and blank
  cells are common. This package gives the rest of the engine one small model for
  that data: a Table of string cells keyed by column name, plus helpers to find
  columns by alias and coerce cells into numbers and dates on demand.

KEY CONCEPTS IN THIS FILE (table.go):
  - Table: ordered column names + rows of string cells
  - Null: the empty string; there is no separate null marker
  - Ragged rows are padded to the header width when a table is built

DESIGN PRINCIPLES:
  1. Strings in, strings out: coercion happens where a value is interpreted
  2. Tables are mutated in place by a stage; callers Clone() for snapshots
  3. No I/O here. Persistence lives behind Store (store.go)

SEE ALSO:
  - resolve.go: alias-based column discovery
  - cells.go: number/date coercion
  - store.go: named-region persistence interface
*/
package sheet

import (
	"fmt"
	"strings"
)

// =============================================================================
// TABLE
// =============================================================================

// Table is a header row plus data rows. Every row has len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// FromRows builds a table from raw sheet rows. headerRow is 1-based; rows above
// it are ignored. Empty header cells are named "Unnamed: <index>", and trailing
// all-empty rows are dropped.
func FromRows(raw [][]string, headerRow int) (*Table, error) {
	if headerRow < 1 {
		headerRow = 1
	}
	if len(raw) < headerRow {
		return nil, fmt.Errorf("%w: header row %d, sheet has %d rows", ErrHeaderMissing, headerRow, len(raw))
	}

	header := raw[headerRow-1]
	t := &Table{Columns: make([]string, len(header))}
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		t.Columns[i] = name
	}

	body := raw[headerRow:]
	for len(body) > 0 && isBlank(body[len(body)-1]) {
		body = body[:len(body)-1]
	}
	for _, r := range body {
		t.AppendRow(r...)
	}
	return t, nil
}

// ToRows returns the header followed by the data rows.
func (t *Table) ToRows() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, append([]string(nil), t.Columns...))
	for _, r := range t.Rows {
		out = append(out, append([]string(nil), r...))
	}
	return out
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Empty reports whether the table has no data rows.
func (t *Table) Empty() bool { return len(t.Rows) == 0 }

// Index returns the position of a column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether a column exists.
func (t *Table) Has(name string) bool { return t.Index(name) >= 0 }

// Value returns the cell at row for the named column, or "" when the column is absent.
func (t *Table) Value(row int, name string) string {
	i := t.Index(name)
	if i < 0 {
		return ""
	}
	return t.Rows[row][i]
}

// Column returns a copy of a column's cells, or nil when absent.
func (t *Table) Column(name string) []string {
	i := t.Index(name)
	if i < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// SetColumn overwrites a column, appending it when absent.
// values must have one entry per row.
func (t *Table) SetColumn(name string, values []string) {
	if len(values) != len(t.Rows) {
		panic(fmt.Sprintf("sheet: SetColumn %q: %d values for %d rows", name, len(values), len(t.Rows)))
	}
	i := t.Index(name)
	if i < 0 {
		t.Columns = append(t.Columns, name)
		for r := range t.Rows {
			t.Rows[r] = append(t.Rows[r], values[r])
		}
		return
	}
	for r := range t.Rows {
		t.Rows[r][i] = values[r]
	}
}

// MapColumn rewrites every cell of a column in place. Missing columns are ignored.
func (t *Table) MapColumn(name string, fn func(string) string) {
	i := t.Index(name)
	if i < 0 {
		return
	}
	for _, row := range t.Rows {
		row[i] = fn(row[i])
	}
}

// AppendRow adds a row, padding or truncating it to the header width.
func (t *Table) AppendRow(cells ...string) {
	row := make([]string, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// TrimHeaders strips surrounding whitespace from every column name.
func (t *Table) TrimHeaders() {
	for i, c := range t.Columns {
		t.Columns[i] = strings.TrimSpace(c)
	}
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]string, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out
}

// Filter returns a new table holding copies of the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	out := NewTable(t.Columns...)
	for i, r := range t.Rows {
		if keep(i) {
			out.Rows = append(out.Rows, append([]string(nil), r...))
		}
	}
	return out
}

// RowBlank reports whether every cell of a row is empty after trimming.
func (t *Table) RowBlank(row int) bool { return isBlank(t.Rows[row]) }

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
