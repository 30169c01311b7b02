/*
store.go - Persistence interface for named tabular regions

PURPOSE:
  Both input artifacts are workbooks. The engine reads a table from a named sheet
  at a header-row offset, and writes tables back either over the same region
  (keeping any rows above the header) or as a whole replacement sheet.

KEY INTERFACES:
  Store:  Read one region, Commit a batch of writes as a single unit

WRITE MODES:
  Overlay: rows above HeaderRow survive; HeaderRow and everything below is replaced
  Replace: the whole sheet is replaced (created when absent)

ATOMICITY:
  Commit() applies every write in order and persists them together. A failed
  commit leaves the artifact as it was. One commit per pipeline stage.

IMPLEMENTATIONS:
  - store/xlsx: excelize-backed workbook file
  - sheet/store: in-memory, for tests

SEE ALSO:
  - table.go: FromRows / ToRows used by implementations
*/
package sheet

import "context"

// Region addresses a table inside an artifact.
type Region struct {
	// Sheet is the sheet name. Empty selects the first sheet.
	Sheet string
	// HeaderRow is the 1-based row holding column names. Zero means 1.
	HeaderRow int
}

// Header returns the effective 1-based header row.
func (r Region) Header() int {
	if r.HeaderRow < 1 {
		return 1
	}
	return r.HeaderRow
}

type WriteMode int

const (
	Overlay WriteMode = iota
	Replace
)

func (m WriteMode) String() string {
	if m == Replace {
		return "replace"
	}
	return "overlay"
}

// Write is one pending region update.
type Write struct {
	Region Region
	Table  *Table
	Mode   WriteMode
}

// Store persists tables as named regions of one artifact.
type Store interface {
	// Read returns the table at region. ErrRegionNotFound when the sheet is missing.
	Read(ctx context.Context, region Region) (*Table, error)

	// Commit applies writes in order and persists them as one unit.
	Commit(ctx context.Context, writes ...Write) error

	// Sheets lists sheet names in workbook order.
	Sheets(ctx context.Context) ([]string, error)
}

// OverlayRows merges a table into existing raw rows: rows above the header are
// kept, the header and data replace everything below. Shared by implementations.
func OverlayRows(existing [][]string, headerRow int, t *Table) [][]string {
	if headerRow < 1 {
		headerRow = 1
	}
	out := make([][]string, 0, headerRow-1+len(t.Rows)+1)
	for i := 0; i < headerRow-1; i++ {
		if i < len(existing) {
			out = append(out, append([]string(nil), existing[i]...))
		} else {
			out = append(out, nil)
		}
	}
	return append(out, t.ToRows()...)
}
