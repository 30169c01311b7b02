/*
Package xlsx provides a sheet.Store over an .xlsx workbook file.

PURPOSE:
  Both the inspection ledger and the SAP status feed are Excel workbooks. This
  store reads named regions out of them and writes pipeline results back.

COMMIT SEMANTICS:
  Writes are applied to the open workbook and saved to a temporary file in the
  same directory, which is then renamed over the original. If any write or the
  save fails, the in-memory workbook is reopened from disk, so the file on disk
  is never half-written.

CELL TYPES:
  Cells are read raw (dates arrive as serial numbers, see sheet.ParseDate).
  Written cells that are plain decimal numbers are stored as numbers, all
  others as text.

OVERLAY:
  Rows above the header row are left untouched, including their formatting.
  Cells at and below the header are rewritten and stale cells are cleared.
*/
package xlsx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/warp/inspection-kpi/sheet"
	"github.com/xuri/excelize/v2"
)

// Workbook implements sheet.Store over one .xlsx file.
type Workbook struct {
	path string
	mu   sync.Mutex
	file *excelize.File
}

var _ sheet.Store = (*Workbook)(nil)

// Open opens an existing workbook.
func Open(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return &Workbook{path: path, file: f}, nil
}

// OpenStore is Open with the signature of pipeline.Opener.
func OpenStore(path string) (sheet.Store, error) {
	return Open(path)
}

// Path returns the workbook's file path.
func (w *Workbook) Path() string { return w.path }

func (w *Workbook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *Workbook) Read(ctx context.Context, region sheet.Region) (*sheet.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	name, err := w.sheetName(region.Sheet)
	if err != nil {
		return nil, err
	}
	rows, err := w.file.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
	}
	t, err := sheet.FromRows(rows, region.Header())
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", name, err)
	}
	return t, nil
}

func (w *Workbook) Commit(ctx context.Context, writes ...sheet.Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.apply(writes); err != nil {
		w.discard()
		return err
	}
	if err := w.save(); err != nil {
		w.discard()
		return err
	}
	return nil
}

func (w *Workbook) Sheets(_ context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.GetSheetList(), nil
}

func (w *Workbook) apply(writes []sheet.Write) error {
	for _, wr := range writes {
		if wr.Table == nil {
			return fmt.Errorf("commit %q: nil table", wr.Region.Sheet)
		}

		name := wr.Region.Sheet
		exists := true
		if name == "" {
			var err error
			if name, err = w.sheetName(""); err != nil {
				return err
			}
		} else if idx, _ := w.file.GetSheetIndex(name); idx < 0 {
			exists = false
		}

		start := 1
		switch wr.Mode {
		case sheet.Overlay:
			if !exists {
				return fmt.Errorf("%w: %q", sheet.ErrRegionNotFound, name)
			}
			start = wr.Region.Header()
		case sheet.Replace:
			if !exists {
				if _, err := w.file.NewSheet(name); err != nil {
					return fmt.Errorf("failed to create sheet %q: %w", name, err)
				}
			}
		}

		if err := w.writeFrom(name, start, wr.Table.ToRows()); err != nil {
			return err
		}
	}
	return nil
}

// writeFrom writes rows starting at the 1-based row start and clears every
// previously populated cell at or below start that the new rows do not cover.
func (w *Workbook) writeFrom(name string, start int, rows [][]string) error {
	existing, err := w.file.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return fmt.Errorf("failed to read sheet %q: %w", name, err)
	}

	last := start - 1 + len(rows)
	if len(existing) > last {
		last = len(existing)
	}

	for r := start; r <= last; r++ {
		var next, prev []string
		if i := r - start; i < len(rows) {
			next = rows[i]
		}
		if r-1 < len(existing) {
			prev = existing[r-1]
		}
		width := max(len(next), len(prev))
		if width == 0 {
			continue
		}

		cells := make([]interface{}, width)
		for c := range cells {
			if c < len(next) {
				cells[c] = cellValue(next[c])
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r)
		if err != nil {
			return err
		}
		if err := w.file.SetSheetRow(name, cell, &cells); err != nil {
			return fmt.Errorf("failed to write sheet %q row %d: %w", name, r, err)
		}
	}
	return nil
}

// save writes the workbook next to the original and renames it into place.
func (w *Workbook) save() error {
	tmp, err := os.CreateTemp(filepath.Dir(w.path), "."+filepath.Base(w.path)+".*.xlsx")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := w.file.Write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		return fmt.Errorf("failed to replace workbook %s: %w", w.path, err)
	}
	return nil
}

// discard drops unsaved changes by reloading the file from disk.
func (w *Workbook) discard() {
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return
	}
	w.file.Close()
	w.file = f
}

func (w *Workbook) sheetName(name string) (string, error) {
	if name == "" {
		list := w.file.GetSheetList()
		if len(list) == 0 {
			return "", fmt.Errorf("%w: workbook has no sheets", sheet.ErrRegionNotFound)
		}
		return list[0], nil
	}
	if idx, _ := w.file.GetSheetIndex(name); idx < 0 {
		return "", fmt.Errorf("%w: %q", sheet.ErrRegionNotFound, name)
	}
	return name, nil
}

// cellValue stores canonical decimal strings as numbers. "007" stays text.
func cellValue(s string) interface{} {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || strconv.FormatFloat(v, 'f', -1, 64) != s {
		return s
	}
	return v
}
