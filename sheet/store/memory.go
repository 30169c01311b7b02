// Package store provides sheet.Store implementations.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/inspection-kpi/sheet"
)

// =============================================================================
// MEMORY STORE - In-memory workbook (for testing/dev)
// =============================================================================

type Memory struct {
	mu     sync.RWMutex
	order  []string
	sheets map[string][][]string
	// commits counts successful Commit calls.
	commits int
}

func NewMemory() *Memory {
	return &Memory{sheets: make(map[string][][]string)}
}

// PutRows seeds a sheet with raw rows, including any preamble above the header.
func (m *Memory) PutRows(name string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(name, rows)
}

// Rows returns a copy of a sheet's raw rows.
func (m *Memory) Rows(name string) ([][]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, ok := m.sheets[name]
	if !ok {
		return nil, false
	}
	return copyRows(rows), true
}

// Commits returns how many commits have been applied.
func (m *Memory) Commits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commits
}

func (m *Memory) Read(_ context.Context, region sheet.Region) (*sheet.Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name, err := m.sheetNameLocked(region.Sheet)
	if err != nil {
		return nil, err
	}
	return sheet.FromRows(m.sheets[name], region.Header())
}

// Commit applies all writes to a scratch copy and swaps it in only when every
// write succeeded.
func (m *Memory) Commit(_ context.Context, writes ...sheet.Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := append([]string(nil), m.order...)
	sheets := make(map[string][][]string, len(m.sheets))
	for k, v := range m.sheets {
		sheets[k] = v
	}

	for _, w := range writes {
		if w.Table == nil {
			return fmt.Errorf("commit %q: nil table", w.Region.Sheet)
		}
		name := w.Region.Sheet
		if name == "" {
			if len(order) == 0 {
				return fmt.Errorf("%w: workbook has no sheets", sheet.ErrRegionNotFound)
			}
			name = order[0]
		}
		existing, ok := sheets[name]
		switch w.Mode {
		case sheet.Overlay:
			if !ok {
				return fmt.Errorf("%w: %q", sheet.ErrRegionNotFound, name)
			}
			sheets[name] = sheet.OverlayRows(existing, w.Region.Header(), w.Table)
		case sheet.Replace:
			if !ok {
				order = append(order, name)
			}
			sheets[name] = w.Table.ToRows()
		}
	}

	m.order = order
	m.sheets = sheets
	m.commits++
	return nil
}

func (m *Memory) Sheets(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...), nil
}

func (m *Memory) putLocked(name string, rows [][]string) {
	if _, ok := m.sheets[name]; !ok {
		m.order = append(m.order, name)
	}
	m.sheets[name] = copyRows(rows)
}

func (m *Memory) sheetNameLocked(name string) (string, error) {
	if name == "" {
		if len(m.order) == 0 {
			return "", fmt.Errorf("%w: workbook has no sheets", sheet.ErrRegionNotFound)
		}
		return m.order[0], nil
	}
	if _, ok := m.sheets[name]; !ok {
		return "", fmt.Errorf("%w: %q", sheet.ErrRegionNotFound, name)
	}
	return name, nil
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
