package sheet

import "strings"

// =============================================================================
// ALIAS RESOLUTION
// =============================================================================

// Aliases is an ordered list of acceptable names for one logical column.
// Order expresses priority between source-system conventions: the first alias
// present wins, regardless of where that column sits in the sheet.
type Aliases []string

// Resolve returns the first alias present in columns. Matching is exact and
// case-sensitive; columns are expected to be trimmed already.
func (a Aliases) Resolve(columns []string) (string, bool) {
	present := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		present[c] = struct{}{}
	}
	for _, alias := range a {
		if _, ok := present[alias]; ok {
			return alias, true
		}
	}
	return "", false
}

// ResolveOr returns the resolved alias, or the first alias when none is present.
// Used for target columns that are created when missing.
func (a Aliases) ResolveOr(columns []string) string {
	if name, ok := a.Resolve(columns); ok {
		return name
	}
	if len(a) == 0 {
		return ""
	}
	return a[0]
}

// Present returns every alias found in columns, in alias order.
func (a Aliases) Present(columns []string) []string {
	var out []string
	for _, alias := range a {
		for _, c := range columns {
			if c == alias {
				out = append(out, alias)
				break
			}
		}
	}
	return out
}

// ResolvePrefix returns the first column (in sheet order) whose name starts with
// prefix, compared case-insensitively.
func ResolvePrefix(prefix string, columns []string) (string, bool) {
	p := strings.ToLower(prefix)
	for _, c := range columns {
		if strings.HasPrefix(strings.ToLower(c), p) {
			return c, true
		}
	}
	return "", false
}

// Resolve is shorthand for aliases.Resolve(t.Columns).
func (t *Table) Resolve(aliases Aliases) (string, bool) {
	return aliases.Resolve(t.Columns)
}
