package sheet

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// =============================================================================
// CELL COERCION
// =============================================================================
// Parse failures never raise: numbers become NaN and dates become "not ok".

// DateLayout is the textual form used for every date the engine writes.
const DateLayout = "2006-01-02"

// Excel serial numbers outside this range are not treated as dates.
const (
	minSerialDate = 1
	maxSerialDate = 2958465 // 9999-12-31
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"01-02-2006",
	"02.01.2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"01/02/06",
}

// Canonical is the only form in which identifiers are compared.
func Canonical(s string) string { return strings.TrimSpace(s) }

// ParseNumber converts a cell to float64, returning NaN when it is not numeric.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ParseInt converts a cell holding an integral number. Fractional or
// non-numeric values are rejected.
func ParseInt(s string) (int, bool) {
	v := ParseNumber(s)
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

// ParseDate converts a cell to a UTC date. Raw Excel serial numbers and a fixed
// set of textual layouts are accepted.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if v < minSerialDate || v > maxSerialDate {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(v, false)
		if err != nil {
			return time.Time{}, false
		}
		return DateOnly(t), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOnly(t), true
		}
	}
	return time.Time{}, false
}

// FormatDate renders a date cell; the zero time renders as "".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// FormatInt renders an integer cell.
func FormatInt(n int) string { return strconv.Itoa(n) }

// =============================================================================
// DAY ARITHMETIC
// =============================================================================

// DateOnly truncates to midnight UTC of the same calendar day.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns whole days from -> to, compared at day granularity.
func DaysBetween(from, to time.Time) int {
	return int(DateOnly(to).Sub(DateOnly(from)).Hours() / 24)
}
