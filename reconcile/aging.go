package reconcile

import (
	"time"

	"github.com/warp/inspection-kpi/inspection"
	"github.com/warp/inspection-kpi/sheet"
)

// Day thresholds use a 365-day year. A row strictly above a threshold falls in
// the older bucket: 182 days is still "< 6 Months", 183 is not.
const (
	daysOver3Years  = 1095
	daysOver2Years  = 730
	daysOver1Year   = 365
	daysOver6Months = 182
)

// Classify buckets a due date by the whole days elapsed until now. Due dates in
// the future are "< 6 Months".
func Classify(due, now time.Time) inspection.AgingBucket {
	days := sheet.DaysBetween(due, now)
	switch {
	case days > daysOver3Years:
		return inspection.AgingOver3Years
	case days > daysOver2Years:
		return inspection.Aging2To3Years
	case days > daysOver1Year:
		return inspection.Aging1To2Years
	case days > daysOver6Months:
		return inspection.Aging6MonthsTo1Year
	default:
		return inspection.AgingUnder6Months
	}
}

// ClassifyCell is Classify over a raw cell; unparseable or blank dates are unclassified.
func ClassifyCell(cell string, now time.Time) inspection.AgingBucket {
	due, ok := sheet.ParseDate(cell)
	if !ok {
		return inspection.AgingNone
	}
	return Classify(due, now)
}
