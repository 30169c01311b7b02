/*
Package inspection defines the domain vocabulary of the inspection ledger.

PURPOSE:
  The ledger is an inspection program workbook: one row per planned inspection
  or work order. This package names the fields the engine reasons about and the
  enumerations they take, independently of how a given export labels its columns.

KEY CONCEPTS IN THIS FILE (types.go):
  - AgingBucket:     staleness relative to the due date, five ordered ranges
  - ComplianceClass: SCE (safety critical) vs Non-SCE
  - JobState:        Compl / Not Compl
  - Record:          one typed ledger row

SEE ALSO:
  - schema.go: column alias lists and status codes (configuration data)
  - load.go:   Table -> []Record
*/
package inspection

import (
	"strings"
	"time"
)

// =============================================================================
// AGING BUCKET
// =============================================================================

// AgingBucket classifies elapsed time since the due date. The zero value is
// "unclassified" (no due date).
type AgingBucket string

const (
	AgingUnder6Months   AgingBucket = "< 6 Months"
	Aging6MonthsTo1Year AgingBucket = "6 Months < x < 1 Yrs"
	Aging1To2Years      AgingBucket = "1 Yrs < x < 2 Yrs"
	Aging2To3Years      AgingBucket = "2 Yrs < x < 3 Yrs"
	AgingOver3Years     AgingBucket = "> 3 Yrs"
	AgingNone           AgingBucket = ""
)

// AgingBuckets lists the buckets in severity order.
var AgingBuckets = []AgingBucket{
	AgingUnder6Months,
	Aging6MonthsTo1Year,
	Aging1To2Years,
	Aging2To3Years,
	AgingOver3Years,
}

var agingColors = map[AgingBucket]string{
	AgingUnder6Months:   "#90EE90",
	Aging6MonthsTo1Year: "#FFB366",
	Aging1To2Years:      "#FFE5B4",
	Aging2To3Years:      "#FFC0CB",
	AgingOver3Years:     "#FF6B6B",
}

// Color is the display color bound to a bucket. Presentation only.
func (b AgingBucket) Color() string { return agingColors[b] }

// Rank is the bucket's position in severity order, or -1 when unclassified.
func (b AgingBucket) Rank() int {
	for i, x := range AgingBuckets {
		if x == b {
			return i
		}
	}
	return -1
}

// ParseAgingBucket maps a stored label back to a bucket. Workbooks carry two
// spellings ("<1 Yrs" and "< 1 Yrs"), so whitespace is ignored.
func ParseAgingBucket(s string) AgingBucket {
	key := squash(s)
	if key == "" {
		return AgingNone
	}
	for _, b := range AgingBuckets {
		if squash(string(b)) == key {
			return b
		}
	}
	return AgingNone
}

func squash(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

// =============================================================================
// COMPLIANCE CLASS / JOB STATE
// =============================================================================

type ComplianceClass string

const (
	SCE    ComplianceClass = "SCE"
	NonSCE ComplianceClass = "Non-SCE"
)

// ComplianceClasses lists classes in breakdown column order: restricted first.
var ComplianceClasses = []ComplianceClass{SCE, NonSCE}

// ParseComplianceClass treats "SECE" (the ledger spelling) and "SCE" as
// restricted; anything else, including blank, is Non-SCE.
func ParseComplianceClass(s string) ComplianceClass {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SECE", "SCE":
		return SCE
	default:
		return NonSCE
	}
}

type JobState string

const (
	Completed    JobState = "Compl"
	NotCompleted JobState = "Not Compl"
)

// =============================================================================
// RECORD
// =============================================================================

// Record is one typed ledger row. Month fields are 1..12, or 0 when absent or
// not a whole month number.
type Record struct {
	Row            int // position in the source table
	Identifier     string
	Category       string
	Compliance     ComplianceClass
	Backlog        bool
	Year           int
	JobDone        JobState
	PlannedMonth   int
	CompletedMonth int
	Aging          AgingBucket
	DueDate        *time.Time
	Unit           string
	Scope          string
}

// IsCompleted reports job-done == Compl.
func (r Record) IsCompleted() bool { return r.JobDone == Completed }

// CompletedOnTime reports completion in or before the planned month.
// Rows missing either month never count as on time.
func (r Record) CompletedOnTime() bool {
	return r.IsCompleted() && r.PlannedMonth > 0 && r.CompletedMonth > 0 &&
		r.CompletedMonth <= r.PlannedMonth
}

// MonthLabels are the three-letter labels used on monthly records.
var MonthLabels = [12]string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}
