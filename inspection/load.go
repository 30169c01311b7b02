package inspection

import (
	"strings"
	"time"

	"github.com/warp/inspection-kpi/sheet"
)

// LoadOptions controls how a ledger table becomes records.
type LoadOptions struct {
	// MaxRows caps the data rows read (before blank rows are dropped). Zero = all.
	MaxRows int
	// Now supplies the default year for rows without one.
	Now time.Time
}

// Load converts a ledger table into records. Columns are resolved through the
// schema; an unresolved column leaves its field at the default:
//
//	backlog    -> false ("No")
//	compliance -> Non-SCE
//	year       -> Now's year
//	job done   -> Not Compl
//	months     -> 0 (absent)
//
// Rows whose cells are all blank are dropped.
func Load(t *sheet.Table, schema Schema, opts LoadOptions) []Record {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	col := func(a sheet.Aliases) int {
		name, ok := t.Resolve(a)
		if !ok {
			return -1
		}
		return t.Index(name)
	}
	var (
		idCol        = col(schema.OrderKey)
		categoryCol  = col(schema.Category)
		complCol     = col(schema.Compliance)
		backlogCol   = col(schema.Backlog)
		yearCol      = col(schema.Year)
		jobCol       = col(schema.JobDone)
		plannedCol   = col(schema.PlannedMonth)
		completedCol = col(schema.CompletedMonth)
		agingCol     = col(schema.Aging)
		dueCol       = col(schema.DueDateTarget)
		unitCol      = col(schema.Unit)
		scopeCol     = col(schema.Scope)
	)

	n := t.Len()
	if opts.MaxRows > 0 && opts.MaxRows < n {
		n = opts.MaxRows
	}

	records := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		if t.RowBlank(i) {
			continue
		}
		row := t.Rows[i]
		cell := func(c int) string {
			if c < 0 {
				return ""
			}
			return strings.TrimSpace(row[c])
		}

		r := Record{
			Row:            i,
			Identifier:     sheet.Canonical(cell(idCol)),
			Category:       cell(categoryCol),
			Compliance:     ParseComplianceClass(cell(complCol)),
			Backlog:        strings.EqualFold(cell(backlogCol), "yes"),
			Year:           now.Year(),
			JobDone:        NotCompleted,
			PlannedMonth:   parseMonth(cell(plannedCol)),
			CompletedMonth: parseMonth(cell(completedCol)),
			Aging:          ParseAgingBucket(cell(agingCol)),
			Unit:           cell(unitCol),
			Scope:          cell(scopeCol),
		}
		if y, ok := sheet.ParseInt(cell(yearCol)); ok {
			r.Year = y
		}
		if cell(jobCol) == string(Completed) {
			r.JobDone = Completed
		}
		if d, ok := sheet.ParseDate(cell(dueCol)); ok {
			r.DueDate = &d
		}
		records = append(records, r)
	}
	return records
}

func parseMonth(s string) int {
	m, ok := sheet.ParseInt(s)
	if !ok || m < 1 || m > 12 {
		return 0
	}
	return m
}

// FilterCompliance returns the records of one compliance class.
func FilterCompliance(records []Record, class ComplianceClass) []Record {
	var out []Record
	for _, r := range records {
		if r.Compliance == class {
			out = append(out, r)
		}
	}
	return out
}
