package inspection

import "github.com/warp/inspection-kpi/sheet"

// =============================================================================
// DERIVED COLUMN NAMES
// =============================================================================

const (
	ColLastSystemStatus = "Last System Status"
	ColNormalizedStatus = "Normalized Status"
	ColDueMonth         = "Due Month"
	ColDelay            = "Delay"
)

// =============================================================================
// SCHEMA - Column alias lists, one per logical field
// =============================================================================
// New source-system variants are added here (or in the YAML config), never in
// stage logic.

// Schema holds the alias list for every column the engine resolves.
type Schema struct {
	// Status feed
	FeedIdentifiers    sheet.Aliases `yaml:"feed_identifiers"`
	SystemStatusPrefix string        `yaml:"system_status_prefix"`
	UserStatusPrefix   string        `yaml:"user_status_prefix"`

	// Merge
	OrderKey      sheet.Aliases `yaml:"order_key"`
	StatusSource  sheet.Aliases `yaml:"status_source"`
	DueDateSource sheet.Aliases `yaml:"due_date_source"`
	StatusTarget  sheet.Aliases `yaml:"status_target"`
	DueDateTarget sheet.Aliases `yaml:"due_date_target"`

	// Ledger fields read by the metrics
	Category       sheet.Aliases `yaml:"category"`
	Compliance     sheet.Aliases `yaml:"compliance"`
	Backlog        sheet.Aliases `yaml:"backlog"`
	Year           sheet.Aliases `yaml:"year"`
	JobDone        sheet.Aliases `yaml:"job_done"`
	PlannedMonth   sheet.Aliases `yaml:"planned_month"`
	CompletedMonth sheet.Aliases `yaml:"completed_month"`
	Aging          sheet.Aliases `yaml:"aging"`
	Unit           sheet.Aliases `yaml:"unit"`
	Scope          sheet.Aliases `yaml:"scope"`

	// Category extract columns
	ViewOrder       sheet.Aliases `yaml:"view_order"`
	ViewStatus      sheet.Aliases `yaml:"view_status"`
	ViewTag         sheet.Aliases `yaml:"view_tag"`
	ViewLocation    sheet.Aliases `yaml:"view_location"`
	ViewDescription sheet.Aliases `yaml:"view_description"`
}

// DefaultSchema returns the aliases seen across the known SAP export variants.
func DefaultSchema() Schema {
	return Schema{
		FeedIdentifiers:    sheet.Aliases{"Order", "Order Number", "WO Number", "OrderNo"},
		SystemStatusPrefix: "system status",
		UserStatusPrefix:   "user status",

		OrderKey:      sheet.Aliases{"Order", "Order Number", "WO Number", "OrderNo", "Notification"},
		StatusSource:  sheet.Aliases{ColNormalizedStatus, ColLastSystemStatus, "User Status"},
		DueDateSource: sheet.Aliases{"Basic finish", "Basic Finish", "Finish date", "Finish Date", "Sched finish date"},
		StatusTarget:  sheet.Aliases{"Status", "User Status"},
		DueDateTarget: sheet.Aliases{"Due Date", "Next Insp", "Basic finish"},

		Category:       sheet.Aliases{"Item Class"},
		Compliance:     sheet.Aliases{"SECE STATUS"},
		Backlog:        sheet.Aliases{"Backlog?", "Backlog"},
		Year:           sheet.Aliases{"Year"},
		JobDone:        sheet.Aliases{"Job Done"},
		PlannedMonth:   sheet.Aliases{"PMonth Insp"},
		CompletedMonth: sheet.Aliases{"CMonth Insp"},
		Aging:          sheet.Aliases{ColDelay},
		Unit:           sheet.Aliases{"Unit name"},
		Scope:          sheet.Aliases{"Scope"},

		ViewOrder:       sheet.Aliases{"WO Number", "Order", "Order Number"},
		ViewStatus:      sheet.Aliases{"Status", "User Status", "SECE STATUS"},
		ViewTag:         sheet.Aliases{"TAG", "Tag", "Technical ID"},
		ViewLocation:    sheet.Aliases{"FL", "Functional Location"},
		ViewDescription: sheet.Aliases{"Description", "Object description"},
	}
}

// =============================================================================
// STATUS CODES
// =============================================================================

// Codes holds the status vocabulary of the work-order system.
type Codes struct {
	// ClosedSystemStatuses are 4-letter system statuses meaning closed.
	ClosedSystemStatuses []string `yaml:"closed_system_statuses"`
	// ClosedSentinel replaces the user status of closed orders.
	ClosedSentinel string `yaml:"closed_sentinel"`
	// FlagStatuses mark a category extract row as done (QCAP/EXDO column).
	FlagStatuses []string `yaml:"flag_statuses"`
}

func DefaultCodes() Codes {
	return Codes{
		ClosedSystemStatuses: []string{"CLSD", "CLOT", "TCLO"},
		ClosedSentinel:       "QCAP",
		FlagStatuses:         []string{"QCAP", "EXDO"},
	}
}

// =============================================================================
// CATEGORIES AND SITES
// =============================================================================

// DefaultCategories are the inspection classes that get their own extract sheet.
func DefaultCategories() []string {
	return []string{
		"Pressure Vessel (VII)",
		"Pressure Vessel (VIE)",
		"Pressure Safety Device",
		"Piping",
		"FU Items",
		"Structure",
		"Flare TIP",
		"Lifting",
		"Non Structural Tank",
		"Corrosion Monitoring",
		"Campaign",
		"Intelligent Pigging",
		"Flame Arrestor",
	}
}

// Site describes a plant's ledger. MaxRows caps how many data rows are read;
// zero reads everything.
type Site struct {
	MaxRows int `yaml:"max_rows"`
}

func DefaultSites() map[string]Site {
	return map[string]Site{
		"GIR": {MaxRows: 583},
		"DAL": {MaxRows: 761},
		"PAZ": {MaxRows: 861},
		"CLV": {MaxRows: 735},
	}
}
