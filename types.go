package beacon

import "time"

// Severity ranks a situation, CRITICAL first.
type Severity string

const (
	SeverityCritical    Severity = "CRITICAL"
	SeverityHigh        Severity = "HIGH"
	SeverityMedium      Severity = "MEDIUM"
	SeverityLow         Severity = "LOW"
	SeverityInformation Severity = "INFORMATION"
)

// MeasurementRequest asks an external provider for one KPI reading.
// Timeframe and ComparisonType use the wire names, e.g. "current_quarter"
// and "year_over_year".
type MeasurementRequest struct {
	KPI            string
	DataProductID  string
	Query          string
	Unit           string
	Timeframe      string
	ComparisonType string
	Filters        map[string]any
}

// Measurement is a KPI reading and its baseline. A nil ComparisonValue
// classifies as INFORMATION.
type Measurement struct {
	Value           float64
	ComparisonValue *float64
}

// Assignee is a proposed owner for a situation.
type Assignee struct {
	PrincipalID string  `json:"principal_id"`
	DisplayName string  `json:"display_name"`
	Role        string  `json:"role"`
	Score       float64 `json:"score"`
	Reason      string  `json:"reason"`
}

// Situation is the public view of a detected situation.
type Situation struct {
	ID              string    `json:"id"`
	ParentID        *string   `json:"parent_id,omitempty"`
	PrincipalID     string    `json:"principal_id"`
	KPIName         string    `json:"kpi_name"`
	Value           float64   `json:"value"`
	ComparisonValue *float64  `json:"comparison_value,omitempty"`
	PercentChange   *float64  `json:"percent_change,omitempty"`
	Unit            string    `json:"unit"`
	Timeframe       string    `json:"timeframe"`
	ComparisonType  string    `json:"comparison_type"`
	Severity        Severity  `json:"severity"`
	Status          string    `json:"status"`
	Description     string    `json:"description"`
	BusinessImpact  string    `json:"business_impact"`
	HITLRequired    bool      `json:"hitl_required"`
	AssigneeID      *string   `json:"assignee_id,omitempty"`
	Tags            []string  `json:"tags"`
	Timestamp       time.Time `json:"timestamp"`
	CreatedAt       time.Time `json:"created_at"`

	SuggestedActions    []string   `json:"suggested_actions"`
	DiagnosticQuestions []string   `json:"diagnostic_questions"`
	DedupeKey           string     `json:"dedupe_key"`
	CooldownUntil       *time.Time `json:"cooldown_until,omitempty"`

	ProposedAssignees []Assignee `json:"proposed_assignees,omitempty"`
}

// DetectRequest is the input to App.Detect. An empty PrincipalID resolves
// to the default principal.
type DetectRequest struct {
	PrincipalID       string
	BusinessProcesses []string
	Timeframe         string
	ComparisonType    string
	Filters           map[string]any
}

// DetectResult is the outcome of one detection cycle.
type DetectResult struct {
	PrincipalID        string       `json:"principal_id"`
	Role               string       `json:"role"`
	ResolutionStrategy string       `json:"resolution_strategy"`
	Fallback           bool         `json:"fallback"`
	Situations         []Situation  `json:"situations"`
	KPIEvaluatedCount  int          `json:"kpi_evaluated_count"`
	KPIsEvaluated      []string     `json:"kpis_evaluated"`
	UnmappedKPIs       []string     `json:"unmapped_kpis"`
	CatalogExamined    int          `json:"catalog_examined"`
	Suppressed         int          `json:"suppressed"`
	Diagnostics        []Diagnostic `json:"diagnostics,omitempty"`
}

// Diagnostic explains a degraded part of a result, such as a fallback
// resolution or a KPI that could not be measured. Kind uses the wire names,
// e.g. "resolution_fallback" and "measurement_unavailable".
type Diagnostic struct {
	Kind    string `json:"kind"`
	KPI     string `json:"kpi,omitempty"`
	Message string `json:"message"`
}

// Decision is a human-in-the-loop decision for App.ApplyDecision. Action is
// one of acknowledge, assign, start, resolve, snooze or reopen. Assign needs
// AssigneeID and snooze needs a future SnoozeUntil.
type Decision struct {
	Action      string
	AssigneeID  *string
	SnoozeUntil *time.Time
	Comment     string
	DecidedBy   string
}

// Resolution is the principal context an identifier resolved to.
type Resolution struct {
	PrincipalID       string   `json:"principal_id"`
	Role              string   `json:"role"`
	BusinessProcesses []string `json:"business_processes"`
	Strategy          string   `json:"strategy"`
	Fallback          bool     `json:"fallback"`
}
