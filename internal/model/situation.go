package model

import (
	"fmt"
	"strings"
	"time"
)

// Severity is the classified urgency of a situation.
type Severity string

const (
	SeverityCritical    Severity = "CRITICAL"
	SeverityHigh        Severity = "HIGH"
	SeverityMedium      Severity = "MEDIUM"
	SeverityLow         Severity = "LOW"
	SeverityInformation Severity = "INFORMATION"
)

// Rank returns the numeric rank of a severity (higher = more severe).
// Only relative ordering matters.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInformation:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is at least as severe as floor.
func (s Severity) AtLeast(floor Severity) bool {
	return s.Rank() >= floor.Rank()
}

// ParseSeverity accepts any casing of a severity name.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if sev.Rank() == 0 {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// SituationStatus is a situation's position in the lifecycle state machine.
type SituationStatus string

const (
	StatusOpen         SituationStatus = "OPEN"
	StatusAcknowledged SituationStatus = "ACKNOWLEDGED"
	StatusAssigned     SituationStatus = "ASSIGNED"
	StatusInProgress   SituationStatus = "IN_PROGRESS"
	StatusResolved     SituationStatus = "RESOLVED"
	StatusSnoozed      SituationStatus = "SNOOZED"
)

// ParseStatus accepts any casing of a status name.
func ParseStatus(s string) (SituationStatus, error) {
	st := SituationStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusOpen, StatusAcknowledged, StatusAssigned, StatusInProgress, StatusResolved, StatusSnoozed:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// DecisionAction is a human-in-the-loop decision applied to a situation.
type DecisionAction string

const (
	DecisionAcknowledge DecisionAction = "acknowledge"
	DecisionAssign      DecisionAction = "assign"
	DecisionStart       DecisionAction = "start"
	DecisionResolve     DecisionAction = "resolve"
	DecisionSnooze      DecisionAction = "snooze"
	DecisionReopen      DecisionAction = "reopen"
)

// Decision is an incoming HITL decision.
type Decision struct {
	Action      DecisionAction `json:"decision" validate:"required,oneof=acknowledge assign start resolve snooze reopen"`
	AssigneeID  *string        `json:"assignee_id,omitempty" validate:"required_if=Action assign"`
	SnoozeUntil *time.Time     `json:"snooze_until,omitempty" validate:"required_if=Action snooze"`
	Comment     string         `json:"comment,omitempty"`
	DecidedBy   string         `json:"decided_by,omitempty"`
}

// Validate checks that the action carries the fields it needs.
func (d Decision) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("decision: %w", err)
	}
	return nil
}

// DecisionRecord is one entry in a situation's decision audit trail.
type DecisionRecord struct {
	Action      DecisionAction  `json:"decision"`
	FromStatus  SituationStatus `json:"from_status"`
	ToStatus    SituationStatus `json:"to_status"`
	AssigneeID  *string         `json:"assignee_id,omitempty"`
	SnoozeUntil *time.Time      `json:"snooze_until,omitempty"`
	Comment     string          `json:"comment,omitempty"`
	DecidedBy   string          `json:"decided_by,omitempty"`
	DecidedAt   time.Time       `json:"decided_at"`
}

// AssignmentCandidate is a proposed owner for a situation.
type AssignmentCandidate struct {
	PrincipalID string  `json:"principal_id"`
	DisplayName string  `json:"display_name,omitempty"`
	Role        string  `json:"role,omitempty"`
	Score       float64 `json:"score"`
	Reason      string  `json:"reason,omitempty"`
}

// Situation is a detected, classified deviation of a KPI from its baseline.
type Situation struct {
	ID                  string           `json:"situation_id" validate:"required"`
	ParentID            *string          `json:"parent_id,omitempty"`
	PrincipalID         string           `json:"principal_id" validate:"required"`
	KPIName             string           `json:"kpi_name" validate:"required"`
	KPIValue            KPIValue         `json:"kpi_value"`
	Severity            Severity         `json:"severity" validate:"required,oneof=CRITICAL HIGH MEDIUM LOW INFORMATION"`
	Status              SituationStatus  `json:"status" validate:"required,oneof=OPEN ACKNOWLEDGED ASSIGNED IN_PROGRESS RESOLVED SNOOZED"`
	Description         string           `json:"description"`
	BusinessImpact      string           `json:"business_impact"`
	SuggestedActions    []string         `json:"suggested_actions"`
	DiagnosticQuestions []string         `json:"diagnostic_questions"`
	Timestamp           time.Time        `json:"timestamp" validate:"required"`
	CreatedAt           time.Time        `json:"created_at"`
	HITLRequired        bool             `json:"hitl_required"`
	AssigneeID          *string          `json:"assignee_id,omitempty"`
	DedupeKey           string           `json:"dedupe_key" validate:"required"`
	CooldownUntil       *time.Time       `json:"cooldown_until,omitempty"`
	Tags                []string         `json:"tags" validate:"dive,tag"`
	Decisions           []DecisionRecord `json:"decisions,omitempty"`

	// Not persisted; attached per request by the assignment provider.
	ProposedAssignees []AssignmentCandidate `json:"proposed_assignees,omitempty"`
}

// Validate checks required fields, enum values, and tags.
func (s Situation) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("situation %q: %w", s.ID, err)
	}
	return nil
}

// NeedsHuman reports whether severity and assignment call for a HITL decision.
func (s Situation) NeedsHuman() bool {
	return s.Severity.AtLeast(SeverityHigh) && s.AssigneeID == nil
}
