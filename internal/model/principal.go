package model

import (
	"fmt"
	"maps"
	"slices"
)

// Timeframe names the analysis window a KPI is evaluated over.
type Timeframe string

const (
	TimeframeCurrentMonth   Timeframe = "current_month"
	TimeframeCurrentQuarter Timeframe = "current_quarter"
	TimeframeYearToDate     Timeframe = "year_to_date"
	TimeframeCurrentYear    Timeframe = "current_year"
	TimeframeTrailing12     Timeframe = "trailing_12_months"
)

// ComparisonType names the baseline a KPI value is compared against.
type ComparisonType string

const (
	ComparisonYearOverYear       ComparisonType = "year_over_year"
	ComparisonQuarterOverQuarter ComparisonType = "quarter_over_quarter"
	ComparisonMonthOverMonth     ComparisonType = "month_over_month"
	ComparisonBudget             ComparisonType = "budget"
	ComparisonTarget             ComparisonType = "target"
)

// PrincipalRole is the legacy role enum some callers still pass instead of a
// profile id. It resolves through the same path as any other identifier.
type PrincipalRole string

const (
	RoleCFO            PrincipalRole = "CFO"
	RoleCEO            PrincipalRole = "CEO"
	RoleCOO            PrincipalRole = "COO"
	RoleFinanceManager PrincipalRole = "FINANCE_MANAGER"
)

// PrincipalProfile is the source-of-truth record for a business persona.
// Profiles are loaded from the registry and never mutated afterwards.
type PrincipalProfile struct {
	ID                  string         `json:"id" yaml:"id" validate:"required"`
	DisplayName         string         `json:"display_name" yaml:"display_name"`
	Role                string         `json:"role" yaml:"role" validate:"required"`
	Title               string         `json:"title" yaml:"title"`
	Department          string         `json:"department" yaml:"department"`
	BusinessProcesses   []string       `json:"business_processes" yaml:"business_processes" validate:"dive,required"`
	DefaultFilters      map[string]any `json:"default_filters,omitempty" yaml:"default_filters"`
	DecisionStyle       string         `json:"decision_style,omitempty" yaml:"decision_style"`
	CommunicationStyle  string         `json:"communication_style,omitempty" yaml:"communication_style"`
	PreferredTimeframes []Timeframe    `json:"preferred_timeframes,omitempty" yaml:"preferred_timeframes"`
	Description         string         `json:"description,omitempty" yaml:"description"`
}

// Validate checks the required profile fields.
func (p PrincipalProfile) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("principal profile %q: %w", p.ID, err)
	}
	return nil
}

// PrincipalContext is the normalized output of principal resolution.
// PrincipalID and Role are never empty.
type PrincipalContext struct {
	Role                string         `json:"role" validate:"required"`
	PrincipalID         string         `json:"principal_id" validate:"required"`
	BusinessProcesses   []string       `json:"business_processes"`
	DefaultFilters      map[string]any `json:"default_filters,omitempty"`
	DecisionStyle       string         `json:"decision_style,omitempty"`
	CommunicationStyle  string         `json:"communication_style,omitempty"`
	PreferredTimeframes []Timeframe    `json:"preferred_timeframes,omitempty"`
}

// ContextFromProfile builds a context from a profile. Slices and maps are
// copied so callers cannot reach back into the store through the context.
func ContextFromProfile(p PrincipalProfile) PrincipalContext {
	return PrincipalContext{
		Role:                p.Role,
		PrincipalID:         p.ID,
		BusinessProcesses:   slices.Clone(p.BusinessProcesses),
		DefaultFilters:      maps.Clone(p.DefaultFilters),
		DecisionStyle:       p.DecisionStyle,
		CommunicationStyle:  p.CommunicationStyle,
		PreferredTimeframes: slices.Clone(p.PreferredTimeframes),
	}
}
