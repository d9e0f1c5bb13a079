package model_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/beacon/internal/model"
)

func TestSeverityOrdering(t *testing.T) {
	ordered := []model.Severity{
		model.SeverityInformation,
		model.SeverityLow,
		model.SeverityMedium,
		model.SeverityHigh,
		model.SeverityCritical,
	}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i].Rank(), ordered[i-1].Rank())
	}
	assert.Equal(t, 0, model.Severity("SEVERE").Rank())
	assert.True(t, model.SeverityCritical.AtLeast(model.SeverityHigh))
	assert.False(t, model.SeverityMedium.AtLeast(model.SeverityHigh))
}

func TestParseSeverityAndStatus(t *testing.T) {
	sev, err := model.ParseSeverity(" high ")
	require.NoError(t, err)
	assert.Equal(t, model.SeverityHigh, sev)
	_, err = model.ParseSeverity("urgent")
	assert.Error(t, err)

	st, err := model.ParseStatus("in_progress")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, st)
	_, err = model.ParseStatus("closed")
	assert.Error(t, err)
}

func TestDecision_Validate(t *testing.T) {
	assert.NoError(t, model.Decision{Action: model.DecisionAcknowledge}.Validate())
	assert.NoError(t, model.Decision{Action: model.DecisionAssign, AssigneeID: ptr("cfo_001")}.Validate())
	assert.NoError(t, model.Decision{Action: model.DecisionSnooze, SnoozeUntil: ptr(time.Now().Add(time.Hour))}.Validate())

	assert.Error(t, model.Decision{}.Validate())
	assert.Error(t, model.Decision{Action: "escalate"}.Validate())
	assert.Error(t, model.Decision{Action: model.DecisionAssign}.Validate(), "assign requires assignee")
	assert.Error(t, model.Decision{Action: model.DecisionSnooze}.Validate(), "snooze requires until")
}

func validSituation() model.Situation {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return model.Situation{
		ID:          "sit-1",
		PrincipalID: "cfo_001",
		KPIName:     "Revenue",
		KPIValue: model.KPIValue{
			KPIName:        "Revenue",
			Value:          90,
			ComparisonType: model.ComparisonYearOverYear,
			Timeframe:      model.TimeframeCurrentQuarter,
		},
		Severity:  model.SeverityHigh,
		Status:    model.StatusOpen,
		Timestamp: now,
		DedupeKey: "abc",
		Tags:      []string{"finance"},
	}
}

func TestSituation_Validate(t *testing.T) {
	s := validSituation()
	require.NoError(t, s.Validate())

	bad := validSituation()
	bad.Severity = "URGENT"
	assert.Error(t, bad.Validate())

	bad = validSituation()
	bad.Tags = []string{"Bad Tag"}
	assert.Error(t, bad.Validate())

	bad = validSituation()
	bad.DedupeKey = ""
	assert.Error(t, bad.Validate())
}

func TestSituation_NeedsHuman(t *testing.T) {
	s := validSituation()
	assert.True(t, s.NeedsHuman())

	s.AssigneeID = ptr("coo_001")
	assert.False(t, s.NeedsHuman())

	s.AssigneeID = nil
	s.Severity = model.SeverityMedium
	assert.False(t, s.NeedsHuman())
}

func TestDiagnosticFromError(t *testing.T) {
	wrapped := fmt.Errorf("kpi Revenue: %w", model.ErrMeasurementUnavailable)
	d := model.DiagnosticFromError(wrapped, "Revenue")
	assert.Equal(t, model.DiagMeasurementUnavailable, d.Kind)
	assert.Equal(t, "Revenue", d.KPI)
	assert.Contains(t, d.Message, "Revenue")

	assert.Equal(t, model.DiagInvalidThresholdConfig, model.DiagnosticFromError(model.ErrInvalidThresholdConfig, "").Kind)
	assert.Equal(t, model.DiagInternal, model.DiagnosticFromError(errors.New("boom"), "").Kind)
}

func TestContextFromProfile_Copies(t *testing.T) {
	p := model.PrincipalProfile{
		ID:                "cfo_001",
		Role:              "CFO",
		BusinessProcesses: []string{"Finance: Profitability Analysis"},
		DefaultFilters:    map[string]any{"region": "NA"},
	}
	ctx := model.ContextFromProfile(p)
	ctx.BusinessProcesses[0] = "mutated"
	ctx.DefaultFilters["region"] = "EU"

	assert.Equal(t, "Finance: Profitability Analysis", p.BusinessProcesses[0])
	assert.Equal(t, "NA", p.DefaultFilters["region"])
	assert.Equal(t, "cfo_001", ctx.PrincipalID)
}

func TestDetectRequest_Validate(t *testing.T) {
	ok := model.DetectRequest{Timeframe: model.TimeframeCurrentQuarter, ComparisonType: model.ComparisonYearOverYear}
	assert.NoError(t, ok.Validate())

	missing := model.DetectRequest{Timeframe: model.TimeframeCurrentQuarter}
	assert.Error(t, missing.Validate())

	blankProc := ok
	blankProc.BusinessProcesses = []string{""}
	assert.Error(t, blankProc.Validate())
}
