// Package classify turns a KPI measurement and its threshold metadata into a
// severity and the narrative skeleton of a situation. Everything here is pure.
package classify

import (
	"fmt"
	"slices"

	"github.com/ashita-ai/beacon/internal/model"
)

// Result is the classification of one KPI measurement.
type Result struct {
	Severity            model.Severity
	Description         string
	BusinessImpact      string
	SuggestedActions    []string
	DiagnosticQuestions []string
	// PercentChange is recomputed from the measurement; nil on a zero or
	// missing baseline.
	PercentChange *float64
	// Diagnostic is set when the KPI could not be classified normally.
	Diagnostic *model.Diagnostic
}

// Classify bands v against the threshold row for its comparison type.
// A missing baseline always yields INFORMATION. A missing or malformed
// threshold row yields INFORMATION with an invalid_threshold_config
// diagnostic; the KPI is never dropped.
func Classify(def model.KPIDefinition, v model.KPIValue) Result {
	res := Result{PercentChange: model.PercentChange(v.Value, v.ComparisonValue)}
	res.Severity = severity(def, v, res.PercentChange, &res)
	res.Description = describe(def, v, res.Severity)
	res.BusinessImpact = Impact(def, v, res.PercentChange)
	if res.Severity.AtLeast(model.SeverityMedium) {
		res.SuggestedActions = slices.Clone(def.SuggestedActions)
		res.DiagnosticQuestions = slices.Clone(def.DiagnosticQuestions)
	}
	return res
}

func severity(def model.KPIDefinition, v model.KPIValue, pct *float64, res *Result) model.Severity {
	if v.ComparisonValue == nil {
		return model.SeverityInformation
	}
	row, ok := def.ThresholdFor(v.ComparisonType)
	if !ok {
		res.Diagnostic = thresholdDiagnostic(def.Name, fmt.Sprintf("no threshold row for %s and no default row", v.ComparisonType))
		return model.SeverityInformation
	}
	if err := row.Check(); err != nil {
		res.Diagnostic = thresholdDiagnostic(def.Name, err.Error())
		return model.SeverityInformation
	}

	metric := v.Value
	if row.EffectiveBasis() == model.BasisPercentChange {
		if pct == nil {
			return model.SeverityInformation
		}
		metric = *pct
	}
	return Band(metric, row)
}

func thresholdDiagnostic(kpi, msg string) *model.Diagnostic {
	d := model.DiagnosticFromError(fmt.Errorf("%w: %s", model.ErrInvalidThresholdConfig, msg), kpi)
	return &d
}

// Band places metric into a severity band. Boundary values fall on the worse
// side of the red and yellow cut points, but a metric exactly on green is LOW.
// A percent-change row whose green cut lies past 0 in the good direction
// therefore bands a flat reading MEDIUM or worse.
//
// With InverseLogic unset larger is better:
//
//	metric <= red → CRITICAL, <= yellow → HIGH, < green → MEDIUM, else LOW
//
// With InverseLogic set smaller is better:
//
//	metric >= red → CRITICAL, >= yellow → HIGH, > green → MEDIUM, else LOW
func Band(metric float64, t model.Threshold) model.Severity {
	if t.InverseLogic {
		switch {
		case metric >= t.Red:
			return model.SeverityCritical
		case metric >= t.Yellow:
			return model.SeverityHigh
		case metric > t.Green:
			return model.SeverityMedium
		default:
			return model.SeverityLow
		}
	}
	switch {
	case metric <= t.Red:
		return model.SeverityCritical
	case metric <= t.Yellow:
		return model.SeverityHigh
	case metric < t.Green:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func describe(def model.KPIDefinition, v model.KPIValue, sev model.Severity) string {
	s := fmt.Sprintf("%s %s for %s against %s", def.Name, sev, humanize(string(v.Timeframe)), humanize(string(v.ComparisonType)))
	if def.Description != "" {
		s += ": " + def.Description
	}
	return s
}
