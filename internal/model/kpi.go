package model

import (
	"fmt"
	"math"
)

// ThresholdBasis selects which measurement a threshold row bands against.
type ThresholdBasis string

const (
	// BasisPercentChange bands the fractional change versus the baseline
	// (0.10 means +10%). It is the default when a row leaves Basis empty.
	BasisPercentChange ThresholdBasis = "percent_change"
	// BasisValue bands the raw KPI value.
	BasisValue ThresholdBasis = "value"
)

// DefaultThresholdKey is the thresholds map key used when no row exists for
// the requested comparison type.
const DefaultThresholdKey ComparisonType = "default"

// Threshold holds the cut points for one comparison type.
//
// With InverseLogic=false larger values are better and the cut points are
// expected to satisfy Red <= Yellow <= Green. With InverseLogic=true smaller
// values are better and Red >= Yellow >= Green.
type Threshold struct {
	Green        float64        `json:"green" yaml:"green" validate:"finite"`
	Yellow       float64        `json:"yellow" yaml:"yellow" validate:"finite"`
	Red          float64        `json:"red" yaml:"red" validate:"finite"`
	InverseLogic bool           `json:"inverse_logic" yaml:"inverse_logic"`
	Basis        ThresholdBasis `json:"basis,omitempty" yaml:"basis" validate:"omitempty,oneof=percent_change value"`
}

// EffectiveBasis returns Basis, defaulting to BasisPercentChange.
func (t Threshold) EffectiveBasis() ThresholdBasis {
	if t.Basis == "" {
		return BasisPercentChange
	}
	return t.Basis
}

// Check reports whether the cut points are ordered for the declared direction.
func (t Threshold) Check() error {
	if err := validate.Struct(t); err != nil {
		return err
	}
	if t.InverseLogic {
		if t.Red < t.Yellow || t.Yellow < t.Green {
			return fmt.Errorf("inverse thresholds must satisfy red >= yellow >= green (got %g, %g, %g)", t.Red, t.Yellow, t.Green)
		}
		return nil
	}
	if t.Red > t.Yellow || t.Yellow > t.Green {
		return fmt.Errorf("thresholds must satisfy red <= yellow <= green (got %g, %g, %g)", t.Red, t.Yellow, t.Green)
	}
	return nil
}

// KPIDefinition is a catalog entry. Definitions are read-only once loaded.
type KPIDefinition struct {
	Name                string                       `json:"name" yaml:"name" validate:"required"`
	Description         string                       `json:"description" yaml:"description"`
	Unit                string                       `json:"unit" yaml:"unit"`
	DataProductID       string                       `json:"data_product_id" yaml:"data_product_id"`
	Thresholds          map[ComparisonType]Threshold `json:"thresholds" yaml:"thresholds"`
	BusinessProcesses   []string                     `json:"business_processes" yaml:"business_processes"`
	Dimensions          []string                     `json:"dimensions,omitempty" yaml:"dimensions"`
	PositiveTrendIsGood bool                         `json:"positive_trend_is_good" yaml:"positive_trend_is_good"`
	DiagnosticQuestions []string                     `json:"diagnostic_questions,omitempty" yaml:"diagnostic_questions"`
	SuggestedActions    []string                     `json:"suggested_actions,omitempty" yaml:"suggested_actions"`
	// Query is the pre-authored data-product SQL a measurement provider may
	// run for this KPI. Beacon never generates it.
	Query string `json:"query,omitempty" yaml:"query"`
}

// Validate checks required definition fields. Threshold rows are not checked
// here: a malformed row degrades that KPI to INFORMATION at classification
// time instead of dropping it from the catalog.
func (d KPIDefinition) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("kpi definition %q: %w", d.Name, err)
	}
	return nil
}

// ThresholdFor returns the row for ct, falling back to the default row.
func (d KPIDefinition) ThresholdFor(ct ComparisonType) (Threshold, bool) {
	if t, ok := d.Thresholds[ct]; ok {
		return t, true
	}
	t, ok := d.Thresholds[DefaultThresholdKey]
	return t, ok
}

// KPIValue is a single measurement of a KPI. Construct with NewKPIValue so
// PercentChange is always derived consistently.
type KPIValue struct {
	KPIName         string         `json:"kpi_name" validate:"required"`
	Value           float64        `json:"value" validate:"finite"`
	ComparisonValue *float64       `json:"comparison_value" validate:"omitempty,finite"`
	ComparisonType  ComparisonType `json:"comparison_type" validate:"required"`
	Unit            string         `json:"unit,omitempty"`
	Timeframe       Timeframe      `json:"timeframe" validate:"required"`
	PercentChange   *float64       `json:"percent_change"`
}

// NewKPIValue builds and validates a measurement.
func NewKPIValue(name string, value float64, comparison *float64, ct ComparisonType, unit string, tf Timeframe) (KPIValue, error) {
	v := KPIValue{
		KPIName:         name,
		Value:           value,
		ComparisonValue: comparison,
		ComparisonType:  ct,
		Unit:            unit,
		Timeframe:       tf,
		PercentChange:   PercentChange(value, comparison),
	}
	if err := validate.Struct(v); err != nil {
		return KPIValue{}, fmt.Errorf("kpi value %q: %w", name, err)
	}
	return v, nil
}

// PercentChange returns (value-comparison)/|comparison| as a fraction, or nil
// when the comparison is missing, zero, or not finite.
func PercentChange(value float64, comparison *float64) *float64 {
	if comparison == nil {
		return nil
	}
	c := *comparison
	if c == 0 || math.IsNaN(c) || math.IsInf(c, 0) || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	pct := (value - c) / math.Abs(c)
	return &pct
}

// Delta returns value-comparison and whether a comparison exists.
func (v KPIValue) Delta() (float64, bool) {
	if v.ComparisonValue == nil {
		return 0, false
	}
	return v.Value - *v.ComparisonValue, true
}
