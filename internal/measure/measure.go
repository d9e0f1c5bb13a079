// Package measure evaluates KPIs against their comparison baselines. Beacon
// never authors queries; providers either serve fixtures or run the
// pre-authored data-product SQL carried on the KPI definition.
package measure

import (
	"context"
	"errors"

	"github.com/ashita-ai/beacon/internal/model"
)

// ErrNoMeasurement means the provider has nothing for the requested KPI,
// timeframe and comparison.
var ErrNoMeasurement = errors.New("measure: no measurement")

// Provider measures one KPI.
type Provider interface {
	EvaluateKPI(ctx context.Context, def model.KPIDefinition, tf model.Timeframe, ct model.ComparisonType, filters map[string]any) (model.KPIValue, error)
}

// Func adapts a function to Provider.
type Func func(ctx context.Context, def model.KPIDefinition, tf model.Timeframe, ct model.ComparisonType, filters map[string]any) (model.KPIValue, error)

func (f Func) EvaluateKPI(ctx context.Context, def model.KPIDefinition, tf model.Timeframe, ct model.ComparisonType, filters map[string]any) (model.KPIValue, error) {
	return f(ctx, def, tf, ct, filters)
}
