package measure

import (
	"context"
	"errors"

	"github.com/ashita-ai/beacon/internal/model"
)

// Chain asks each provider in order and returns the first measurement.
// A provider answering ErrNoMeasurement passes the request on; any other
// error stops the chain.
type Chain []Provider

var _ Provider = Chain(nil)

func (c Chain) EvaluateKPI(ctx context.Context, def model.KPIDefinition, tf model.Timeframe, ct model.ComparisonType, filters map[string]any) (model.KPIValue, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		v, err := p.EvaluateKPI(ctx, def, tf, ct, filters)
		if errors.Is(err, ErrNoMeasurement) {
			continue
		}
		return v, err
	}
	return model.KPIValue{}, ErrNoMeasurement
}
