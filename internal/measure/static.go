package measure

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ashita-ai/beacon/internal/model"
)

// Fixture is one canned measurement. An empty Timeframe or ComparisonType
// matches any request.
type Fixture struct {
	KPI             string               `yaml:"kpi"`
	Timeframe       model.Timeframe      `yaml:"timeframe"`
	ComparisonType  model.ComparisonType `yaml:"comparison_type"`
	Value           float64              `yaml:"value"`
	ComparisonValue *float64             `yaml:"comparison_value"`
}

type fixtureFile struct {
	Measurements []Fixture `yaml:"measurements"`
}

// Static serves measurements from fixtures. It is safe for concurrent use
// because it is immutable after construction.
type Static struct {
	fixtures map[string][]Fixture
}

var _ Provider = (*Static)(nil)

// NewStatic indexes fixtures by KPI name (case-insensitive).
func NewStatic(fixtures []Fixture) *Static {
	s := &Static{fixtures: make(map[string][]Fixture, len(fixtures))}
	for _, f := range fixtures {
		key := strings.ToLower(strings.TrimSpace(f.KPI))
		s.fixtures[key] = append(s.fixtures[key], f)
	}
	return s
}

// LoadStatic reads a YAML fixture file of the form
//
//	measurements:
//	  - kpi: Revenue
//	    timeframe: current_quarter
//	    comparison_type: year_over_year
//	    value: 90
//	    comparison_value: 100
func LoadStatic(path string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("measure: read fixtures: %w", err)
	}
	var ff fixtureFile
	if err := yaml.Unmarshal(raw, &ff); err != nil {
		return nil, fmt.Errorf("measure: parse fixtures %s: %w", path, err)
	}
	return NewStatic(ff.Measurements), nil
}

// EvaluateKPI returns the most specific matching fixture. Exact timeframe
// and comparison matches beat wildcard entries.
func (s *Static) EvaluateKPI(ctx context.Context, def model.KPIDefinition, tf model.Timeframe, ct model.ComparisonType, _ map[string]any) (model.KPIValue, error) {
	if err := ctx.Err(); err != nil {
		return model.KPIValue{}, err
	}
	var (
		best      *Fixture
		bestScore = -1
	)
	candidates := s.fixtures[strings.ToLower(strings.TrimSpace(def.Name))]
	for i := range candidates {
		score, ok := matchScore(candidates[i], tf, ct)
		if ok && score > bestScore {
			best, bestScore = &candidates[i], score
		}
	}
	if best == nil {
		return model.KPIValue{}, fmt.Errorf("%w: %s (%s, %s)", ErrNoMeasurement, def.Name, tf, ct)
	}
	var cmp *float64
	if best.ComparisonValue != nil {
		c := *best.ComparisonValue
		cmp = &c
	}
	return model.NewKPIValue(def.Name, best.Value, cmp, ct, def.Unit, tf)
}

func matchScore(f Fixture, tf model.Timeframe, ct model.ComparisonType) (int, bool) {
	score := 0
	switch f.Timeframe {
	case tf:
		score += 2
	case "":
	default:
		return 0, false
	}
	switch f.ComparisonType {
	case ct:
		score++
	case "":
	default:
		return 0, false
	}
	return score, true
}
