package measure_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/beacon/internal/measure"
	"github.com/ashita-ai/beacon/internal/model"
	"github.com/ashita-ai/beacon/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

var revenue = model.KPIDefinition{Name: "Revenue", Unit: "USD"}

func TestStatic_MostSpecificFixtureWins(t *testing.T) {
	s := measure.NewStatic([]measure.Fixture{
		{KPI: "revenue", Value: 1, ComparisonValue: ptr(1.0)},
		{KPI: "Revenue", Timeframe: model.TimeframeCurrentQuarter, Value: 2, ComparisonValue: ptr(1.0)},
		{KPI: "Revenue", Timeframe: model.TimeframeCurrentQuarter, ComparisonType: model.ComparisonBudget, Value: 3, ComparisonValue: ptr(2.0)},
	})
	ctx := context.Background()

	v, err := s.EvaluateKPI(ctx, revenue, model.TimeframeCurrentQuarter, model.ComparisonBudget, nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v.Value)
	require.NotNil(t, v.PercentChange)
	assert.InDelta(t, 0.5, *v.PercentChange, 1e-9)
	assert.Equal(t, "USD", v.Unit)

	v, err = s.EvaluateKPI(ctx, revenue, model.TimeframeCurrentQuarter, model.ComparisonYearOverYear, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v.Value)

	v, err = s.EvaluateKPI(ctx, revenue, model.TimeframeYearToDate, model.ComparisonYearOverYear, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v.Value)
}

func TestStatic_Missing(t *testing.T) {
	s := measure.NewStatic(nil)
	_, err := s.EvaluateKPI(context.Background(), revenue, model.TimeframeCurrentMonth, model.ComparisonBudget, nil)
	assert.ErrorIs(t, err, measure.ErrNoMeasurement)
}

func TestStatic_CancelledContext(t *testing.T) {
	s := measure.NewStatic([]measure.Fixture{{KPI: "Revenue", Value: 1}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.EvaluateKPI(ctx, revenue, model.TimeframeCurrentMonth, model.ComparisonBudget, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadStatic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "measurements.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
measurements:
  - kpi: Revenue
    timeframe: current_quarter
    comparison_type: year_over_year
    value: 90
    comparison_value: 100
  - kpi: Gross Margin
    value: 0.4
`), 0o644))

	s, err := measure.LoadStatic(path)
	require.NoError(t, err)

	v, err := s.EvaluateKPI(context.Background(), revenue, model.TimeframeCurrentQuarter, model.ComparisonYearOverYear, nil)
	require.NoError(t, err)
	require.NotNil(t, v.PercentChange)
	assert.InDelta(t, -0.1, *v.PercentChange, 1e-9)

	v, err = s.EvaluateKPI(context.Background(), model.KPIDefinition{Name: "Gross Margin"}, model.TimeframeCurrentMonth, model.ComparisonBudget, nil)
	require.NoError(t, err)
	assert.Nil(t, v.ComparisonValue)
	assert.Nil(t, v.PercentChange)
}

func openDuck(t *testing.T) *measure.DuckDB {
	t.Helper()
	d, err := measure.OpenDuckDB(context.Background(), "", testutil.TestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	_, err = d.DB().Exec(`CREATE TABLE kpi_values (
		kpi VARCHAR, timeframe VARCHAR, comparison_type VARCHAR, region VARCHAR,
		value DECIMAL(18,2), comparison DOUBLE)`)
	require.NoError(t, err)
	_, err = d.DB().Exec(`INSERT INTO kpi_values VALUES
		('opex', 'current_quarter', 'year_over_year', 'emea', 115.50, 100),
		('opex', 'current_quarter', 'budget', 'emea', 90, NULL)`)
	require.NoError(t, err)
	return d
}

const opexQuery = `SELECT value, comparison FROM kpi_values
	WHERE kpi = 'opex' AND timeframe = $1 AND comparison_type = $2 AND $3 IS NOT NULL`

func TestDuckDB_EvaluateKPI(t *testing.T) {
	d := openDuck(t)
	def := model.KPIDefinition{Name: "Operating Expense", Unit: "USD", Query: opexQuery}

	v, err := d.EvaluateKPI(context.Background(), def, model.TimeframeCurrentQuarter, model.ComparisonYearOverYear, map[string]any{"region": "emea"})
	require.NoError(t, err)
	assert.InDelta(t, 115.5, v.Value, 1e-9)
	require.NotNil(t, v.ComparisonValue)
	assert.Equal(t, 100.0, *v.ComparisonValue)
	require.NotNil(t, v.PercentChange)
	assert.InDelta(t, 0.155, *v.PercentChange, 1e-9)
}

func TestDuckDB_NullComparison(t *testing.T) {
	d := openDuck(t)
	def := model.KPIDefinition{Name: "Operating Expense", Query: opexQuery}

	v, err := d.EvaluateKPI(context.Background(), def, model.TimeframeCurrentQuarter, model.ComparisonBudget, nil)
	require.NoError(t, err)
	assert.Nil(t, v.ComparisonValue)
	assert.Nil(t, v.PercentChange)
}

func TestDuckDB_NoRowsAndNoQuery(t *testing.T) {
	d := openDuck(t)

	_, err := d.EvaluateKPI(context.Background(), model.KPIDefinition{Name: "Operating Expense", Query: opexQuery},
		model.TimeframeYearToDate, model.ComparisonBudget, nil)
	assert.ErrorIs(t, err, measure.ErrNoMeasurement)

	_, err = d.EvaluateKPI(context.Background(), revenue, model.TimeframeYearToDate, model.ComparisonBudget, nil)
	assert.ErrorIs(t, err, measure.ErrNoMeasurement)
}

func TestDuckDB_BadQuery(t *testing.T) {
	d := openDuck(t)
	_, err := d.EvaluateKPI(context.Background(), model.KPIDefinition{Name: "Broken", Query: "SELECT nope FROM missing WHERE $1 = $2 AND $3 = $3"},
		model.TimeframeYearToDate, model.ComparisonBudget, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, measure.ErrNoMeasurement)
}

func TestChain_FallsThroughOnNoMeasurement(t *testing.T) {
	ctx := context.Background()
	empty := measure.NewStatic(nil)
	fixtures := measure.NewStatic([]measure.Fixture{{KPI: "Revenue", Value: 90, ComparisonValue: ptr(100.0)}})

	v, err := measure.Chain{empty, nil, fixtures}.EvaluateKPI(ctx, revenue, model.TimeframeCurrentQuarter, model.ComparisonYearOverYear, nil)
	require.NoError(t, err)
	assert.Equal(t, 90.0, v.Value)

	_, err = measure.Chain{empty}.EvaluateKPI(ctx, revenue, model.TimeframeCurrentQuarter, model.ComparisonYearOverYear, nil)
	assert.ErrorIs(t, err, measure.ErrNoMeasurement)
}

func TestChain_StopsOnHardError(t *testing.T) {
	boom := errors.New("warehouse down")
	calls := 0
	failing := measure.Func(func(context.Context, model.KPIDefinition, model.Timeframe, model.ComparisonType, map[string]any) (model.KPIValue, error) {
		calls++
		return model.KPIValue{}, boom
	})
	next := measure.Func(func(context.Context, model.KPIDefinition, model.Timeframe, model.ComparisonType, map[string]any) (model.KPIValue, error) {
		calls++
		return model.KPIValue{}, nil
	})

	_, err := measure.Chain{failing, next}.EvaluateKPI(context.Background(), revenue, model.TimeframeCurrentQuarter, model.ComparisonYearOverYear, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
