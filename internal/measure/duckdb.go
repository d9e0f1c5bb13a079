package measure

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/ashita-ai/beacon/internal/model"
)

// DuckDB runs each KPI's data-product query against a DuckDB database.
//
// The query receives three positional parameters and must reference all of
// them: $1 timeframe, $2 comparison type, $3 the request filters as a JSON
// string. Its first row must yield (value, comparison_value); a NULL
// comparison means no baseline is available.
type DuckDB struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Provider = (*DuckDB)(nil)

// OpenDuckDB opens the database at path. An empty path opens a private
// in-memory database.
func OpenDuckDB(ctx context.Context, path string, logger *slog.Logger) (*DuckDB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("measure: open duckdb: %w", err)
	}
	// An in-memory database lives and dies with its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("measure: ping duckdb: %w", err)
	}
	return &DuckDB{db: db, logger: logger}, nil
}

// DB exposes the handle for seeding data products.
func (d *DuckDB) DB() *sql.DB { return d.db }

// Close closes the database.
func (d *DuckDB) Close() error { return d.db.Close() }

func (d *DuckDB) EvaluateKPI(ctx context.Context, def model.KPIDefinition, tf model.Timeframe, ct model.ComparisonType, filters map[string]any) (model.KPIValue, error) {
	if def.Query == "" {
		return model.KPIValue{}, fmt.Errorf("%w: %s has no data-product query", ErrNoMeasurement, def.Name)
	}
	if filters == nil {
		filters = map[string]any{}
	}
	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return model.KPIValue{}, fmt.Errorf("measure: encode filters: %w", err)
	}

	var rawValue, rawComparison any
	err = d.db.QueryRowContext(ctx, def.Query, string(tf), string(ct), string(filtersJSON)).Scan(&rawValue, &rawComparison)
	if errors.Is(err, sql.ErrNoRows) {
		return model.KPIValue{}, fmt.Errorf("%w: %s returned no rows", ErrNoMeasurement, def.Name)
	}
	if err != nil {
		return model.KPIValue{}, fmt.Errorf("measure: query %s: %w", def.Name, err)
	}

	value, ok := toFloat(rawValue)
	if !ok {
		return model.KPIValue{}, fmt.Errorf("%w: %s value is %T", ErrNoMeasurement, def.Name, rawValue)
	}
	var comparison *float64
	if rawComparison != nil {
		c, ok := toFloat(rawComparison)
		if !ok {
			return model.KPIValue{}, fmt.Errorf("measure: %s comparison is %T", def.Name, rawComparison)
		}
		comparison = &c
	}
	d.logger.Debug("measure: duckdb evaluated", "kpi", def.Name, "timeframe", tf, "comparison_type", ct)
	return model.NewKPIValue(def.Name, value, comparison, ct, def.Unit, tf)
}

// toFloat converts the numeric types DuckDB scans into. DECIMAL columns
// arrive as a driver type exposing Float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int16:
		return float64(n), true
	case int8:
		return float64(n), true
	case int:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case *big.Int:
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, true
	case interface{ Float64() float64 }:
		return n.Float64(), true
	}
	return 0, false
}
