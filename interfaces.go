package beacon

import (
	"context"
	"errors"
	"net/http"
)

// ErrNoMeasurement tells beacon a MeasurementProvider has no data for the
// request. The next configured provider (DuckDB, then fixtures) is asked.
var ErrNoMeasurement = errors.New("beacon: no measurement")

// MeasurementProvider supplies KPI readings from an external system.
// When set via WithMeasurementProvider it is consulted before the built-in
// providers. Implementations must be safe for concurrent use: detection
// measures KPIs in parallel.
type MeasurementProvider interface {
	Measure(ctx context.Context, req MeasurementRequest) (Measurement, error)
}

// AssigneeProposer suggests owners for a situation. When set via
// WithAssigneeProposer it replaces the built-in profile-overlap proposer.
// Errors and timeouts are logged and leave the proposal empty.
type AssigneeProposer interface {
	ProposeAssignees(ctx context.Context, s Situation) ([]Assignee, error)
}

// Middleware wraps the root HTTP handler. It runs before routing and auth,
// so it sees every request including /health. The first registered
// middleware is outermost.
type Middleware func(http.Handler) http.Handler
