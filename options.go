package beacon

import "log/slog"

// Option configures an App.
type Option func(*resolvedOptions)

type resolvedOptions struct {
	port         int
	databaseURL  string
	sqlitePath   string
	registryPath string
	fixturesPath string
	duckDBPath   string
	logger       *slog.Logger
	version      string
	measurement  MeasurementProvider
	assignees    AssigneeProposer
	middlewares  []Middleware
}

// WithPort overrides BEACON_PORT.
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides BEACON_DATABASE_URL and selects Postgres
// situation storage.
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithSQLitePath overrides BEACON_SQLITE_PATH. Ignored when a database URL
// is configured.
func WithSQLitePath(path string) Option {
	return func(o *resolvedOptions) { o.sqlitePath = path }
}

// WithRegistryPath overrides BEACON_REGISTRY_PATH.
func WithRegistryPath(path string) Option {
	return func(o *resolvedOptions) { o.registryPath = path }
}

// WithMeasurementFixtures overrides BEACON_MEASUREMENT_FIXTURES.
func WithMeasurementFixtures(path string) Option {
	return func(o *resolvedOptions) { o.fixturesPath = path }
}

// WithDuckDBPath overrides BEACON_DUCKDB_PATH.
func WithDuckDBPath(path string) Option {
	return func(o *resolvedOptions) { o.duckDBPath = path }
}

// WithLogger sets the structured logger. If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version reported by /health and the MCP server.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithMeasurementProvider puts p ahead of the DuckDB and fixture providers.
// Only the last call wins.
func WithMeasurementProvider(p MeasurementProvider) Option {
	return func(o *resolvedOptions) { o.measurement = p }
}

// WithAssigneeProposer replaces the built-in assignee proposer. Only the
// last call wins.
func WithAssigneeProposer(p AssigneeProposer) Option {
	return func(o *resolvedOptions) { o.assignees = p }
}

// WithMiddleware registers an outermost HTTP middleware. Multiple calls
// apply in registration order.
func WithMiddleware(mw Middleware) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}
