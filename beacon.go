// Package beacon is the public API for embedding the Beacon situation
// detection server.
//
//	app, err := beacon.New(
//	    beacon.WithVersion(version),
//	    beacon.WithLogger(logger),
//	    beacon.WithMeasurementProvider(warehouse),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The root package imports internal/*, never the reverse. Public types are
// standalone structs; the adapters that convert them live in adapters.go.
package beacon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/beacon/internal/assign"
	"github.com/ashita-ai/beacon/internal/auth"
	"github.com/ashita-ai/beacon/internal/config"
	"github.com/ashita-ai/beacon/internal/kpi"
	"github.com/ashita-ai/beacon/internal/mcp"
	"github.com/ashita-ai/beacon/internal/measure"
	"github.com/ashita-ai/beacon/internal/model"
	"github.com/ashita-ai/beacon/internal/profile"
	"github.com/ashita-ai/beacon/internal/ratelimit"
	"github.com/ashita-ai/beacon/internal/registry"
	"github.com/ashita-ai/beacon/internal/resolver"
	"github.com/ashita-ai/beacon/internal/server"
	"github.com/ashita-ai/beacon/internal/service/detection"
	"github.com/ashita-ai/beacon/internal/situation"
	"github.com/ashita-ai/beacon/internal/storage"
	"github.com/ashita-ai/beacon/internal/storage/sqlite"
	"github.com/ashita-ai/beacon/internal/telemetry"
	"github.com/ashita-ai/beacon/migrations"
)

// shutdownTimeout bounds the HTTP drain when Run returns on cancellation.
const shutdownTimeout = 15 * time.Second

// App is the Beacon server lifecycle. Construct with New, run with Run.
type App struct {
	cfg       config.Config
	srv       *server.Server
	detection *detection.Service
	loader    *registry.Loader
	watcher   *registry.Watcher
	limiter   ratelimit.Limiter
	logger    *slog.Logger
	version   string

	// closers release storage, DuckDB and telemetry, in reverse order.
	closers []func(context.Context) error

	mu       sync.Mutex
	stop     context.CancelFunc
	bg       sync.WaitGroup
	shutdown bool
}

// New loads configuration, opens storage, loads the registry, and wires all
// subsystems. It does NOT start goroutines or accept connections; call Run.
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env if present; production won't have one.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.sqlitePath != "" {
		cfg.SQLitePath = o.sqlitePath
	}
	if o.registryPath != "" {
		cfg.RegistryPath = o.registryPath
	}
	if o.fixturesPath != "" {
		cfg.MeasurementFixtures = o.fixturesPath
	}
	if o.duckDBPath != "" {
		cfg.DuckDBPath = o.duckDBPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("beacon starting", "version", version, "port", cfg.Port, "storage", cfg.StorageBackend())

	a := &App{cfg: cfg, logger: logger, version: version}
	ctx := context.Background()

	otelShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     version,
		Insecure:    cfg.OTELInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.closers = append(a.closers, otelShutdown)

	store, err := a.openSituationStore(ctx)
	if err != nil {
		a.closeAll(ctx)
		return nil, err
	}

	// Registry: profiles, catalog and resolver share the loader's snapshot.
	profiles := profile.NewStore(logger)
	catalog := kpi.NewCatalog(logger)
	res := resolver.New(profiles, cfg.DefaultRole, logger)
	var provider registry.Provider
	if cfg.RegistryPath != "" {
		provider = registry.NewFileProvider(cfg.RegistryPath)
	}
	a.loader = registry.NewLoader(provider, profiles, catalog, res, logger)
	st := a.loader.Refresh(ctx)
	logger.Info("registry loaded",
		"source", st.Source,
		"profiles", st.Profiles,
		"kpis", st.KPIs,
		"fallback", st.Fallback)
	if cfg.RegistryWatch {
		a.watcher = registry.NewWatcher(cfg.RegistryPath, a.loader, registry.DefaultDebounce, logger)
	}

	meas, err := a.measurementChain(ctx, o.measurement)
	if err != nil {
		a.closeAll(ctx)
		return nil, err
	}

	var assigner assign.Provider = assign.NewProfileOverlap(profiles, catalog, 0)
	if o.assignees != nil {
		assigner = &assigneeAdapter{p: o.assignees}
	}

	a.detection = detection.New(detection.Deps{
		Resolver:   res,
		Catalog:    catalog,
		Measure:    meas,
		Situations: situation.NewManager(store, cfg.SituationCooldown, logger),
		Assigner:   assigner,
		Registry:   a.loader,
	}, detection.Config{
		Workers:            cfg.EvaluationWorkers,
		MeasurementTimeout: cfg.MeasurementTimeout,
		AssignmentTimeout:  cfg.AssignmentTimeout,
	}, logger)

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration, logger)
	if err != nil {
		a.closeAll(ctx)
		return nil, fmt.Errorf("auth: %w", err)
	}
	clients, err := auth.ParseClients(cfg.APIClients)
	if err != nil {
		a.closeAll(ctx)
		return nil, fmt.Errorf("auth: %w", err)
	}
	if clients.Len() == 0 {
		logger.Warn("auth: no API clients configured, only /health is reachable")
	}

	if cfg.RateLimitRPS > 0 {
		a.limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory", "rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		a.limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	mcpSrv := mcp.New(a.detection, a.loader, logger, version)

	var middlewares []func(http.Handler) http.Handler
	for _, mw := range o.middlewares {
		middlewares = append(middlewares, mw)
	}

	a.srv = server.New(server.ServerConfig{
		Detection:           a.detection,
		Registry:            a.loader,
		JWTMgr:              jwtMgr,
		Clients:             clients,
		Logger:              logger,
		Limiter:             a.limiter,
		RateLimit:           cfg.RateLimitRPS,
		MCPServer:           mcpSrv.MCPServer(),
		Storage:             cfg.StorageBackend(),
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		Middlewares:         middlewares,
	})

	return a, nil
}

// openSituationStore picks Postgres, SQLite or memory, in that order.
func (a *App) openSituationStore(ctx context.Context) (situation.Store, error) {
	switch a.cfg.StorageBackend() {
	case "postgres":
		db, err := storage.New(ctx, a.cfg.DatabaseURL, a.logger)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { db.Close(); return nil })
		if err := db.RunMigrations(ctx, migrations.FS); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		var schemaOK bool
		if err := db.Pool().QueryRow(ctx,
			`SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'situations')`,
		).Scan(&schemaOK); err != nil {
			return nil, fmt.Errorf("schema verification: %w", err)
		}
		if !schemaOK {
			return nil, errors.New("table 'situations' does not exist after migration")
		}
		return db.Situations(), nil
	case "sqlite":
		s, err := sqlite.Open(ctx, a.cfg.SQLitePath, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return s.Close() })
		return s, nil
	default:
		a.logger.Warn("situation storage: memory, situations are lost on restart")
		return situation.NewMemoryStore(), nil
	}
}

// measurementChain orders providers as: embedder's provider, DuckDB,
// fixtures. With none configured every KPI reports as unmeasured.
func (a *App) measurementChain(ctx context.Context, external MeasurementProvider) (measure.Provider, error) {
	var chain measure.Chain
	if external != nil {
		chain = append(chain, &measurementAdapter{p: external})
	}
	if a.cfg.DuckDBPath != "" {
		duck, err := measure.OpenDuckDB(ctx, a.cfg.DuckDBPath, a.logger)
		if err != nil {
			return nil, fmt.Errorf("duckdb: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return duck.Close() })
		chain = append(chain, duck)
	}
	if a.cfg.MeasurementFixtures != "" {
		fixtures, err := measure.LoadStatic(a.cfg.MeasurementFixtures)
		if err != nil {
			return nil, err
		}
		chain = append(chain, fixtures)
	}
	if len(chain) == 0 {
		a.logger.Warn("measurement: no provider configured, detection will report every KPI as unmapped")
	}
	return chain, nil
}

// Handler returns the root HTTP handler, for tests and for embedders that
// serve it themselves.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// Resolve maps an identifier to a principal context without detecting.
func (a *App) Resolve(identifier string) Resolution {
	return toPublicResolution(a.detection.Resolve(identifier))
}

// Detect runs one detection cycle. Invalid requests wrap ErrInvalidRequest.
func (a *App) Detect(ctx context.Context, req DetectRequest) (DetectResult, error) {
	res, err := a.detection.DetectSituations(ctx, model.DetectRequest{
		PrincipalID:       req.PrincipalID,
		BusinessProcesses: req.BusinessProcesses,
		Timeframe:         model.Timeframe(req.Timeframe),
		ComparisonType:    model.ComparisonType(req.ComparisonType),
		Filters:           req.Filters,
	})
	if err != nil {
		if errors.Is(err, detection.ErrInvalidRequest) {
			return DetectResult{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return DetectResult{}, err
	}
	return toPublicDetectResult(res), nil
}

// ErrInvalidRequest is returned by Detect for malformed requests.
var ErrInvalidRequest = errors.New("beacon: invalid request")

var (
	// ErrSituationNotFound is returned by ApplyDecision for an unknown id.
	ErrSituationNotFound = errors.New("beacon: situation not found")
	// ErrInvalidDecision is returned by ApplyDecision when the decision is
	// malformed or does not apply to the situation's current status.
	ErrInvalidDecision = errors.New("beacon: invalid decision")
)

// ApplyDecision records a human decision against a situation and returns
// the updated situation.
func (a *App) ApplyDecision(ctx context.Context, situationID string, d Decision) (Situation, error) {
	s, err := a.detection.ApplyDecision(ctx, situationID, model.DecisionRequest{
		Decision:    model.DecisionAction(d.Action),
		AssigneeID:  d.AssigneeID,
		SnoozeUntil: d.SnoozeUntil,
		Comment:     d.Comment,
	}, d.DecidedBy)
	switch {
	case err == nil:
		return toPublicSituation(s), nil
	case situation.IsNotFound(err):
		return Situation{}, fmt.Errorf("%w: %v", ErrSituationNotFound, err)
	case errors.Is(err, situation.ErrInvalidTransition), errors.Is(err, situation.ErrInvalidDecision):
		return Situation{}, fmt.Errorf("%w: %v", ErrInvalidDecision, err)
	default:
		return Situation{}, err
	}
}

// Run starts the registry watcher and the HTTP server, then blocks until
// ctx is cancelled or the server fails. Shutdown is called on return.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.stop = cancel
	a.mu.Unlock()

	if a.watcher != nil {
		a.bg.Add(1)
		go func() {
			defer a.bg.Done()
			if err := a.watcher.Run(runCtx); err != nil {
				a.logger.Error("registry watcher stopped", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		_ = a.Shutdown(context.Background())
		return err
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	return a.Shutdown(shutdownCtx)
}

// Shutdown drains HTTP, stops background work, and closes storage and
// telemetry. It is safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.shutdown {
		a.mu.Unlock()
		return nil
	}
	a.shutdown = true
	stop := a.stop
	a.mu.Unlock()

	a.logger.Info("beacon shutting down")

	var errs []error
	if err := a.srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if stop != nil {
		stop()
	}
	a.bg.Wait()
	if err := a.limiter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("rate limiter: %w", err))
	}
	errs = append(errs, a.closeAll(ctx)...)

	a.logger.Info("beacon stopped")
	return errors.Join(errs...)
}

func (a *App) closeAll(ctx context.Context) []error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errs
}
