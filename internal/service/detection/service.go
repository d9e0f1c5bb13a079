// Package detection runs situation detection end to end: resolve the
// principal, select KPIs, measure and classify each one, then reconcile the
// results with the situations already on record.
//
// The HTTP API, the MCP server and the CLI all delegate here so every
// surface gets the same diagnostics and lifecycle behavior.
package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/beacon/internal/assign"
	"github.com/ashita-ai/beacon/internal/classify"
	"github.com/ashita-ai/beacon/internal/kpi"
	"github.com/ashita-ai/beacon/internal/measure"
	"github.com/ashita-ai/beacon/internal/model"
	"github.com/ashita-ai/beacon/internal/profile"
	"github.com/ashita-ai/beacon/internal/registry"
	"github.com/ashita-ai/beacon/internal/resolver"
	"github.com/ashita-ai/beacon/internal/situation"
	"github.com/ashita-ai/beacon/internal/telemetry"
)

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("invalid detection request")

const (
	DefaultWorkers            = 4
	DefaultMeasurementTimeout = 10 * time.Second
	DefaultAssignmentTimeout  = 2 * time.Second
)

// Config tunes the evaluation pool. Zero values use the defaults.
type Config struct {
	Workers            int
	MeasurementTimeout time.Duration
	AssignmentTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MeasurementTimeout <= 0 {
		c.MeasurementTimeout = DefaultMeasurementTimeout
	}
	if c.AssignmentTimeout <= 0 {
		c.AssignmentTimeout = DefaultAssignmentTimeout
	}
	return c
}

// RegistryStatus reports whether the registry is running on fallback data.
type RegistryStatus interface {
	Status() registry.Status
}

// Deps are the collaborators the service needs. Assigner and Registry may be nil.
type Deps struct {
	Resolver   *resolver.Resolver
	Catalog    *kpi.Catalog
	Measure    measure.Provider
	Situations *situation.Manager
	Assigner   assign.Provider
	Registry   RegistryStatus
}

// Result is the outcome of one detection request.
type Result struct {
	Situations []model.Situation `json:"situations"`
	// KPIEvaluatedCount is the number of KPIs measured and classified.
	KPIEvaluatedCount int      `json:"kpi_evaluated_count"`
	KPIsEvaluated     []string `json:"kpis_evaluated"`
	// UnmappedKPIs were selected but could not be measured.
	UnmappedKPIs       []string               `json:"unmapped_kpis"`
	Context            model.PrincipalContext `json:"principal_context"`
	ResolutionStrategy profile.Strategy       `json:"resolution_strategy"`
	Fallback           bool                   `json:"fallback"`
	CatalogExamined    int                    `json:"catalog_examined"`
	Suppressed         int                    `json:"suppressed"`
	Diagnostics        []model.Diagnostic     `json:"diagnostics,omitempty"`
}

// Service orchestrates detection and HITL decisions.
type Service struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer

	kpisExamined      metric.Int64Counter
	kpisEvaluated     metric.Int64Counter
	kpisUnevaluated   metric.Int64Counter
	situationsCreated metric.Int64Counter
	situationsUpdated metric.Int64Counter
	fallbacks         metric.Int64Counter
	measureDuration   metric.Float64Histogram
}

// New creates a detection service.
func New(deps Deps, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	meter := telemetry.Meter("beacon/detection")
	examined, _ := meter.Int64Counter("beacon.kpis.examined",
		metric.WithDescription("Catalog entries considered for selection"))
	evaluated, _ := meter.Int64Counter("beacon.kpis.evaluated",
		metric.WithDescription("KPIs measured and classified"))
	unevaluated, _ := meter.Int64Counter("beacon.kpis.unevaluated",
		metric.WithDescription("Selected KPIs whose measurement failed"))
	created, _ := meter.Int64Counter("beacon.situations.created",
		metric.WithDescription("Situations created, including re-fires"))
	updated, _ := meter.Int64Counter("beacon.situations.updated",
		metric.WithDescription("Situations refreshed in place"))
	fallbacks, _ := meter.Int64Counter("beacon.resolution.fallback",
		metric.WithDescription("Resolutions that used the default context"))
	measureDur, _ := meter.Float64Histogram("beacon.measurement.duration",
		metric.WithDescription("Time to measure one KPI (ms)"),
		metric.WithUnit("ms"),
	)
	return &Service{
		deps:              deps,
		cfg:               cfg.withDefaults(),
		logger:            logger,
		tracer:            telemetry.Tracer("beacon/detection"),
		kpisExamined:      examined,
		kpisEvaluated:     evaluated,
		kpisUnevaluated:   unevaluated,
		situationsCreated: created,
		situationsUpdated: updated,
		fallbacks:         fallbacks,
		measureDuration:   measureDur,
	}
}

// Resolve exposes the resolver for the read-only surfaces.
func (s *Service) Resolve(identifier string) resolver.Resolution {
	return s.deps.Resolver.Resolve(identifier)
}

// Select resolves identifier and returns the KPIs that apply to it.
func (s *Service) Select(identifier string, processes []string) (resolver.Resolution, kpi.Selection) {
	res := s.deps.Resolver.Resolve(identifier)
	return res, s.deps.Catalog.Select(res.Context, processes)
}

// Situations returns the lifecycle manager.
func (s *Service) Situations() *situation.Manager { return s.deps.Situations }

type evaluation struct {
	value  model.KPIValue
	result classify.Result
	err    error
}

// DetectSituations runs one detection request. Identity, registry and
// per-KPI measurement problems never fail the request; they come back as
// diagnostics. An error is returned only for an invalid request or when the
// situation store cannot be read or written.
func (s *Service) DetectSituations(ctx context.Context, req model.DetectRequest) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	ctx, span := s.tracer.Start(ctx, "detection.DetectSituations", trace.WithAttributes(
		attribute.String("beacon.principal_identifier", req.PrincipalID),
		attribute.String("beacon.timeframe", string(req.Timeframe)),
		attribute.String("beacon.comparison_type", string(req.ComparisonType)),
	))
	defer span.End()

	var out Result
	if s.deps.Registry != nil {
		out.Diagnostics = append(out.Diagnostics, s.deps.Registry.Status().Diagnostics()...)
	}

	// 1. Resolve.
	res := s.deps.Resolver.Resolve(req.PrincipalID)
	out.Context = res.Context
	out.ResolutionStrategy = res.Strategy
	out.Fallback = res.Fallback
	out.Diagnostics = append(out.Diagnostics, res.Diagnostics()...)
	if res.Fallback {
		s.fallbacks.Add(ctx, 1)
	}
	span.SetAttributes(
		attribute.String("beacon.principal_id", res.Context.PrincipalID),
		attribute.String("beacon.resolution_strategy", string(res.Strategy)),
	)

	// 2. Select.
	requested := append([]string(nil), req.BusinessProcesses...)
	mapped, unmapped := resolver.CanonicalProcesses(req.LegacyProcesses)
	requested = append(requested, mapped...)
	for _, u := range unmapped {
		out.Diagnostics = append(out.Diagnostics, model.Diagnostic{
			Kind:    model.DiagUnmappedProcess,
			Message: fmt.Sprintf("legacy process %q has no canonical mapping", u),
		})
	}
	sel := s.deps.Catalog.Select(res.Context, requested)
	out.CatalogExamined = sel.Examined
	s.kpisExamined.Add(ctx, int64(sel.Examined))
	if sel.Empty() {
		out.Diagnostics = append(out.Diagnostics, model.DiagnosticFromError(model.ErrSelectionEmpty, ""))
		s.logger.Info("detection: no kpis selected",
			"principal_id", res.Context.PrincipalID, "examined", sel.Examined)
		return out, nil
	}

	// 3. Measure and classify.
	filters := mergeFilters(res.Context.DefaultFilters, req.Filters)
	evals := s.evaluate(ctx, sel.KPIs, req.Timeframe, req.ComparisonType, filters)

	tags := situationTags(req.Timeframe, req.ComparisonType, res.Context.Role)
	var batch []situation.Evaluation
	for i, ev := range evals {
		def := sel.KPIs[i]
		if ev.err != nil {
			out.UnmappedKPIs = append(out.UnmappedKPIs, def.Name)
			out.Diagnostics = append(out.Diagnostics, model.Diagnostic{
				Kind: model.DiagMeasurementUnavailable, KPI: def.Name, Message: ev.err.Error(),
			})
			continue
		}
		out.KPIsEvaluated = append(out.KPIsEvaluated, def.Name)
		if ev.result.Diagnostic != nil {
			out.Diagnostics = append(out.Diagnostics, *ev.result.Diagnostic)
		}
		batch = append(batch, situation.Evaluation{
			PrincipalID: res.Context.PrincipalID,
			Value:       ev.value,
			Result:      ev.result,
			Tags:        tags,
		})
	}
	out.KPIEvaluatedCount = len(out.KPIsEvaluated)
	s.kpisEvaluated.Add(ctx, int64(out.KPIEvaluatedCount))
	s.kpisUnevaluated.Add(ctx, int64(len(out.UnmappedKPIs)))

	// 4. Reconcile.
	up, err := s.deps.Situations.Reconcile(ctx, batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
		return Result{}, fmt.Errorf("detection: %w", err)
	}
	out.Situations = up.Situations
	out.Suppressed = up.Suppressed
	s.situationsCreated.Add(ctx, int64(up.Count(situation.OutcomeCreated)+up.Count(situation.OutcomeRefired)))
	s.situationsUpdated.Add(ctx, int64(up.Count(situation.OutcomeUpdated)+up.Count(situation.OutcomeWoken)))

	// 5. Propose owners for situations waiting on a human.
	s.proposeAssignees(ctx, out.Situations)

	if out.Situations == nil {
		out.Situations = []model.Situation{}
	}
	span.SetAttributes(
		attribute.Int("beacon.kpis_evaluated", out.KPIEvaluatedCount),
		attribute.Int("beacon.situations", len(out.Situations)),
	)
	s.logger.Info("detection: complete",
		"principal_id", res.Context.PrincipalID,
		"strategy", res.Strategy,
		"selected", len(sel.KPIs),
		"evaluated", out.KPIEvaluatedCount,
		"unevaluated", len(out.UnmappedKPIs),
		"situations", len(out.Situations),
		"suppressed", out.Suppressed)
	return out, nil
}

// evaluate measures and classifies defs on a bounded pool. Results are in
// defs order. Measurement failures are captured per KPI and never cancel
// the other evaluations.
func (s *Service) evaluate(ctx context.Context, defs []model.KPIDefinition, tf model.Timeframe, ct model.ComparisonType, filters map[string]any) []evaluation {
	out := make([]evaluation, len(defs))
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, def := range defs {
		g.Go(func() error {
			out[i] = s.evaluateOne(ctx, def, tf, ct, filters)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Service) evaluateOne(ctx context.Context, def model.KPIDefinition, tf model.Timeframe, ct model.ComparisonType, filters map[string]any) evaluation {
	ctx, span := s.tracer.Start(ctx, "detection.evaluate", trace.WithAttributes(attribute.String("beacon.kpi", def.Name)))
	defer span.End()

	mctx, cancel := context.WithTimeout(ctx, s.cfg.MeasurementTimeout)
	defer cancel()

	start := time.Now()
	v, err := s.deps.Measure.EvaluateKPI(mctx, def, tf, ct, maps.Clone(filters))
	s.measureDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.Bool("success", err == nil)))
	if err == nil && !strings.EqualFold(v.KPIName, def.Name) {
		err = fmt.Errorf("provider returned a value for %q", v.KPIName)
	}
	if err == nil {
		// Pin the dedupe inputs to the request and reject malformed readings
		// here, so one bad value cannot fail the whole batch at reconcile.
		unit := v.Unit
		if unit == "" {
			unit = def.Unit
		}
		v, err = model.NewKPIValue(def.Name, v.Value, v.ComparisonValue, ct, unit, tf)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "measurement unavailable")
		s.logger.Warn("detection: measurement unavailable", "kpi", def.Name, "error", err)
		return evaluation{err: fmt.Errorf("%w: %v", model.ErrMeasurementUnavailable, err)}
	}

	r := classify.Classify(def, v)
	span.SetAttributes(attribute.String("beacon.severity", string(r.Severity)))
	s.logger.Debug("detection: kpi classified", "kpi", def.Name, "severity", r.Severity)
	return evaluation{value: v, result: r}
}

func (s *Service) proposeAssignees(ctx context.Context, sits []model.Situation) {
	if s.deps.Assigner == nil {
		return
	}
	for i := range sits {
		if !sits[i].HITLRequired {
			continue
		}
		actx, cancel := context.WithTimeout(ctx, s.cfg.AssignmentTimeout)
		candidates, err := s.deps.Assigner.ProposeAssignees(actx, sits[i])
		cancel()
		if err != nil {
			s.logger.Warn("detection: assignment proposal failed", "situation_id", sits[i].ID, "error", err)
			continue
		}
		sits[i].ProposedAssignees = candidates
	}
}

// ApplyDecision records a human decision against a situation.
func (s *Service) ApplyDecision(ctx context.Context, id string, req model.DecisionRequest, decidedBy string) (model.Situation, error) {
	ctx, span := s.tracer.Start(ctx, "detection.ApplyDecision", trace.WithAttributes(
		attribute.String("beacon.situation_id", id),
		attribute.String("beacon.decision", string(req.Decision)),
	))
	defer span.End()

	d := model.Decision{
		Action:      model.DecisionAction(strings.ToLower(strings.TrimSpace(string(req.Decision)))),
		AssigneeID:  req.AssigneeID,
		SnoozeUntil: req.SnoozeUntil,
		Comment:     req.Comment,
		DecidedBy:   decidedBy,
	}
	updated, err := s.deps.Situations.ApplyDecision(ctx, id, d)
	if err != nil {
		span.RecordError(err)
		return model.Situation{}, err
	}
	return updated, nil
}

func mergeFilters(defaults, request map[string]any) map[string]any {
	if len(defaults) == 0 && len(request) == 0 {
		return nil
	}
	out := make(map[string]any, len(defaults)+len(request))
	maps.Copy(out, defaults)
	maps.Copy(out, request)
	return out
}

// situationTags returns the timeframe, comparison type and a slug of the
// principal role, dropping anything that is not a valid tag.
func situationTags(tf model.Timeframe, ct model.ComparisonType, role string) []string {
	var tags []string
	for _, t := range []string{string(tf), string(ct), roleSlug(role)} {
		if model.ValidateTag(t) == nil {
			tags = append(tags, t)
		}
	}
	return tags
}

func roleSlug(role string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(role)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
