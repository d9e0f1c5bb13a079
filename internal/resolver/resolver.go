// Package resolver maps arbitrary caller identifiers onto exactly one
// principal context.
package resolver

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/ashita-ai/beacon/internal/model"
	"github.com/ashita-ai/beacon/internal/profile"
)

// DefaultRole is used when neither configuration nor the default profile
// names a role.
const DefaultRole = "CFO"

// defaultPrincipalID is used when the identifier is blank and no default
// profile is configured.
const defaultPrincipalID = "default"

// Resolution is the outcome of Resolve. Context is always populated.
type Resolution struct {
	Context  model.PrincipalContext
	Strategy profile.Strategy
	// Fallback is set when no profile matched and the default context was synthesized.
	Fallback bool
	// LowConfidence is set for substring matches.
	LowConfidence bool
}

// Diagnostics returns the informational diagnostics for this resolution.
func (r Resolution) Diagnostics() []model.Diagnostic {
	switch {
	case r.Fallback:
		return []model.Diagnostic{model.DiagnosticFromError(model.ErrResolutionFallback, "")}
	case r.LowConfidence:
		return []model.Diagnostic{{
			Kind:    model.DiagLowConfidenceMatch,
			Message: "principal matched " + r.Context.PrincipalID + " by substring containment",
		}}
	}
	return nil
}

// Resolver is the single canonical identity resolver. It holds no indexes of
// its own; all lookups go through the profile store.
type Resolver struct {
	store       *profile.Store
	defaultRole string
	logger      *slog.Logger

	mu             sync.RWMutex
	defaultProfile *model.PrincipalProfile
}

// New creates a resolver over store. defaultRole may be empty.
func New(store *profile.Store, defaultRole string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:       store,
		defaultRole: strings.TrimSpace(defaultRole),
		logger:      logger,
	}
}

// SetDefaultProfile replaces the profile used to build fallback contexts.
// A nil profile restores the minimal built-in fallback.
func (r *Resolver) SetDefaultProfile(p *model.PrincipalProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p == nil {
		r.defaultProfile = nil
		return
	}
	cp := *p
	r.defaultProfile = &cp
}

// Resolve maps identifier to a context. Strategies are tried in order and
// the first match wins: exact id, case-insensitive id, role or title, then
// substring containment. When nothing matches a fallback context is built.
// Resolve never fails.
func (r *Resolver) Resolve(identifier string) Resolution {
	if p, ok := r.store.GetByID(identifier); ok {
		return Resolution{Context: model.ContextFromProfile(p), Strategy: profile.StrategyID}
	}
	if p, ok := r.store.GetByIDFold(identifier); ok {
		return Resolution{Context: model.ContextFromProfile(p), Strategy: profile.StrategyIDCaseInsensitive}
	}
	if p, strategy, ok := r.store.GetByRoleOrTitle(identifier); ok {
		res := Resolution{Context: model.ContextFromProfile(p), Strategy: strategy}
		if strategy == profile.StrategySubstring {
			res.LowConfidence = true
			r.logger.Warn("resolver: low-confidence substring match",
				"identifier", identifier, "principal_id", p.ID, "role", p.Role)
		}
		return res
	}

	res := Resolution{Context: r.fallbackContext(identifier), Strategy: profile.StrategyFallback, Fallback: true}
	r.logger.Warn("resolver: no profile matched, using default context",
		"identifier", identifier, "principal_id", res.Context.PrincipalID, "role", res.Context.Role)
	return res
}

// ResolveRole resolves a legacy role enum through the same path as any
// other identifier.
func (r *Resolver) ResolveRole(role model.PrincipalRole) Resolution {
	return r.Resolve(string(role))
}

func (r *Resolver) fallbackContext(identifier string) model.PrincipalContext {
	r.mu.RLock()
	def := r.defaultProfile
	r.mu.RUnlock()

	var ctx model.PrincipalContext
	if def != nil {
		ctx = model.ContextFromProfile(*def)
	}
	if id := strings.TrimSpace(identifier); id != "" {
		ctx.PrincipalID = id
	}
	if ctx.PrincipalID == "" {
		ctx.PrincipalID = defaultPrincipalID
	}
	switch {
	case r.defaultRole != "":
		ctx.Role = r.defaultRole
	case ctx.Role == "":
		ctx.Role = DefaultRole
	}
	return ctx
}
