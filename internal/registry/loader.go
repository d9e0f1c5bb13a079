package registry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ashita-ai/beacon/internal/kpi"
	"github.com/ashita-ai/beacon/internal/model"
	"github.com/ashita-ai/beacon/internal/profile"
	"github.com/ashita-ai/beacon/internal/resolver"
)

// refreshTimeout bounds one provider read. Refreshes are shared between
// callers, so the read does not inherit any single caller's cancellation.
const refreshTimeout = 30 * time.Second

// Source names where the loaded registry came from.
type Source string

const (
	SourceProvider Source = "provider"
	SourceBuiltin  Source = "builtin"
)

// Status describes the registry currently loaded.
type Status struct {
	Source            Source    `json:"source"`
	Fallback          bool      `json:"fallback"`
	Error             string    `json:"error,omitempty"`
	LoadedAt          time.Time `json:"loaded_at"`
	Profiles          int       `json:"profiles"`
	KPIs              int       `json:"kpis"`
	BusinessProcesses []string  `json:"business_processes"`
}

// Diagnostics returns the registry_unavailable diagnostic while running on
// fallback data.
func (s Status) Diagnostics() []model.Diagnostic {
	if !s.Fallback {
		return nil
	}
	d := model.DiagnosticFromError(model.ErrRegistryUnavailable, "")
	if s.Error != "" {
		d.Message += ": " + s.Error
	}
	return []model.Diagnostic{d}
}

// Loader pushes registry contents into the profile store, the KPI catalog
// and the resolver's default profile.
type Loader struct {
	provider Provider
	profiles *profile.Store
	catalog  *kpi.Catalog
	resolver *resolver.Resolver
	logger   *slog.Logger

	group singleflight.Group

	mu     sync.RWMutex
	status Status
}

// NewLoader wires a loader. A nil provider means built-in data only. The
// resolver may be nil.
func NewLoader(p Provider, profiles *profile.Store, catalog *kpi.Catalog, res *resolver.Resolver, logger *slog.Logger) *Loader {
	if p == nil {
		p = Builtin{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{provider: p, profiles: profiles, catalog: catalog, resolver: res, logger: logger}
}

// Status returns the status of the last refresh.
func (l *Loader) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	st := l.status
	st.BusinessProcesses = slices.Clone(st.BusinessProcesses)
	return st
}

// Refresh reads the provider and reloads the stores. Concurrent calls share
// one read. Refresh never leaves the stores empty: if the provider fails on
// the first load the built-in registry is loaded, and on later loads the
// previous contents are kept. Either way the returned status is flagged as
// a fallback.
func (l *Loader) Refresh(ctx context.Context) Status {
	v, _, _ := l.group.Do("refresh", func() (any, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return l.refresh(readCtx), nil
	})
	return v.(Status)
}

func (l *Loader) refresh(ctx context.Context) Status {
	doc, err := fetch(ctx, l.provider)
	if err == nil {
		doc, err = sanitize(doc, l.logger)
	}
	_, builtin := l.provider.(Builtin)
	if err == nil {
		src := SourceProvider
		if builtin {
			src = SourceBuiltin
		}
		return l.apply(doc, src, nil)
	}

	l.logger.Warn("registry: provider unavailable", "error", err)
	if !builtin && l.profiles.Loaded() && l.Status().Source == SourceProvider {
		l.mu.Lock()
		l.status.Fallback = true
		l.status.Error = err.Error()
		st := l.status
		l.mu.Unlock()
		return st
	}
	fallback, _ := fetch(ctx, Builtin{})
	return l.apply(fallback, SourceBuiltin, err)
}

func (l *Loader) apply(doc Document, src Source, cause error) Status {
	l.profiles.Load(doc.Principals)
	l.catalog.Load(doc.KPIs)
	if l.resolver != nil {
		l.resolver.SetDefaultProfile(doc.DefaultProfile)
	}

	st := Status{
		Source:            src,
		Fallback:          cause != nil,
		LoadedAt:          time.Now().UTC(),
		Profiles:          l.profiles.Len(),
		KPIs:              l.catalog.Len(),
		BusinessProcesses: slices.Clone(doc.BusinessProcesses),
	}
	if cause != nil {
		st.Error = cause.Error()
	}
	l.mu.Lock()
	l.status = st
	l.mu.Unlock()

	l.logger.Info("registry: loaded",
		"source", src, "profiles", st.Profiles, "kpis", st.KPIs, "fallback", st.Fallback)
	return st
}

// sanitize drops invalid profiles and rejects a document with nothing usable.
// KPI definitions are filtered by the catalog itself.
func sanitize(doc Document, logger *slog.Logger) (Document, error) {
	valid := doc.Principals[:0:0]
	for _, p := range doc.Principals {
		if err := p.Validate(); err != nil {
			logger.Warn("registry: skipping invalid profile", "error", err)
			continue
		}
		valid = append(valid, p)
	}
	doc.Principals = valid

	if doc.DefaultProfile != nil {
		if err := doc.DefaultProfile.Validate(); err != nil {
			logger.Warn("registry: ignoring invalid default profile", "error", err)
			doc.DefaultProfile = nil
		}
	}
	if len(doc.Principals) == 0 && len(doc.KPIs) == 0 {
		return Document{}, fmt.Errorf("registry: document has no principals and no kpis")
	}
	return doc, nil
}
