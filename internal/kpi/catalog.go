// Package kpi holds the KPI catalog and the selector that narrows it to the
// KPIs applicable to a principal.
package kpi

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/ashita-ai/beacon/internal/model"
)

// Catalog is the loaded set of KPI definitions in registry order.
// Definitions are read-only once loaded; Load swaps the whole set.
type Catalog struct {
	logger *slog.Logger

	mu     sync.RWMutex
	loaded bool
	defs   []model.KPIDefinition
	byName map[string]int
}

// NewCatalog returns an empty catalog in the "not yet loaded" state.
func NewCatalog(logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{logger: logger}
}

// Load replaces the catalog. Definitions that fail validation and repeated
// names (case-insensitive) are skipped; order is otherwise preserved.
func (c *Catalog) Load(defs []model.KPIDefinition) {
	kept := make([]model.KPIDefinition, 0, len(defs))
	byName := make(map[string]int, len(defs))
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			c.logger.Warn("kpi: skipping invalid definition", "error", err)
			continue
		}
		key := nameKey(d.Name)
		if _, dup := byName[key]; dup {
			c.logger.Warn("kpi: duplicate name ignored", "kpi", d.Name)
			continue
		}
		byName[key] = len(kept)
		kept = append(kept, d)
	}

	c.mu.Lock()
	c.defs = kept
	c.byName = byName
	c.loaded = true
	c.mu.Unlock()

	c.logger.Info("kpi: catalog loaded", "kpis", len(kept))
}

// Loaded reports whether Load has been called.
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}

// All returns the definitions in catalog order.
func (c *Catalog) All() []model.KPIDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.defs)
}

// Get looks a definition up by name, ignoring case.
func (c *Catalog) Get(name string) (model.KPIDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.byName[nameKey(name)]
	if !ok {
		return model.KPIDefinition{}, false
	}
	return c.defs[idx], true
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
