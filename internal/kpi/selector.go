package kpi

import (
	"strings"

	"github.com/ashita-ai/beacon/internal/model"
)

// Selection is the result of Select. Examined is the number of catalog
// entries considered, so callers can report how many KPIs were looked at
// even when none apply.
type Selection struct {
	KPIs     []model.KPIDefinition
	Examined int
	// Wildcard is set when neither the request nor the context named any
	// process and every KPI was treated as applicable.
	Wildcard bool
}

// Empty reports whether no KPI was selected.
func (s Selection) Empty() bool { return len(s.KPIs) == 0 }

// Select returns the catalog entries applicable to the request, in catalog
// order. The effective process set is requested when non-empty, else the
// context's processes, else every process. A KPI applies when it declares
// no processes or shares at least one with the effective set. Process
// names compare case-insensitively after trimming.
func Select(catalog []model.KPIDefinition, pctx model.PrincipalContext, requested []string) Selection {
	effective := processSet(requested)
	if len(effective) == 0 {
		effective = processSet(pctx.BusinessProcesses)
	}
	sel := Selection{Examined: len(catalog), Wildcard: len(effective) == 0}

	for _, def := range catalog {
		if sel.Wildcard || applies(def, effective) {
			sel.KPIs = append(sel.KPIs, def)
		}
	}
	return sel
}

// Select runs the package-level Select over the loaded catalog.
func (c *Catalog) Select(pctx model.PrincipalContext, requested []string) Selection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Select(c.defs, pctx, requested)
}

func applies(def model.KPIDefinition, effective map[string]struct{}) bool {
	declared := 0
	for _, p := range def.BusinessProcesses {
		key := processKey(p)
		if key == "" {
			continue
		}
		declared++
		if _, ok := effective[key]; ok {
			return true
		}
	}
	return declared == 0
}

func processSet(processes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(processes))
	for _, p := range processes {
		if key := processKey(p); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

func processKey(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}
