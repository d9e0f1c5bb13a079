package resolver

import "strings"

// Unmapped is returned by CanonicalProcess for input it does not recognize.
const Unmapped = "unmapped"

// legacyProcesses maps the upper-snake process enums older callers send to
// the canonical process strings used in profiles and the KPI catalog.
var legacyProcesses = map[string]string{
	"PROFITABILITY_ANALYSIS":  "Finance: Profitability Analysis",
	"REVENUE_GROWTH_ANALYSIS": "Finance: Revenue Growth Analysis",
	"EXPENSE_MANAGEMENT":      "Finance: Expense Management",
	"CASH_FLOW_MANAGEMENT":    "Finance: Cash Flow Management",
	"BUDGET_VS_ACTUALS":       "Finance: Budget vs. Actuals",
	"INVESTOR_RELATIONS":      "Finance: Investor Relations Reporting",
	"STRATEGIC_PLANNING":      "Strategy: Strategic Planning",
	"MARKET_EXPANSION":        "Strategy: Market Expansion",
	"OPERATIONAL_EFFICIENCY":  "Operations: Operational Efficiency",
	"SUPPLY_CHAIN":            "Operations: Supply Chain Management",
	"WORKFORCE_PLANNING":      "Operations: Workforce Planning",
}

// CanonicalProcess maps a legacy process enum to its canonical string. It is
// total: spacing, hyphens and case are ignored, and anything unknown maps to
// Unmapped.
func CanonicalProcess(legacy string) string {
	key := strings.ToUpper(strings.Join(strings.FieldsFunc(legacy, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	}), "_"))
	if canonical, ok := legacyProcesses[key]; ok {
		return canonical
	}
	return Unmapped
}

// CanonicalProcesses maps each legacy enum and returns the mapped processes
// in input order along with the inputs that did not map.
func CanonicalProcesses(legacy []string) (mapped, unmapped []string) {
	for _, l := range legacy {
		if c := CanonicalProcess(l); c != Unmapped {
			mapped = append(mapped, c)
		} else {
			unmapped = append(unmapped, l)
		}
	}
	return mapped, unmapped
}
