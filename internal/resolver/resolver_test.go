package resolver_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/beacon/internal/model"
	"github.com/ashita-ai/beacon/internal/profile"
	"github.com/ashita-ai/beacon/internal/resolver"
	"github.com/ashita-ai/beacon/internal/testutil"
)

func newResolver(t *testing.T, defaultRole string) *resolver.Resolver {
	t.Helper()
	store := profile.NewStore(testutil.TestLogger())
	store.Load([]model.PrincipalProfile{
		{ID: "cfo_001", Role: "CFO", Title: "Chief Financial Officer", BusinessProcesses: []string{"Finance: Profitability Analysis", "Finance: Expense Management"}},
		{ID: "ceo_001", Role: "CEO", Title: "Chief Executive Officer", BusinessProcesses: []string{"Strategy: Strategic Planning"}},
		{ID: "coo_001", Role: "COO", Title: "Chief Operating Officer"},
		{ID: "fm_001", Role: "Finance Manager", Title: "Regional Finance Manager"},
	})
	return resolver.New(store, defaultRole, testutil.TestLogger())
}

func TestResolve_StrategiesInOrder(t *testing.T) {
	r := newResolver(t, "CFO")

	tests := []struct {
		identifier string
		wantID     string
		strategy   profile.Strategy
	}{
		{"cfo_001", "cfo_001", profile.StrategyID},
		{"CEO_001", "ceo_001", profile.StrategyIDCaseInsensitive},
		{"coo", "coo_001", profile.StrategyRole},
		{"CHIEF_EXECUTIVE_OFFICER", "ceo_001", profile.StrategyTitle},
		{"Regional Finance", "fm_001", profile.StrategySubstring},
	}
	for _, tt := range tests {
		t.Run(tt.identifier, func(t *testing.T) {
			res := r.Resolve(tt.identifier)
			assert.Equal(t, tt.wantID, res.Context.PrincipalID)
			assert.Equal(t, tt.strategy, res.Strategy)
			assert.False(t, res.Fallback)
			assert.Equal(t, tt.strategy == profile.StrategySubstring, res.LowConfidence)
		})
	}
}

func TestResolve_RoleVariantsAreDeterministic(t *testing.T) {
	r := newResolver(t, "CFO")
	profiles := map[string]string{
		"cfo_001": "CFO",
		"ceo_001": "CEO",
		"coo_001": "COO",
		"fm_001":  "Finance Manager",
	}
	for id, role := range profiles {
		for _, v := range profile.Variants(role) {
			res := r.Resolve(v)
			assert.Equal(t, id, res.Context.PrincipalID, "variant %q of %q", v, role)
		}
	}
}

func TestResolve_Totality(t *testing.T) {
	r := newResolver(t, "CFO")
	inputs := []string{"", "   ", "x", "unit_test_user_42", strings.Repeat("z", 1000), "\x00\xff", "🙂"}
	for _, in := range inputs {
		res := r.Resolve(in)
		assert.NotEmpty(t, res.Context.PrincipalID, "input %q", in)
		assert.NotEmpty(t, res.Context.Role, "input %q", in)
	}
}

func TestResolve_UnknownIdentifierFallsBack(t *testing.T) {
	r := newResolver(t, "CFO")

	res := r.Resolve("unit_test_user_42")
	require.True(t, res.Fallback)
	assert.Equal(t, profile.StrategyFallback, res.Strategy)
	assert.Equal(t, "CFO", res.Context.Role)
	assert.Equal(t, "unit_test_user_42", res.Context.PrincipalID)

	diags := res.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, model.DiagResolutionFallback, diags[0].Kind)
}

func TestResolve_FallbackUsesDefaultProfile(t *testing.T) {
	r := newResolver(t, "")
	r.SetDefaultProfile(&model.PrincipalProfile{
		ID:                "default_cfo",
		Role:              "CFO",
		BusinessProcesses: []string{"Finance: Profitability Analysis"},
		DefaultFilters:    map[string]any{"currency": "USD"},
	})

	res := r.Resolve("")
	require.True(t, res.Fallback)
	assert.Equal(t, "default_cfo", res.Context.PrincipalID)
	assert.Equal(t, "CFO", res.Context.Role)
	assert.Equal(t, []string{"Finance: Profitability Analysis"}, res.Context.BusinessProcesses)
	assert.Equal(t, "USD", res.Context.DefaultFilters["currency"])

	res = r.Resolve("nobody")
	assert.Equal(t, "nobody", res.Context.PrincipalID)

	r.SetDefaultProfile(nil)
	res = r.Resolve("")
	assert.Equal(t, "default", res.Context.PrincipalID)
	assert.Equal(t, resolver.DefaultRole, res.Context.Role)
}

func TestResolve_ConfiguredRoleOverridesDefaultProfile(t *testing.T) {
	r := newResolver(t, "COO")
	r.SetDefaultProfile(&model.PrincipalProfile{ID: "default_cfo", Role: "CFO"})
	assert.Equal(t, "COO", r.Resolve("stranger").Context.Role)
}

func TestResolve_EmptyStore(t *testing.T) {
	store := profile.NewStore(testutil.TestLogger())
	store.Load(nil)
	r := resolver.New(store, "CFO", testutil.TestLogger())

	res := r.Resolve("cfo_001")
	assert.True(t, res.Fallback)
	assert.Equal(t, "cfo_001", res.Context.PrincipalID)
}

func TestResolve_ContextIsACopy(t *testing.T) {
	r := newResolver(t, "CFO")
	res := r.Resolve("cfo_001")
	res.Context.BusinessProcesses[0] = "mutated"

	again := r.Resolve("cfo_001")
	assert.Equal(t, "Finance: Profitability Analysis", again.Context.BusinessProcesses[0])
}

func TestResolveRole(t *testing.T) {
	r := newResolver(t, "CFO")
	assert.Equal(t, "ceo_001", r.ResolveRole(model.RoleCEO).Context.PrincipalID)
	assert.Equal(t, "fm_001", r.ResolveRole(model.RoleFinanceManager).Context.PrincipalID)
}

func TestCanonicalProcess(t *testing.T) {
	assert.Equal(t, "Finance: Profitability Analysis", resolver.CanonicalProcess("PROFITABILITY_ANALYSIS"))
	assert.Equal(t, "Finance: Profitability Analysis", resolver.CanonicalProcess(" profitability analysis "))
	assert.Equal(t, "Finance: Budget vs. Actuals", resolver.CanonicalProcess("budget-vs-actuals"))
	assert.Equal(t, resolver.Unmapped, resolver.CanonicalProcess("TIME_TRAVEL"))
	assert.Equal(t, resolver.Unmapped, resolver.CanonicalProcess(""))

	mapped, unmapped := resolver.CanonicalProcesses([]string{"EXPENSE_MANAGEMENT", "NOPE", "CASH_FLOW_MANAGEMENT"})
	assert.Equal(t, []string{"Finance: Expense Management", "Finance: Cash Flow Management"}, mapped)
	assert.Equal(t, []string{"NOPE"}, unmapped)
}
