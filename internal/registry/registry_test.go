package registry_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ashita-ai/beacon/internal/kpi"
	"github.com/ashita-ai/beacon/internal/model"
	"github.com/ashita-ai/beacon/internal/profile"
	"github.com/ashita-ai/beacon/internal/registry"
	"github.com/ashita-ai/beacon/internal/resolver"
	"github.com/ashita-ai/beacon/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const registryYAML = `
principals:
  - id: vp_sales
    display_name: VP Sales
    role: VP_SALES
    title: Vice President of Sales
    business_processes: ["Sales: Pipeline Management"]
  - id: ""
    role: BROKEN
kpis:
  - name: Pipeline Coverage
    unit: ratio
    business_processes: ["Sales: Pipeline Management"]
    positive_trend_is_good: true
    thresholds:
      default: {green: 0, yellow: -0.1, red: -0.2}
      budget: {green: 3, yellow: 2, red: 1, basis: value}
business_processes: ["Sales: Pipeline Management"]
default_profile:
  id: vp_sales_default
  role: VP_SALES
  business_processes: ["Sales: Pipeline Management"]
`

type env struct {
	profiles *profile.Store
	catalog  *kpi.Catalog
	resolver *resolver.Resolver
}

func newEnv() env {
	logger := testutil.TestLogger()
	ps := profile.NewStore(logger)
	return env{profiles: ps, catalog: kpi.NewCatalog(logger), resolver: resolver.New(ps, "", logger)}
}

func (e env) loader(p registry.Provider) *registry.Loader {
	return registry.NewLoader(p, e.profiles, e.catalog, e.resolver, testutil.TestLogger())
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestFileProvider_ParsesDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	writeFile(t, path, registryYAML)

	doc, err := registry.NewFileProvider(path).Document(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Principals, 2)
	require.Len(t, doc.KPIs, 1)
	th := doc.KPIs[0].Thresholds[model.ComparisonBudget]
	assert.Equal(t, model.BasisValue, th.Basis)
	assert.Equal(t, 3.0, th.Green)
	require.NotNil(t, doc.DefaultProfile)
	assert.Equal(t, "vp_sales_default", doc.DefaultProfile.ID)
}

func TestFileProvider_RejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	writeFile(t, path, "principals:\n  - id: x\n    role: X\n    rol: typo\n")

	_, err := registry.NewFileProvider(path).PrincipalProfiles(context.Background())
	require.Error(t, err)
}

func TestLoader_BuiltinDefaults(t *testing.T) {
	e := newEnv()
	st := e.loader(nil).Refresh(context.Background())

	assert.Equal(t, registry.SourceBuiltin, st.Source)
	assert.False(t, st.Fallback)
	assert.Equal(t, 3, st.Profiles)
	assert.Positive(t, st.KPIs)
	assert.Empty(t, st.Diagnostics())

	for _, role := range []string{"CFO", "CEO", "COO"} {
		res := e.resolver.Resolve(role)
		assert.False(t, res.Fallback, role)
		assert.Equal(t, role, res.Context.Role)
	}
	_, ok := e.catalog.Get("operating expense")
	assert.True(t, ok)
}

func TestLoader_FileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	writeFile(t, path, registryYAML)
	e := newEnv()

	st := e.loader(registry.NewFileProvider(path)).Refresh(context.Background())
	assert.Equal(t, registry.SourceProvider, st.Source)
	assert.Equal(t, 1, st.Profiles, "profile without id is dropped")
	assert.Equal(t, 1, st.KPIs)
	assert.Equal(t, []string{"Sales: Pipeline Management"}, st.BusinessProcesses)

	res := e.resolver.Resolve("somebody-unknown")
	assert.True(t, res.Fallback)
	assert.Equal(t, "VP_SALES", res.Context.Role)
	assert.Equal(t, []string{"Sales: Pipeline Management"}, res.Context.BusinessProcesses)
}

type failingProvider struct{}

func (failingProvider) PrincipalProfiles(context.Context) ([]model.PrincipalProfile, error) {
	return nil, errors.New("registry down")
}

func (failingProvider) KPIDefinitions(context.Context) ([]model.KPIDefinition, error) {
	return nil, nil
}

func (failingProvider) BusinessProcesses(context.Context) ([]string, error) {
	return nil, nil
}

func TestLoader_FailureFallsBackToBuiltin(t *testing.T) {
	e := newEnv()
	st := e.loader(failingProvider{}).Refresh(context.Background())

	assert.Equal(t, registry.SourceBuiltin, st.Source)
	assert.True(t, st.Fallback)
	assert.Contains(t, st.Error, "registry down")
	require.Len(t, st.Diagnostics(), 1)
	assert.Equal(t, model.DiagRegistryUnavailable, st.Diagnostics()[0].Kind)
	assert.Equal(t, 3, e.profiles.Len())
}

func TestLoader_LaterFailureKeepsLastGood(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	writeFile(t, path, registryYAML)
	e := newEnv()
	l := e.loader(registry.NewFileProvider(path))
	l.Refresh(context.Background())

	writeFile(t, path, "principals: [")
	st := l.Refresh(context.Background())
	assert.True(t, st.Fallback)
	assert.Equal(t, registry.SourceProvider, st.Source)
	_, ok := e.profiles.GetByID("vp_sales")
	assert.True(t, ok, "previous registry kept")
	assert.Equal(t, st, l.Status())
}

func TestLoader_EmptyDocumentIsUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	writeFile(t, path, "business_processes: []\n")
	e := newEnv()

	st := e.loader(registry.NewFileProvider(path)).Refresh(context.Background())
	assert.Equal(t, registry.SourceBuiltin, st.Source)
	assert.True(t, st.Fallback)
}

func TestLoader_ConcurrentRefresh(t *testing.T) {
	e := newEnv()
	l := e.loader(nil)
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st := l.Refresh(context.Background())
			assert.Equal(t, 3, st.Profiles)
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, e.profiles.Len())
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	writeFile(t, path, registryYAML)
	e := newEnv()
	l := e.loader(registry.NewFileProvider(path))
	l.Refresh(context.Background())
	require.Equal(t, 1, e.catalog.Len())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	w := registry.NewWatcher(path, l, 20*time.Millisecond, testutil.TestLogger())
	go func() { done <- w.Run(ctx) }()

	updated := strings.Replace(registryYAML, "kpis:\n", `kpis:
  - name: Win Rate
    business_processes: ["Sales: Pipeline Management"]
    thresholds:
      default: {green: 0, yellow: -0.05, red: -0.1}
`, 1)
	// The watch may not be registered yet when the first write lands; keep
	// rewriting until the reload is observed.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte(updated), 0o644)
		return e.catalog.Len() == 2
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
