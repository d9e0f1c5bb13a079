package situation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ashita-ai/beacon/internal/model"
	"github.com/ashita-ai/beacon/internal/situation"
	"github.com/ashita-ai/beacon/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newManager(t *testing.T, now *time.Time) (*situation.Manager, *situation.MemoryStore) {
	t.Helper()
	store := situation.NewMemoryStore()
	m := situation.NewManager(store, time.Hour, testutil.TestLogger())
	m.SetClock(func() time.Time { return *now })
	m.SetIDGenerator(seqIDs())
	return m, store
}

func TestManager_ReconcileIsIdempotent(t *testing.T) {
	now := t0
	m, store := newManager(t, &now)
	ctx := context.Background()
	evals := []situation.Evaluation{
		eval(t, "cfo_001", "Revenue", 80, model.SeverityCritical),
		eval(t, "cfo_001", "Operating Expense", 110, model.SeverityCritical),
	}

	first, err := m.Reconcile(ctx, evals)
	require.NoError(t, err)
	now = now.Add(time.Second)
	second, err := m.Reconcile(ctx, evals)
	require.NoError(t, err)

	require.Len(t, second.Situations, 2)
	for i := range first.Situations {
		assert.Equal(t, first.Situations[i].ID, second.Situations[i].ID)
	}
	_, total, err := store.List(ctx, situation.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestManager_RefireDeletesSuperseded(t *testing.T) {
	now := t0
	m, store := newManager(t, &now)
	ctx := context.Background()
	e := eval(t, "cfo_001", "Revenue", 80, model.SeverityCritical)

	first, err := m.Reconcile(ctx, []situation.Evaluation{e})
	require.NoError(t, err)
	now = now.Add(2 * time.Hour)
	second, err := m.Reconcile(ctx, []situation.Evaluation{e})
	require.NoError(t, err)

	_, err = store.Get(ctx, first.Situations[0].ID)
	assert.ErrorIs(t, err, situation.ErrNotFound)
	got, err := store.Get(ctx, second.Situations[0].ID)
	require.NoError(t, err)
	assert.Equal(t, first.Situations[0].ID, *got.ParentID)
}

func TestManager_ConcurrentReconcileCreatesOne(t *testing.T) {
	now := t0
	store := situation.NewMemoryStore()
	m := situation.NewManager(store, time.Hour, testutil.TestLogger())
	m.SetClock(func() time.Time { return now })
	ctx := context.Background()
	e := eval(t, "cfo_001", "Revenue", 80, model.SeverityCritical)

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := m.Reconcile(ctx, []situation.Evaluation{e})
			if assert.NoError(t, err) {
				ids[i] = res.Situations[0].ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	_, total, err := store.List(ctx, situation.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestManager_ApplyDecision(t *testing.T) {
	now := t0
	m, _ := newManager(t, &now)
	ctx := context.Background()
	res, err := m.Reconcile(ctx, []situation.Evaluation{eval(t, "cfo_001", "Revenue", 80, model.SeverityCritical)})
	require.NoError(t, err)
	id := res.Situations[0].ID

	s, err := m.ApplyDecision(ctx, id, model.Decision{Action: model.DecisionAcknowledge, DecidedBy: "dashboard"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusAcknowledged, s.Status)

	stored, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAcknowledged, stored.Status)
	require.Len(t, stored.Decisions, 1)
	assert.Equal(t, "dashboard", stored.Decisions[0].DecidedBy)

	_, err = m.ApplyDecision(ctx, "missing", model.Decision{Action: model.DecisionAcknowledge})
	assert.True(t, situation.IsNotFound(err))

	_, err = m.ApplyDecision(ctx, id, model.Decision{Action: model.DecisionAcknowledge})
	assert.ErrorIs(t, err, situation.ErrInvalidTransition)
}

func TestMemoryStore_ListFilterAndOrder(t *testing.T) {
	now := t0
	m, _ := newManager(t, &now)
	ctx := context.Background()
	_, err := m.Reconcile(ctx, []situation.Evaluation{
		eval(t, "cfo_001", "Revenue", 80, model.SeverityLow),
		eval(t, "cfo_001", "Operating Expense", 110, model.SeverityCritical),
		eval(t, "ceo_001", "Revenue", 95, model.SeverityHigh),
	})
	require.NoError(t, err)

	all, total, err := m.List(ctx, situation.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, model.SeverityCritical, all[0].Severity)
	assert.Equal(t, model.SeverityHigh, all[1].Severity)
	assert.Equal(t, model.SeverityLow, all[2].Severity)

	cfo, total, err := m.List(ctx, situation.Filter{PrincipalID: "CFO_001", MinSeverity: model.SeverityHigh})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Operating Expense", cfo[0].KPIName)

	page, total, err := m.List(ctx, situation.Filter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, model.SeverityHigh, page[0].Severity)

	none, total, err := m.List(ctx, situation.Filter{Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, none)

	open, _, err := m.List(ctx, situation.Filter{Statuses: []model.SituationStatus{model.StatusResolved}})
	require.NoError(t, err)
	assert.Empty(t, open)
}
