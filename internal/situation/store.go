package situation

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/ashita-ai/beacon/internal/model"
)

// DefaultListLimit caps List when Filter.Limit is unset.
const DefaultListLimit = 50

// Filter narrows List. Zero values match everything.
type Filter struct {
	PrincipalID string
	KPIName     string
	Statuses    []model.SituationStatus
	MinSeverity model.Severity
	Limit       int
	Offset      int
}

// EffectiveLimit returns Limit clamped to [1, 1000], defaulting to DefaultListLimit.
func (f Filter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > 1000:
		return 1000
	}
	return f.Limit
}

// Match reports whether s passes the filter.
func (f Filter) Match(s model.Situation) bool {
	if f.PrincipalID != "" && !strings.EqualFold(f.PrincipalID, s.PrincipalID) {
		return false
	}
	if f.KPIName != "" && !strings.EqualFold(f.KPIName, s.KPIName) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, s.Status) {
		return false
	}
	if f.MinSeverity != "" && !s.Severity.AtLeast(f.MinSeverity) {
		return false
	}
	return true
}

// Store persists situations. Implementations must apply a Commit atomically.
type Store interface {
	Get(ctx context.Context, id string) (model.Situation, error)
	ListByDedupeKeys(ctx context.Context, keys []string) ([]model.Situation, error)
	// List returns one page of matches ordered by severity (most severe
	// first), then timestamp descending, then id, plus the total match count.
	List(ctx context.Context, f Filter) ([]model.Situation, int, error)
	// Commit saves (insert or replace by id) and deletes in one unit.
	Commit(ctx context.Context, save []model.Situation, del []string) error
}

// Less orders situations the way List returns them.
func Less(a, b model.Situation) int {
	if c := cmp.Compare(b.Severity.Rank(), a.Severity.Rank()); c != 0 {
		return c
	}
	if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// MemoryStore is an in-process Store. It is the default when no database is
// configured and is what the tests run against.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]model.Situation
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string]model.Situation{}}
}

func (m *MemoryStore) Get(_ context.Context, id string) (model.Situation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return model.Situation{}, ErrNotFound
	}
	return clone(s), nil
}

func (m *MemoryStore) ListByDedupeKeys(_ context.Context, keys []string) ([]model.Situation, error) {
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Situation
	for _, s := range m.byID {
		if _, ok := want[s.DedupeKey]; ok {
			out = append(out, clone(s))
		}
	}
	slices.SortFunc(out, func(a, b model.Situation) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *MemoryStore) List(_ context.Context, f Filter) ([]model.Situation, int, error) {
	m.mu.RLock()
	var matched []model.Situation
	for _, s := range m.byID {
		if f.Match(s) {
			matched = append(matched, s)
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(matched, Less)
	total := len(matched)
	start := min(max(f.Offset, 0), total)
	end := min(start+f.EffectiveLimit(), total)
	page := make([]model.Situation, 0, end-start)
	for _, s := range matched[start:end] {
		page = append(page, clone(s))
	}
	return page, total, nil
}

func (m *MemoryStore) Commit(_ context.Context, save []model.Situation, del []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range del {
		delete(m.byID, id)
	}
	for _, s := range save {
		s.ProposedAssignees = nil
		m.byID[s.ID] = clone(s)
	}
	return nil
}

// clone copies the slices a caller could otherwise mutate in place.
func clone(s model.Situation) model.Situation {
	s.SuggestedActions = slices.Clone(s.SuggestedActions)
	s.DiagnosticQuestions = slices.Clone(s.DiagnosticQuestions)
	s.Tags = slices.Clone(s.Tags)
	s.Decisions = slices.Clone(s.Decisions)
	s.ProposedAssignees = slices.Clone(s.ProposedAssignees)
	return s
}
