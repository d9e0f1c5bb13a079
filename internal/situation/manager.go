package situation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashita-ai/beacon/internal/model"
)

// Manager runs the lifecycle against a Store. Reconcile and ApplyDecision
// hold a per-dedupe-key lock across read, merge and commit, so concurrent
// requests touching the same key cannot both create a situation for it.
type Manager struct {
	store  Store
	policy Policy
	logger *slog.Logger
	locks  *keyLock
	now    func() time.Time
}

// NewManager creates a manager. A zero cooldown uses DefaultCooldown.
func NewManager(store Store, cooldown time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		policy: Policy{Cooldown: cooldown},
		logger: logger,
		locks:  newKeyLock(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Intended for tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// SetIDGenerator replaces the situation id generator. Intended for tests.
func (m *Manager) SetIDGenerator(newID func() string) { m.policy.NewID = newID }

// Store returns the underlying store.
func (m *Manager) Store() Store { return m.store }

// Reconcile merges evaluations with what the store holds for their dedupe
// keys and commits the result.
func (m *Manager) Reconcile(ctx context.Context, evals []Evaluation) (UpsertResult, error) {
	if len(evals) == 0 {
		return UpsertResult{}, nil
	}
	keys := make([]string, len(evals))
	for i, e := range evals {
		keys[i] = e.DedupeKey()
	}

	unlock := m.locks.lock(keys)
	defer unlock()

	existing, err := m.store.ListByDedupeKeys(ctx, keys)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("situation: load existing: %w", err)
	}

	res := m.policy.Upsert(evals, existing, m.now())
	for _, s := range res.Situations {
		if err := s.Validate(); err != nil {
			return UpsertResult{}, fmt.Errorf("situation: reconcile: %w", err)
		}
	}
	if err := m.store.Commit(ctx, res.Situations, res.Superseded); err != nil {
		return UpsertResult{}, fmt.Errorf("situation: commit: %w", err)
	}

	for i, s := range res.Situations {
		m.logger.Debug("situation: reconciled",
			"situation_id", s.ID, "dedupe_key", s.DedupeKey, "outcome", res.Outcomes[i],
			"severity", s.Severity, "status", s.Status)
	}
	if len(res.Superseded) > 0 {
		m.logger.Info("situation: superseded", "situation_ids", res.Superseded)
	}
	return res, nil
}

// ApplyDecision records a human decision against situation id and returns
// the updated situation. It returns ErrNotFound, ErrInvalidDecision or
// ErrInvalidTransition (wrapped) when the decision cannot be applied.
func (m *Manager) ApplyDecision(ctx context.Context, id string, d model.Decision) (model.Situation, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return model.Situation{}, fmt.Errorf("situation: get %s: %w", id, err)
	}

	unlock := m.locks.lock([]string{s.DedupeKey})
	defer unlock()

	// Re-read under the lock: a reconcile may have refreshed or superseded it.
	s, err = m.store.Get(ctx, id)
	if err != nil {
		return model.Situation{}, fmt.Errorf("situation: get %s: %w", id, err)
	}

	updated, err := m.policy.ApplyDecision(s, d, m.now())
	if err != nil {
		return model.Situation{}, err
	}
	if err := m.store.Commit(ctx, []model.Situation{updated}, nil); err != nil {
		return model.Situation{}, fmt.Errorf("situation: commit decision: %w", err)
	}

	m.logger.Info("situation: decision applied",
		"situation_id", id, "decision", d.Action, "from", s.Status, "to", updated.Status, "decided_by", d.DecidedBy)
	return updated, nil
}

// Get returns one situation.
func (m *Manager) Get(ctx context.Context, id string) (model.Situation, error) {
	return m.store.Get(ctx, id)
}

// List returns a page of situations and the total match count.
func (m *Manager) List(ctx context.Context, f Filter) ([]model.Situation, int, error) {
	return m.store.List(ctx, f)
}

// IsNotFound reports whether err means the situation does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
