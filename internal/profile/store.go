// Package profile holds the in-memory Profile Store: principal profiles
// indexed by id, role, and title for constant-time lookup.
package profile

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/ashita-ai/beacon/internal/model"
)

// Strategy names the lookup path that produced a match.
type Strategy string

const (
	StrategyID                Strategy = "id"
	StrategyIDCaseInsensitive Strategy = "id_case_insensitive"
	StrategyRole              Strategy = "role"
	StrategyTitle             Strategy = "title"
	StrategySubstring         Strategy = "substring"
	StrategyFallback          Strategy = "fallback"
)

// minSubstringLen keeps one- and two-letter inputs from matching everything.
const minSubstringLen = 3

// Store indexes principal profiles. It is read-mostly: lookups share a read
// lock and Load takes the write lock, so a reload is never observed half-built.
type Store struct {
	logger *slog.Logger

	mu       sync.RWMutex
	loaded   bool
	profiles []model.PrincipalProfile
	byID     map[string]int
	byIDFold map[string]int
	byRole   map[string]int
	byTitle  map[string]int
}

// NewStore returns an empty store in the "not yet loaded" state.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger}
}

// Load replaces every index with ones built from profiles. Nothing from a
// previous load survives. Profiles without an id are skipped, and for a
// duplicated id or key the first profile in load order wins.
func (s *Store) Load(profiles []model.PrincipalProfile) {
	kept := make([]model.PrincipalProfile, 0, len(profiles))
	byID := make(map[string]int, len(profiles))
	byIDFold := make(map[string]int, len(profiles))
	byRole := make(map[string]int, len(profiles))
	byTitle := make(map[string]int, len(profiles))

	for _, p := range profiles {
		if strings.TrimSpace(p.ID) == "" {
			s.logger.Warn("profile: skipping profile without id", "role", p.Role)
			continue
		}
		if _, dup := byID[p.ID]; dup {
			s.logger.Warn("profile: duplicate id ignored", "principal_id", p.ID)
			continue
		}
		idx := len(kept)
		kept = append(kept, p)
		byID[p.ID] = idx
		putFirst(byIDFold, strings.ToLower(p.ID), idx)
		putFirst(byRole, Normalize(p.Role), idx)
		putFirst(byTitle, Normalize(p.Title), idx)
	}

	s.mu.Lock()
	s.profiles = kept
	s.byID = byID
	s.byIDFold = byIDFold
	s.byRole = byRole
	s.byTitle = byTitle
	s.loaded = true
	s.mu.Unlock()

	s.logger.Info("profile: store loaded", "profiles", len(kept))
}

func putFirst(m map[string]int, key string, idx int) {
	if key == "" {
		return
	}
	if _, ok := m[key]; !ok {
		m[key] = idx
	}
}

// Loaded reports whether Load has been called at least once.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Len returns the number of indexed profiles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// All returns the indexed profiles in load order.
func (s *Store) All() []model.PrincipalProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.profiles)
}

// GetByID matches id exactly.
func (s *Store) GetByID(id string) (model.PrincipalProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.at(s.byID, id)
}

// GetByIDFold matches id ignoring case and surrounding whitespace.
func (s *Store) GetByIDFold(id string) (model.PrincipalProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.at(s.byIDFold, strings.ToLower(strings.TrimSpace(id)))
}

// GetByRoleOrTitle looks key up by normalized role, then normalized title,
// then by substring containment against every role and title in load order.
// The returned strategy is for diagnostics only.
func (s *Store) GetByRoleOrTitle(key string) (model.PrincipalProfile, Strategy, bool) {
	n := Normalize(key)
	if n == "" {
		return model.PrincipalProfile{}, "", false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.at(s.byRole, n); ok {
		return p, StrategyRole, true
	}
	if p, ok := s.at(s.byTitle, n); ok {
		return p, StrategyTitle, true
	}
	if len(n) < minSubstringLen {
		return model.PrincipalProfile{}, "", false
	}
	for _, p := range s.profiles {
		if containsEither(Normalize(p.Role), n) || containsEither(Normalize(p.Title), n) {
			return p, StrategySubstring, true
		}
	}
	return model.PrincipalProfile{}, "", false
}

// containsEither reports whether either string contains the other. The
// indexed side must itself be long enough to mean something.
func containsEither(indexed, needle string) bool {
	if len(indexed) < minSubstringLen {
		return false
	}
	return strings.Contains(indexed, needle) || strings.Contains(needle, indexed)
}

func (s *Store) at(index map[string]int, key string) (model.PrincipalProfile, bool) {
	idx, ok := index[key]
	if !ok {
		return model.PrincipalProfile{}, false
	}
	return s.profiles[idx], true
}
