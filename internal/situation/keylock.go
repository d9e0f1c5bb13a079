package situation

import (
	"slices"
	"sync"
)

// keyLock serializes work per dedupe key. Entries are reference counted and
// removed when the last holder unlocks.
type keyLock struct {
	mu      sync.Mutex
	entries map[string]*keyEntry
}

type keyEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{entries: map[string]*keyEntry{}}
}

// lock acquires every key in sorted order, so two callers with overlapping
// key sets cannot deadlock. The returned func releases them.
func (l *keyLock) lock(keys []string) func() {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]*keyEntry, 0, len(sorted))
	for _, k := range sorted {
		l.mu.Lock()
		e, ok := l.entries[k]
		if !ok {
			e = &keyEntry{}
			l.entries[k] = e
		}
		e.refs++
		l.mu.Unlock()

		e.mu.Lock()
		held = append(held, e)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(l.entries, sorted[i])
			}
			l.mu.Unlock()
		}
	}
}

// size returns the number of live entries.
func (l *keyLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
