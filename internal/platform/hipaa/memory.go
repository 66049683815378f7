package hipaa

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps entries in process for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	// Err, when set, is returned by Append instead of storing the entry.
	Err error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.entries = append(s.entries, *e)
	return nil
}

// Entries returns a copy of everything stored, in append order.
func (s *MemoryStore) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// List mirrors PGStore.List: matching entries, newest first.
func (s *MemoryStore) List(_ context.Context, f Filter) ([]Entry, error) {
	f.applyDefaults()

	s.mu.RLock()
	var out []Entry
	for i := range s.entries {
		if f.matches(&s.entries[i]) {
			out = append(out, s.entries[i])
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
