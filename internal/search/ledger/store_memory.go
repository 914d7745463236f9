package ledger

import (
	"context"
	"sync"
	"time"

	id "prisoner-search/pkg/domain"
)

// InMemoryStore implements Store for unit tests and local runs. The mutex
// gives the same at-most-one-winner behaviour the Postgres statement does.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[id.PrisonerNumber]Entry
}

// NewInMemory creates an empty in-memory ledger.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.PrisonerNumber]Entry)}
}

func (s *InMemoryStore) UpsertIfChanged(_ context.Context, prisonerNumber id.PrisonerNumber, hash string, updatedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.entries[prisonerNumber]
	if exists && existing.Hash == hash {
		return false, nil
	}
	s.entries[prisonerNumber] = Entry{PrisonerNumber: prisonerNumber, Hash: hash, UpdatedAt: updatedAt}
	return true, nil
}

func (s *InMemoryStore) PruneOlderThan(_ context.Context, threshold time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned int64
	for key, entry := range s.entries {
		if entry.UpdatedAt.Before(threshold) {
			delete(s.entries, key)
			pruned++
		}
	}
	return pruned, nil
}

// Get returns the entry for a prisoner, for test assertions.
func (s *InMemoryStore) Get(prisonerNumber id.PrisonerNumber) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[prisonerNumber]
	return entry, ok
}
