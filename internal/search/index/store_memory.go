package index

import (
	"context"
	"sync"

	"prisoner-search/internal/search/models"
	id "prisoner-search/pkg/domain"
)

// InMemoryStore implements Store for unit tests and local runs.
type InMemoryStore struct {
	mu    sync.RWMutex
	slots map[models.SyncIndex]map[id.PrisonerNumber]models.Prisoner
}

// NewInMemory creates an empty in-memory index store with both slots.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		slots: map[models.SyncIndex]map[id.PrisonerNumber]models.Prisoner{
			models.IndexA: {},
			models.IndexB: {},
		},
	}
}

func (s *InMemoryStore) Get(_ context.Context, slot models.SyncIndex, prisonerNumber id.PrisonerNumber) (*models.Prisoner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prisoner, ok := s.slots[slot][prisonerNumber]
	if !ok {
		return nil, nil
	}
	copied := prisoner
	return &copied, nil
}

func (s *InMemoryStore) Put(_ context.Context, slot models.SyncIndex, prisoner *models.Prisoner) error {
	if err := prisoner.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot][prisoner.PrisonerNumber] = *prisoner
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, slot models.SyncIndex, prisonerNumber id.PrisonerNumber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots[slot], prisonerNumber)
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, slot models.SyncIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot] = map[id.PrisonerNumber]models.Prisoner{}
	return nil
}

func (s *InMemoryStore) Count(_ context.Context, slot models.SyncIndex) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.slots[slot])), nil
}
