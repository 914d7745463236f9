package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"prisoner-search/internal/search/models"
	"prisoner-search/pkg/platform/sentinel"
)

// InMemoryStore implements Store for unit tests and local runs. A single
// mutex stands in for the database's row-level serialisation.
type InMemoryStore struct {
	mu     sync.Mutex
	status models.IndexStatus
}

// NewInMemory creates a status store in the initial state: slot A live,
// no rebuild in progress.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{status: models.NewIndexStatus()}
}

func (s *InMemoryStore) Get(_ context.Context) (models.IndexStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, nil
}

func (s *InMemoryStore) StartBuild(_ context.Context, startTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.InProgress {
		return fmt.Errorf("start build: %w", sentinel.ErrConflict)
	}
	start := startTime
	s.status.InProgress = true
	s.status.StartTime = &start
	s.status.EndTime = nil
	return nil
}

func (s *InMemoryStore) CompleteBuild(_ context.Context, endTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.status.InProgress {
		return fmt.Errorf("complete build: %w", sentinel.ErrConflict)
	}
	end := endTime
	s.status.InProgress = false
	s.status.EndTime = &end
	return nil
}

func (s *InMemoryStore) Switch(_ context.Context) (models.SyncIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.InProgress {
		return "", fmt.Errorf("switch index: %w", sentinel.ErrConflict)
	}
	s.status.CurrentIndex = s.status.CurrentIndex.Other()
	return s.status.CurrentIndex, nil
}
