package memory

import (
	"context"
	"sync"

	"cryptobasis/internal/domain"
	"cryptobasis/internal/storage"
)

// CarryoverStore is an in-memory implementation of storage.CarryoverStore.
type CarryoverStore struct {
	mu   sync.RWMutex
	data map[int]domain.YearCarryover // keyed by year
}

// NewCarryoverStore creates a new in-memory carryover store.
func NewCarryoverStore() *CarryoverStore {
	return &CarryoverStore{
		data: make(map[int]domain.YearCarryover),
	}
}

// Upsert stores or replaces the carryover for its year.
func (s *CarryoverStore) Upsert(_ context.Context, c *domain.YearCarryover) error {
	if c == nil || c.Year <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[c.Year] = *c
	return nil
}

// GetByYear retrieves the carryover produced for year.
func (s *CarryoverStore) GetByYear(_ context.Context, year int) (*domain.YearCarryover, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[year]
	if !exists {
		return nil, storage.ErrNotFound
	}

	carryCopy := c
	return &carryCopy, nil
}

// Verify interface compliance at compile time.
var _ storage.CarryoverStore = (*CarryoverStore)(nil)
