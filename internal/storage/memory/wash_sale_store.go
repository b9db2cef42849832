package memory

import (
	"context"
	"sort"
	"sync"

	"cryptobasis/internal/domain"
	"cryptobasis/internal/storage"
)

// WashSaleStore is an in-memory implementation of storage.WashSaleStore.
type WashSaleStore struct {
	mu   sync.RWMutex
	data map[string][]domain.WashSaleAdjustment // keyed by run ID
}

// NewWashSaleStore creates a new in-memory wash sale store.
func NewWashSaleStore() *WashSaleStore {
	return &WashSaleStore{
		data: make(map[string][]domain.WashSaleAdjustment),
	}
}

// InsertBulk adds a run's adjustments.
func (s *WashSaleStore) InsertBulk(_ context.Context, runID string, adjs []*domain.WashSaleAdjustment) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	for _, a := range adjs {
		if a == nil || a.DisposalID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range adjs {
		adjCopy := *a
		adjCopy.RepurchaseDates = append(a.RepurchaseDates[:0:0], a.RepurchaseDates...)
		s.data[runID] = append(s.data[runID], adjCopy)
	}
	return nil
}

// GetByRunID retrieves all adjustments of a run, ordered by disposal date ASC.
func (s *WashSaleStore) GetByRunID(_ context.Context, runID string) ([]*domain.WashSaleAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WashSaleAdjustment
	for i := range s.data[runID] {
		adjCopy := s.data[runID][i]
		adjCopy.RepurchaseDates = append(adjCopy.RepurchaseDates[:0:0], adjCopy.RepurchaseDates...)
		result = append(result, &adjCopy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].DisposalID < result[j].DisposalID
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.WashSaleStore = (*WashSaleStore)(nil)
