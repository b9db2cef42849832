package memory

import (
	"context"
	"sort"
	"sync"

	"cryptobasis/internal/domain"
	"cryptobasis/internal/storage"
)

// RealizedGainStore is an in-memory implementation of storage.RealizedGainStore.
type RealizedGainStore struct {
	mu   sync.RWMutex
	data map[string][]domain.RealizedGain // keyed by run ID, insertion order
}

// NewRealizedGainStore creates a new in-memory realized gain store.
func NewRealizedGainStore() *RealizedGainStore {
	return &RealizedGainStore{
		data: make(map[string][]domain.RealizedGain),
	}
}

// InsertBulk adds a run's records.
func (s *RealizedGainStore) InsertBulk(_ context.Context, runID string, gains []*domain.RealizedGain) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	for _, g := range gains {
		if g == nil || g.DisposalID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range gains {
		s.data[runID] = append(s.data[runID], *g)
	}
	return nil
}

// GetByRunID retrieves all records of a run, ordered by disposal date ASC.
func (s *RealizedGainStore) GetByRunID(_ context.Context, runID string) ([]*domain.RealizedGain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RealizedGain
	for i := range s.data[runID] {
		gainCopy := s.data[runID][i]
		result = append(result, &gainCopy)
	}

	sortGains(result)
	return result, nil
}

// GetByDisposalID retrieves the records of one disposal within a run.
func (s *RealizedGainStore) GetByDisposalID(_ context.Context, runID, disposalID string) ([]*domain.RealizedGain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RealizedGain
	for i := range s.data[runID] {
		if s.data[runID][i].DisposalID == disposalID {
			gainCopy := s.data[runID][i]
			result = append(result, &gainCopy)
		}
	}

	sortGains(result)
	return result, nil
}

// sortGains orders by disposal date ASC, then disposal ID and acquisition
// date for determinism.
func sortGains(gains []*domain.RealizedGain) {
	sort.SliceStable(gains, func(i, j int) bool {
		if !gains[i].Date.Equal(gains[j].Date) {
			return gains[i].Date.Before(gains[j].Date)
		}
		if gains[i].DisposalID != gains[j].DisposalID {
			return gains[i].DisposalID < gains[j].DisposalID
		}
		return gains[i].AcquiredAt.Before(gains[j].AcquiredAt)
	})
}

// Verify interface compliance at compile time.
var _ storage.RealizedGainStore = (*RealizedGainStore)(nil)
