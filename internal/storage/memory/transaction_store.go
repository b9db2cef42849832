package memory

import (
	"context"
	"sort"
	"sync"

	"cryptobasis/internal/domain"
	"cryptobasis/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Transaction // keyed by transaction ID
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[string]*domain.Transaction),
	}
}

// Insert adds a new transaction. Returns ErrDuplicateKey if the ID exists.
func (s *TransactionStore) Insert(_ context.Context, t *domain.Transaction) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.ID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	txCopy := *t
	s.data[t.ID] = &txCopy
	return nil
}

// InsertBulk adds multiple transactions atomically. Fails the entire
// batch on any duplicate.
func (s *TransactionStore) InsertBulk(_ context.Context, txs []*domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range txs {
		if t == nil || t.ID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[t.ID]; exists {
			return storage.ErrDuplicateKey
		}
	}
	for _, t := range txs {
		txCopy := *t
		s.data[t.ID] = &txCopy
	}
	return nil
}

// GetByID retrieves a transaction by its ID. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	txCopy := *t
	return &txCopy, nil
}

// GetByYear retrieves all transactions within the calendar year (UTC),
// ordered by timestamp ASC.
func (s *TransactionStore) GetByYear(_ context.Context, year int) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, t := range s.data {
		if t.Timestamp.UTC().Year() == year {
			txCopy := *t
			result = append(result, &txCopy)
		}
	}

	sortTransactions(result)
	return result, nil
}

// GetByCoin retrieves all transactions for a coin, ordered by timestamp ASC.
func (s *TransactionStore) GetByCoin(_ context.Context, coin string) ([]*domain.Transaction, error) {
	coin = domain.NormalizeCoin(coin)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, t := range s.data {
		if domain.NormalizeCoin(t.Coin) == coin {
			txCopy := *t
			result = append(result, &txCopy)
		}
	}

	sortTransactions(result)
	return result, nil
}

// sortTransactions orders by timestamp ASC, ID ASC for determinism.
func sortTransactions(txs []*domain.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Timestamp.Equal(txs[j].Timestamp) {
			return txs[i].Timestamp.Before(txs[j].Timestamp)
		}
		return txs[i].ID < txs[j].ID
	})
}

// Verify interface compliance at compile time.
var _ storage.TransactionStore = (*TransactionStore)(nil)
