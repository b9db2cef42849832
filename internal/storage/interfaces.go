package storage

import (
	"context"

	"cryptobasis/internal/domain"
)

// TransactionStore provides access to normalized transaction storage.
// Transactions are the immutable input of every run: append-only, keyed
// by transaction ID.
type TransactionStore interface {
	// Insert adds a new transaction. Returns ErrDuplicateKey if the ID exists.
	Insert(ctx context.Context, t *domain.Transaction) error

	// InsertBulk adds multiple transactions atomically. Fails the entire
	// batch on any duplicate.
	InsertBulk(ctx context.Context, txs []*domain.Transaction) error

	// GetByID retrieves a transaction by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)

	// GetByYear retrieves all transactions timestamped within the given
	// calendar year (UTC), ordered by timestamp ASC.
	GetByYear(ctx context.Context, year int) ([]*domain.Transaction, error)

	// GetByCoin retrieves all transactions for a coin, ordered by timestamp ASC.
	GetByCoin(ctx context.Context, coin string) ([]*domain.Transaction, error)
}

// RealizedGainStore persists the per-lot gain records of a run. Records
// are append-only per run ID; a recomputation uses a fresh run ID.
type RealizedGainStore interface {
	// InsertBulk adds a run's records. Records within a run keep their
	// computation order.
	InsertBulk(ctx context.Context, runID string, gains []*domain.RealizedGain) error

	// GetByRunID retrieves all records of a run, ordered by disposal date ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.RealizedGain, error)

	// GetByDisposalID retrieves the records of one disposal within a run.
	GetByDisposalID(ctx context.Context, runID, disposalID string) ([]*domain.RealizedGain, error)
}

// WashSaleStore persists the wash-sale adjustment log of a run.
type WashSaleStore interface {
	// InsertBulk adds a run's adjustments.
	InsertBulk(ctx context.Context, runID string, adjs []*domain.WashSaleAdjustment) error

	// GetByRunID retrieves all adjustments of a run, ordered by disposal date ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.WashSaleAdjustment, error)
}

// CarryoverStore persists per-year loss carryforwards. Unlike the other
// stores this one is upsertable: recomputing a year replaces its
// carryover.
type CarryoverStore interface {
	// Upsert stores or replaces the carryover for its year.
	Upsert(ctx context.Context, c *domain.YearCarryover) error

	// GetByYear retrieves the carryover produced for year. Returns
	// ErrNotFound if the year has not been computed.
	GetByYear(ctx context.Context, year int) (*domain.YearCarryover, error)
}
