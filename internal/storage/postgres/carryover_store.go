package postgres

import (
	"context"
	"fmt"

	"cryptobasis/internal/domain"
	"cryptobasis/internal/storage"
)

// CarryoverStore implements storage.CarryoverStore using PostgreSQL.
type CarryoverStore struct {
	pool *Pool
}

// NewCarryoverStore creates a new CarryoverStore.
func NewCarryoverStore(pool *Pool) *CarryoverStore {
	return &CarryoverStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CarryoverStore = (*CarryoverStore)(nil)

// Upsert stores or replaces the carryover for its year.
func (s *CarryoverStore) Upsert(ctx context.Context, c *domain.YearCarryover) error {
	if c == nil || c.Year <= 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO year_carryovers (year, short_term_loss, long_term_loss)
		VALUES ($1, $2, $3)
		ON CONFLICT (year) DO UPDATE SET
			short_term_loss = EXCLUDED.short_term_loss,
			long_term_loss = EXCLUDED.long_term_loss,
			updated_at = now()
	`

	if _, err := s.pool.Exec(ctx, query, c.Year, c.ShortTermLossCarryforward, c.LongTermLossCarryforward); err != nil {
		return fmt.Errorf("upsert carryover: %w", err)
	}
	return nil
}

// GetByYear retrieves the carryover produced for year.
func (s *CarryoverStore) GetByYear(ctx context.Context, year int) (*domain.YearCarryover, error) {
	query := `
		SELECT year, short_term_loss, long_term_loss
		FROM year_carryovers
		WHERE year = $1
	`

	var c domain.YearCarryover
	row := s.pool.QueryRow(ctx, query, year)
	if err := row.Scan(&c.Year, &c.ShortTermLossCarryforward, &c.LongTermLossCarryforward); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get carryover by year: %w", err)
	}
	return &c, nil
}
