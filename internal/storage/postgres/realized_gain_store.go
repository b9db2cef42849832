package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"cryptobasis/internal/domain"
	"cryptobasis/internal/storage"
)

// RealizedGainStore implements storage.RealizedGainStore using PostgreSQL.
type RealizedGainStore struct {
	pool *Pool
}

// NewRealizedGainStore creates a new RealizedGainStore.
func NewRealizedGainStore(pool *Pool) *RealizedGainStore {
	return &RealizedGainStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RealizedGainStore = (*RealizedGainStore)(nil)

const selectGainColumns = `
	disposal_id, tx_id, coin, source, disposed_at, acquired_at, amount,
	proceeds, cost_basis, gain, disallowed_loss, term, holding_term, basis_shortfall
`

// InsertBulk adds a run's records atomically.
func (s *RealizedGainStore) InsertBulk(ctx context.Context, runID string, gains []*domain.RealizedGain) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(gains) == 0 {
		return nil
	}

	query := `
		INSERT INTO realized_gains (
			run_id, seq, disposal_id, tx_id, coin, source, disposed_at, acquired_at,
			amount, proceeds, cost_basis, gain, disallowed_loss, term, holding_term, basis_shortfall
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, g := range gains {
		if g == nil || g.DisposalID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			runID,
			i,
			g.DisposalID,
			g.TxID,
			g.Coin,
			g.Source,
			g.Date.UTC(),
			g.AcquiredAt.UTC(),
			g.Amount,
			g.Proceeds,
			g.CostBasis,
			g.Gain,
			g.DisallowedLoss,
			string(g.Term),
			string(g.HoldingTerm),
			g.BasisShortfall,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert realized gain: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit realized gains: %w", err)
	}
	return nil
}

// GetByRunID retrieves all records of a run, ordered by disposal date ASC.
func (s *RealizedGainStore) GetByRunID(ctx context.Context, runID string) ([]*domain.RealizedGain, error) {
	query := `
		SELECT ` + selectGainColumns + `
		FROM realized_gains
		WHERE run_id = $1
		ORDER BY disposed_at ASC, seq ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get realized gains by run: %w", err)
	}
	defer rows.Close()

	return scanGains(rows)
}

// GetByDisposalID retrieves the records of one disposal within a run.
func (s *RealizedGainStore) GetByDisposalID(ctx context.Context, runID, disposalID string) ([]*domain.RealizedGain, error) {
	query := `
		SELECT ` + selectGainColumns + `
		FROM realized_gains
		WHERE run_id = $1 AND disposal_id = $2
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, disposalID)
	if err != nil {
		return nil, fmt.Errorf("get realized gains by disposal: %w", err)
	}
	defer rows.Close()

	return scanGains(rows)
}

// scanGains scans multiple rows into a slice of RealizedGain.
func scanGains(rows pgx.Rows) ([]*domain.RealizedGain, error) {
	var gains []*domain.RealizedGain

	for rows.Next() {
		var g domain.RealizedGain
		var termStr, holdingStr string

		err := rows.Scan(
			&g.DisposalID,
			&g.TxID,
			&g.Coin,
			&g.Source,
			&g.Date,
			&g.AcquiredAt,
			&g.Amount,
			&g.Proceeds,
			&g.CostBasis,
			&g.Gain,
			&g.DisallowedLoss,
			&termStr,
			&holdingStr,
			&g.BasisShortfall,
		)
		if err != nil {
			return nil, fmt.Errorf("scan realized gain row: %w", err)
		}

		g.Term = domain.Term(termStr)
		g.HoldingTerm = domain.Term(holdingStr)
		g.Date = g.Date.UTC()
		g.AcquiredAt = g.AcquiredAt.UTC()
		gains = append(gains, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate realized gain rows: %w", err)
	}

	return gains, nil
}
