package postgres

import (
	"context"
	"fmt"
	"time"

	"cryptobasis/internal/domain"
	"cryptobasis/internal/storage"
)

// WashSaleStore implements storage.WashSaleStore using PostgreSQL.
type WashSaleStore struct {
	pool *Pool
}

// NewWashSaleStore creates a new WashSaleStore.
func NewWashSaleStore(pool *Pool) *WashSaleStore {
	return &WashSaleStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WashSaleStore = (*WashSaleStore)(nil)

// InsertBulk adds a run's adjustments atomically.
func (s *WashSaleStore) InsertBulk(ctx context.Context, runID string, adjs []*domain.WashSaleAdjustment) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(adjs) == 0 {
		return nil
	}

	query := `
		INSERT INTO wash_sale_adjustments (
			run_id, disposal_id, coin, disposed_at, original_loss, replacement_quantity,
			disallowed_loss, repurchase_dates, adjusted_lot_id, basis_deferred
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, a := range adjs {
		if a == nil || a.DisposalID == "" {
			return storage.ErrInvalidInput
		}
		dates := make([]time.Time, len(a.RepurchaseDates))
		for i, d := range a.RepurchaseDates {
			dates[i] = d.UTC()
		}
		_, err := tx.Exec(ctx, query,
			runID,
			a.DisposalID,
			a.Coin,
			a.Date.UTC(),
			a.OriginalLoss,
			a.ReplacementQuantity,
			a.DisallowedLoss,
			dates,
			int(a.AdjustedLotID),
			a.BasisDeferred,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert wash sale adjustment: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit wash sale adjustments: %w", err)
	}
	return nil
}

// GetByRunID retrieves all adjustments of a run, ordered by disposal date ASC.
func (s *WashSaleStore) GetByRunID(ctx context.Context, runID string) ([]*domain.WashSaleAdjustment, error) {
	query := `
		SELECT disposal_id, coin, disposed_at, original_loss, replacement_quantity,
		       disallowed_loss, repurchase_dates, adjusted_lot_id, basis_deferred
		FROM wash_sale_adjustments
		WHERE run_id = $1
		ORDER BY disposed_at ASC, disposal_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get wash sale adjustments by run: %w", err)
	}
	defer rows.Close()

	var adjs []*domain.WashSaleAdjustment
	for rows.Next() {
		var a domain.WashSaleAdjustment
		var lotID int
		var dates []time.Time

		err := rows.Scan(
			&a.DisposalID,
			&a.Coin,
			&a.Date,
			&a.OriginalLoss,
			&a.ReplacementQuantity,
			&a.DisallowedLoss,
			&dates,
			&lotID,
			&a.BasisDeferred,
		)
		if err != nil {
			return nil, fmt.Errorf("scan wash sale row: %w", err)
		}

		a.Date = a.Date.UTC()
		a.AdjustedLotID = domain.LotID(lotID)
		a.RepurchaseDates = make([]time.Time, len(dates))
		for i, d := range dates {
			a.RepurchaseDates[i] = d.UTC()
		}
		adjs = append(adjs, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wash sale rows: %w", err)
	}

	return adjs, nil
}
