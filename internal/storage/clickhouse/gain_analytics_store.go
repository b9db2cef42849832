package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cryptobasis/internal/domain"
)

// GainAnalyticsStore writes realized-gain records into ClickHouse for
// cross-year analytical queries. The MergeTree table is append-only and
// not the system of record; Postgres is.
type GainAnalyticsStore struct {
	conn *Conn
}

// NewGainAnalyticsStore creates a new GainAnalyticsStore.
func NewGainAnalyticsStore(conn *Conn) *GainAnalyticsStore {
	return &GainAnalyticsStore{conn: conn}
}

// CoinYearSummary aggregates one coin's realized results for a year.
type CoinYearSummary struct {
	Coin           string
	Year           int
	Disposals      uint64
	TotalProceeds  decimal.Decimal
	TotalCostBasis decimal.Decimal
	TotalGain      decimal.Decimal
	DisallowedLoss decimal.Decimal
}

// InsertBulk appends a run's records using a prepared batch.
func (s *GainAnalyticsStore) InsertBulk(ctx context.Context, runID string, gains []*domain.RealizedGain) error {
	if len(gains) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO realized_gains (
			run_id, disposal_id, tx_id, coin, source, disposed_at, acquired_at,
			amount, proceeds, cost_basis, gain, disallowed_loss, term, holding_term
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare realized gains batch: %w", err)
	}

	for _, g := range gains {
		err := batch.Append(
			runID,
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
		)
		if err != nil {
			return fmt.Errorf("append realized gain: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send realized gains batch: %w", err)
	}
	return nil
}

// SummarizeYear aggregates a run's records per coin for one year.
func (s *GainAnalyticsStore) SummarizeYear(ctx context.Context, runID string, year int) ([]*CoinYearSummary, error) {
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	query := `
		SELECT
			coin,
			count() AS disposals,
			sum(proceeds) AS total_proceeds,
			sum(cost_basis) AS total_cost_basis,
			sum(gain) AS total_gain,
			sum(disallowed_loss) AS total_disallowed
		FROM realized_gains
		WHERE run_id = ? AND disposed_at >= ? AND disposed_at < ?
		GROUP BY coin
		ORDER BY coin ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, start, end)
	if err != nil {
		return nil, fmt.Errorf("summarize year: %w", err)
	}
	defer rows.Close()

	var result []*CoinYearSummary
	for rows.Next() {
		summary := &CoinYearSummary{Year: year}
		err := rows.Scan(
			&summary.Coin,
			&summary.Disposals,
			&summary.TotalProceeds,
			&summary.TotalCostBasis,
			&summary.TotalGain,
			&summary.DisallowedLoss,
		)
		if err != nil {
			return nil, fmt.Errorf("scan year summary row: %w", err)
		}
		result = append(result, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate year summary rows: %w", err)
	}

	return result, nil
}
