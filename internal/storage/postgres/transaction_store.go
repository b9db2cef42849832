package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"cryptobasis/internal/domain"
	"cryptobasis/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

const insertTransactionQuery = `
	INSERT INTO transactions (
		id, ts, action, coin, amount, unit_price_usd, fee, fee_coin, source, destination, batch_id
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

const selectTransactionColumns = `
	id, ts, action, coin, amount, unit_price_usd, fee, fee_coin, source, destination, batch_id
`

// Insert adds a new transaction. Returns ErrDuplicateKey if the ID exists.
func (s *TransactionStore) Insert(ctx context.Context, t *domain.Transaction) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertTransactionQuery,
		t.ID,
		t.Timestamp.UTC(),
		string(t.Action),
		domain.NormalizeCoin(t.Coin),
		t.Amount,
		t.UnitPriceUSD,
		t.Fee,
		t.FeeCoin,
		t.Source,
		t.Destination,
		t.BatchID,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// InsertBulk adds multiple transactions atomically. Fails the entire
// batch on any duplicate.
func (s *TransactionStore) InsertBulk(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, t := range txs {
		if t == nil || t.ID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertTransactionQuery,
			t.ID,
			t.Timestamp.UTC(),
			string(t.Action),
			domain.NormalizeCoin(t.Coin),
			t.Amount,
			t.UnitPriceUSD,
			t.Fee,
			t.FeeCoin,
			t.Source,
			t.Destination,
			t.BatchID,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transactions: %w", err)
	}
	return nil
}

// GetByID retrieves a transaction by its ID. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + ` FROM transactions WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	t, err := scanTransaction(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return t, nil
}

// GetByYear retrieves all transactions within the calendar year (UTC),
// ordered by timestamp ASC.
func (s *TransactionStore) GetByYear(ctx context.Context, year int) ([]*domain.Transaction, error) {
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	query := `
		SELECT ` + selectTransactionColumns + `
		FROM transactions
		WHERE ts >= $1 AND ts < $2
		ORDER BY ts ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get transactions by year: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetByCoin retrieves all transactions for a coin, ordered by timestamp ASC.
func (s *TransactionStore) GetByCoin(ctx context.Context, coin string) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + selectTransactionColumns + `
		FROM transactions
		WHERE coin = $1
		ORDER BY ts ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, domain.NormalizeCoin(coin))
	if err != nil {
		return nil, fmt.Errorf("get transactions by coin: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// scanTransaction scans a single row into a Transaction.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var actionStr string

	err := row.Scan(
		&t.ID,
		&t.Timestamp,
		&actionStr,
		&t.Coin,
		&t.Amount,
		&t.UnitPriceUSD,
		&t.Fee,
		&t.FeeCoin,
		&t.Source,
		&t.Destination,
		&t.BatchID,
	)
	if err != nil {
		return nil, err
	}

	t.Action = domain.Action(actionStr)
	t.Timestamp = t.Timestamp.UTC()
	return &t, nil
}

// scanTransactions scans multiple rows into a slice of Transaction.
func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txs = append(txs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}

	return txs, nil
}
