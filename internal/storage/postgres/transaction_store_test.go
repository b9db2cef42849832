package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptobasis/internal/domain"
	"cryptobasis/internal/storage"
)

func testTransaction(id string, at time.Time, coin string) *domain.Transaction {
	return &domain.Transaction{
		ID:           id,
		Timestamp:    at,
		Action:       domain.ActionBuy,
		Coin:         coin,
		Amount:       decimal.RequireFromString("0.5"),
		UnitPriceUSD: decimal.RequireFromString("30000.25"),
		Fee:          decimal.RequireFromString("0.0001"),
		FeeCoin:      coin,
		Source:       "wallet",
	}
}

func TestTransactionStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)
	ctx := context.Background()

	tx := testTransaction("tx-001", time.Date(2023, 3, 15, 10, 30, 0, 0, time.UTC), "BTC")
	require.NoError(t, store.Insert(ctx, tx))

	retrieved, err := store.GetByID(ctx, "tx-001")
	require.NoError(t, err)

	assert.Equal(t, tx.ID, retrieved.ID)
	assert.Equal(t, tx.Action, retrieved.Action)
	assert.Equal(t, "BTC", retrieved.Coin)
	assert.True(t, tx.Timestamp.Equal(retrieved.Timestamp))
	// Decimals must survive the round trip exactly.
	assert.True(t, tx.Amount.Equal(retrieved.Amount), "amount %s != %s", tx.Amount, retrieved.Amount)
	assert.True(t, tx.UnitPriceUSD.Equal(retrieved.UnitPriceUSD))
	assert.True(t, tx.Fee.Equal(retrieved.Fee))
}

func TestTransactionStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)
	ctx := context.Background()

	tx := testTransaction("tx-dup", time.Now().UTC(), "BTC")
	require.NoError(t, store.Insert(ctx, tx))

	err := store.Insert(ctx, tx)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTransactionStore_InsertBulkAtomic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testTransaction("tx-2", time.Now().UTC(), "BTC")))

	batch := []*domain.Transaction{
		testTransaction("tx-1", time.Now().UTC(), "BTC"),
		testTransaction("tx-2", time.Now().UTC(), "BTC"), // duplicate
	}
	err := store.InsertBulk(ctx, batch)
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	// The failed batch must leave no partial rows behind.
	_, err = store.GetByID(ctx, "tx-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTransactionStore_GetByYear(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.Transaction{
		testTransaction("b", time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC), "BTC"),
		testTransaction("a", time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), "ETH"),
		testTransaction("z", time.Date(2022, 12, 31, 23, 59, 59, 0, time.UTC), "BTC"),
	}))

	got, err := store.GetByYear(ctx, 2023)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestTransactionStore_GetByCoin(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.Transaction{
		testTransaction("a", time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), "btc"),
		testTransaction("b", time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), "ETH"),
	}))

	// Lookup normalizes the ticker the same way inserts do.
	got, err := store.GetByCoin(ctx, "BTC")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestTransactionStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)
	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
