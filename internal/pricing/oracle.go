// Package pricing resolves historical USD prices for transactions that
// arrive without an explicit unit price. The engine consults an Oracle
// before replay only, never mid-ledger-mutation.
package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"cryptobasis/internal/domain"
)

// ErrPriceNotFound is returned when no price exists for (symbol, day).
// The engine treats it as "basis unknown" and flags the row; it never
// retries.
var ErrPriceNotFound = errors.New("price not found")

// Oracle provides a daily closing price in USD.
type Oracle interface {
	GetPrice(ctx context.Context, symbol string, day time.Time) (decimal.Decimal, error)
}

// priceKey identifies one cached daily quote.
type priceKey struct {
	symbol string
	day    string
}

// Fixed is an in-memory Oracle backed by a static table. Used in tests
// and for fixture runs.
type Fixed struct {
	prices map[priceKey]decimal.Decimal
}

// NewFixed creates an empty fixed oracle.
func NewFixed() *Fixed {
	return &Fixed{prices: make(map[priceKey]decimal.Decimal)}
}

// Set records the price for (symbol, day).
func (f *Fixed) Set(symbol string, day time.Time, price decimal.Decimal) {
	f.prices[keyFor(symbol, day)] = price
}

// GetPrice implements Oracle.
func (f *Fixed) GetPrice(_ context.Context, symbol string, day time.Time) (decimal.Decimal, error) {
	p, ok := f.prices[keyFor(symbol, day)]
	if !ok {
		return decimal.Decimal{}, ErrPriceNotFound
	}
	return p, nil
}

func keyFor(symbol string, day time.Time) priceKey {
	return priceKey{symbol: domain.NormalizeCoin(symbol), day: day.UTC().Format("2006-01-02")}
}

var _ Oracle = (*Fixed)(nil)
