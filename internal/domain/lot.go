package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LotID identifies a lot within one ledger's arena.
type LotID int

// Lot is a specific quantity of a coin acquired at a specific date and
// unit cost, tracked until fully disposed. A lot belongs to exactly one
// (coin, source) bucket; TRANSFER reassigns the bucket while preserving
// AcquiredAt and UnitCost.
type Lot struct {
	ID            LotID
	Coin          string
	Source        string
	Remaining     decimal.Decimal
	UnitCost      decimal.Decimal // USD per unit
	AcquiredAt    time.Time
	OriginTxID    string
	MigrationSeed bool // seeded from opening inventory, not replayed history
}

// Consumption is one (lot, amount) pair drawn by a consume call.
type Consumption struct {
	LotID      LotID
	Amount     decimal.Decimal
	UnitCost   decimal.Decimal
	AcquiredAt time.Time
}

// CostBasis returns the USD basis of the consumed portion.
func (c Consumption) CostBasis() decimal.Decimal {
	return c.Amount.Mul(c.UnitCost)
}
