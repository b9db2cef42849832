package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report is the rendered view of one tax-year computation.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	Year        int
	LotMethod   string

	// Totals (after wash-sale adjustment)
	ShortTermTotal    decimal.Decimal
	LongTermTotal     decimal.Decimal
	CollectibleTotal  decimal.Decimal
	IncomeTotal       decimal.Decimal
	NetAfterCarryover decimal.Decimal

	// Loss carryforwards into the next year
	NextShortTermCarryforward decimal.Decimal
	NextLongTermCarryforward  decimal.Decimal

	// Per-coin breakdown (sorted by coin)
	CoinBreakdown []CoinRow

	// Wash-sale adjustments (sorted by disposal date)
	WashSales []WashSaleRow

	// Row-level problems surfaced during the run
	Diagnostics []string
}

// CoinRow aggregates one coin's disposals for the year.
type CoinRow struct {
	Coin           string
	Disposals      int
	Proceeds       decimal.Decimal
	CostBasis      decimal.Decimal
	Gain           decimal.Decimal
	DisallowedLoss decimal.Decimal
}

// WashSaleRow is one wash-sale adjustment in report form.
type WashSaleRow struct {
	DisposalID          string
	Coin                string
	Date                time.Time
	OriginalLoss        decimal.Decimal
	ReplacementQuantity decimal.Decimal
	DisallowedLoss      decimal.Decimal
	BasisDeferred       bool
}
