package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Term classifies the holding period of a disposed lot portion.
type Term string

// Term constants.
const (
	TermShort       Term = "SHORT"
	TermLong        Term = "LONG"
	TermCollectible Term = "COLLECTIBLE"
)

// LongTermHoldingDays is the minimum holding period, in whole days, for
// long-term treatment. 365 days held is still short; 366 is long.
const LongTermHoldingDays = 366

// CalendarDay truncates a timestamp to its UTC calendar date. Holding
// periods and wash-sale windows count calendar days, so the time of day
// must never shift a boundary.
func CalendarDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// RealizedGain is the gain or loss realized against one consumed lot
// portion of a disposal. These records feed the short/long totals.
type RealizedGain struct {
	DisposalID     string
	TxID           string
	Coin           string
	Source         string
	Date           time.Time
	AcquiredAt     time.Time
	Amount         decimal.Decimal
	Proceeds       decimal.Decimal
	CostBasis      decimal.Decimal
	Gain           decimal.Decimal // Proceeds - CostBasis, before wash adjustment
	DisallowedLoss decimal.Decimal // portion of a loss deferred by the wash-sale rule
	Term           Term            // rate bucket (collectible override applied)
	HoldingTerm    Term            // raw day-count classification
	BasisShortfall bool            // part of the disposal matched no lot
}

// AdjustedGain returns the reportable gain after wash-sale disallowance.
func (r *RealizedGain) AdjustedGain() decimal.Decimal {
	return r.Gain.Add(r.DisallowedLoss)
}

// DisposalEvent groups the per-lot realized gains of one disposal.
// Derived during classification, never persisted independently.
type DisposalEvent struct {
	DisposalID  string
	TxID        string
	Coin        string
	Source      string
	Date        time.Time
	Amount      decimal.Decimal
	Proceeds    decimal.Decimal
	CostBasis   decimal.Decimal
	Gain        decimal.Decimal
	MatchedLots []Consumption
	Records     []RealizedGain
	Shortfall   decimal.Decimal // quantity matched at zero basis
}

// WashSaleAdjustment records a proportional loss disallowance for one
// loss-making disposal. Invariant: 0 <= DisallowedLoss <= |OriginalLoss|.
type WashSaleAdjustment struct {
	DisposalID          string
	Coin                string
	Date                time.Time
	OriginalLoss        decimal.Decimal // negative
	ReplacementQuantity decimal.Decimal
	DisallowedLoss      decimal.Decimal // positive magnitude
	RepurchaseDates     []time.Time
	AdjustedLotID       LotID // lot that absorbed the deferred basis
	BasisDeferred       bool  // false when the replacement lot was already gone
}

// IncomeEntry records income recognized at receipt (staking, rewards).
type IncomeEntry struct {
	TxID   string
	Coin   string
	Source string
	Date   time.Time
	Amount decimal.Decimal
	Value  decimal.Decimal // fair market value in USD at receipt
}
