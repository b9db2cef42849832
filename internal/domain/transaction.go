package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Action represents a ledger transaction type.
type Action string

// Action constants.
const (
	ActionBuy        Action = "BUY"
	ActionSell       Action = "SELL"
	ActionIncome     Action = "INCOME"
	ActionTransfer   Action = "TRANSFER"
	ActionSwap       Action = "SWAP"
	ActionSpend      Action = "SPEND"
	ActionDeposit    Action = "DEPOSIT"
	ActionWithdrawal Action = "WITHDRAWAL"
	ActionGiftIn     Action = "GIFT_IN"
	ActionLoss       Action = "LOSS"
)

// ParseAction normalizes a raw action string into an Action.
// Unrecognized values are returned as-is with ok=false so the caller
// can route them to the diagnostics path instead of failing the run.
func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	switch a {
	case ActionBuy, ActionSell, ActionIncome, ActionTransfer, ActionSwap,
		ActionSpend, ActionDeposit, ActionWithdrawal, ActionGiftIn, ActionLoss:
		return a, true
	}
	return a, false
}

// Transaction is an immutable input record for one ledger event.
type Transaction struct {
	ID           string
	Timestamp    time.Time
	Action       Action
	Coin         string // case-normalized symbol
	Amount       decimal.Decimal
	UnitPriceUSD decimal.Decimal
	Fee          decimal.Decimal
	FeeCoin      string // defaults to Coin when empty
	Source       string // custodial or wallet identifier
	Destination  string // TRANSFER target source
	BatchID      string
}

// NormalizeCoin returns the canonical symbol form used for bucket keys.
func NormalizeCoin(coin string) string {
	return strings.ToUpper(strings.TrimSpace(coin))
}

// EffectiveFeeCoin returns FeeCoin, defaulting to the primary coin.
func (t *Transaction) EffectiveFeeCoin() string {
	if t.FeeCoin == "" {
		return t.Coin
	}
	return t.FeeCoin
}

// Validate checks the row-level invariants. A failing row is skipped with
// a diagnostic; it never aborts the batch.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("empty transaction id")
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("unparseable or missing timestamp")
	}
	if NormalizeCoin(t.Coin) == "" {
		return fmt.Errorf("empty coin symbol")
	}
	if t.Amount.IsNegative() || t.Amount.IsZero() {
		return fmt.Errorf("non-positive amount %s", t.Amount)
	}
	if t.UnitPriceUSD.IsNegative() {
		return fmt.Errorf("negative unit price %s", t.UnitPriceUSD)
	}
	if t.Fee.IsNegative() {
		return fmt.Errorf("negative fee %s", t.Fee)
	}
	return nil
}
