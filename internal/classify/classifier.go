// Package classify turns disposal transactions into realized-gain records:
// proceeds, matched cost basis, and holding-period term per consumed lot.
package classify

import (
	"time"

	"github.com/shopspring/decimal"

	"cryptobasis/internal/domain"
	"cryptobasis/internal/ledger"
)

// Classifier computes realized gains for SELL/SPEND/SWAP-out events.
type Classifier struct {
	ledger *ledger.Ledger
	cfg    domain.ComplianceConfig
}

// New creates a Classifier over the given ledger and ruleset.
func New(l *ledger.Ledger, cfg domain.ComplianceConfig) *Classifier {
	return &Classifier{ledger: l, cfg: cfg}
}

// DisposeInput describes one disposal to classify. FeeUSD is the USD
// value of any fee paid in the disposal's own proceeds currency; a fee
// paid in a different coin is classified as its own disposal by the
// caller and must not appear here.
type DisposeInput struct {
	DisposalID   string
	TxID         string
	Coin         string
	Source       string
	Amount       decimal.Decimal
	UnitPriceUSD decimal.Decimal
	FeeUSD       decimal.Decimal
	Date         time.Time
}

// Dispose matches the disposal quantity against open lots and emits the
// per-lot gain breakdown. An unmatched tail is recognized at zero basis
// and flagged, never raised as an error.
func (c *Classifier) Dispose(in DisposeInput) *domain.DisposalEvent {
	proceeds := in.Amount.Mul(in.UnitPriceUSD).Sub(in.FeeUSD)
	isolated := c.cfg.IsBrokerSource(in.Source)
	res := c.ledger.Consume(in.Coin, in.Source, in.Amount, in.Date, c.cfg.LotMethod, isolated)

	ev := &domain.DisposalEvent{
		DisposalID:  in.DisposalID,
		TxID:        in.TxID,
		Coin:        domain.NormalizeCoin(in.Coin),
		Source:      in.Source,
		Date:        in.Date,
		Amount:      in.Amount,
		Proceeds:    proceeds,
		CostBasis:   res.CostBasis(),
		MatchedLots: res.Consumed,
		Shortfall:   res.Shortfall,
	}
	ev.Gain = ev.Proceeds.Sub(ev.CostBasis)

	for _, m := range res.Consumed {
		portion := allocate(proceeds, m.Amount, in.Amount)
		basis := m.CostBasis()
		holding := c.holdingTerm(m.AcquiredAt, in.Date)
		ev.Records = append(ev.Records, domain.RealizedGain{
			DisposalID:  in.DisposalID,
			TxID:        in.TxID,
			Coin:        ev.Coin,
			Source:      in.Source,
			Date:        in.Date,
			AcquiredAt:  m.AcquiredAt,
			Amount:      m.Amount,
			Proceeds:    portion,
			CostBasis:   basis,
			Gain:        portion.Sub(basis),
			Term:        c.rateBucket(ev.Coin, holding),
			HoldingTerm: holding,
		})
	}
	if res.Shortfall.IsPositive() {
		portion := allocate(proceeds, res.Shortfall, in.Amount)
		// No acquisition date is known for the unmatched tail; it is
		// treated as short-term and surfaced for manual review.
		ev.Records = append(ev.Records, domain.RealizedGain{
			DisposalID:     in.DisposalID,
			TxID:           in.TxID,
			Coin:           ev.Coin,
			Source:         in.Source,
			Date:           in.Date,
			Amount:         res.Shortfall,
			Proceeds:       portion,
			CostBasis:      decimal.Zero,
			Gain:           portion,
			Term:           c.rateBucket(ev.Coin, domain.TermShort),
			HoldingTerm:    domain.TermShort,
			BasisShortfall: true,
		})
	}
	return ev
}

// allocate splits total proportionally: total * part / whole. Multiply
// before divide so exact quantities stay exact.
func allocate(total, part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return total.Mul(part).Div(whole)
}

// holdingTerm classifies by calendar days held, not elapsed duration.
// Time of day never moves the boundary: 365 days is still short, 366
// and beyond is long.
func (c *Classifier) holdingTerm(acquired, disposed time.Time) domain.Term {
	days := int(domain.CalendarDay(disposed).Sub(domain.CalendarDay(acquired)) / (24 * time.Hour))
	if days >= domain.LongTermHoldingDays {
		return domain.TermLong
	}
	return domain.TermShort
}

// rateBucket applies the collectible override. The day-count term is
// still recorded separately on the realized-gain record.
func (c *Classifier) rateBucket(coin string, holding domain.Term) domain.Term {
	if c.cfg.IsCollectible(coin) {
		return domain.TermCollectible
	}
	return holding
}
