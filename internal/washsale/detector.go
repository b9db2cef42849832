// Package washsale implements the IRS-style wash-sale rule: losses on a
// disposal are proportionally disallowed when substantially identical
// units were acquired within 30 days before or after the disposal, and
// the disallowed amount is deferred into the replacement lot's basis.
package washsale

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"cryptobasis/internal/domain"
	"cryptobasis/internal/ledger"
)

// WindowDays is the one-sided replacement window. A purchase exactly 30
// days before or after the disposal is within the window (inclusive);
// 31 days is not.
const WindowDays = 30

// Buy is a replacement-candidate purchase event recorded during replay.
// Only genuine acquisitions qualify (BUY and taxable LP re-acquisitions);
// transfers and income receipts are not purchases.
type Buy struct {
	LotID  domain.LotID
	TxID   string
	Coin   string
	Amount decimal.Decimal
	Date   time.Time
}

// BasisAdjuster receives the push-forward basis adjustment. Satisfied by
// *ledger.Ledger.
type BasisAdjuster interface {
	AdjustBasis(id domain.LotID, addUSD decimal.Decimal) error
}

// Range is the time span the input transactions cover. Windows reaching
// outside it are treated as having incomplete replacement data.
type Range struct {
	Start time.Time
	End   time.Time
}

// Detector scans a run's disposals for wash sales.
type Detector struct {
	coverage Range
}

// NewDetector creates a Detector for the given data coverage range.
func NewDetector(coverage Range) *Detector {
	return &Detector{coverage: coverage}
}

// Detect walks loss-making disposals in chronological order, claims
// replacement quantity from in-window buys (each bought unit can back at
// most one disposal), disallows the proportional share of each loss, and
// defers the disallowed amount into the next qualifying replacement lot
// via adj. Disposal records are mutated in place to carry their
// DisallowedLoss share.
func (d *Detector) Detect(disposals []*domain.DisposalEvent, buys []Buy, adj BasisAdjuster) ([]domain.WashSaleAdjustment, []domain.Diagnostic) {
	var adjustments []domain.WashSaleAdjustment
	var diags []domain.Diagnostic

	ordered := make([]*domain.DisposalEvent, len(disposals))
	copy(ordered, disposals)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Date.Before(ordered[j].Date) })

	// Shares that were themselves disposed never count as replacements.
	capacity := make(map[domain.LotID]decimal.Decimal, len(buys))
	for _, b := range buys {
		capacity[b.LotID] = b.Amount
	}
	for _, ev := range ordered {
		for _, m := range ev.MatchedLots {
			if avail, ok := capacity[m.LotID]; ok {
				capacity[m.LotID] = decimal.Max(avail.Sub(m.Amount), decimal.Zero)
			}
		}
	}

	for _, ev := range ordered {
		if !ev.Gain.IsNegative() {
			continue
		}

		// Window bounds are calendar days; the clock time of either the
		// disposal or a buy never moves a unit across the boundary.
		evDay := domain.CalendarDay(ev.Date)
		windowStart := evDay.AddDate(0, 0, -WindowDays)
		windowEnd := evDay.AddDate(0, 0, WindowDays)
		truncated := windowStart.Before(d.coverage.Start) || windowEnd.After(d.coverage.End)

		claimed := decimal.Zero
		var repurchases []time.Time
		var claimedLots []domain.LotID
		for i := range buys {
			b := &buys[i]
			bDay := domain.CalendarDay(b.Date)
			if b.Coin != ev.Coin || bDay.Before(windowStart) || bDay.After(windowEnd) {
				continue
			}
			avail := capacity[b.LotID]
			if !avail.IsPositive() {
				continue
			}
			take := decimal.Min(avail, ev.Amount.Sub(claimed))
			if !take.IsPositive() {
				break
			}
			capacity[b.LotID] = avail.Sub(take)
			claimed = claimed.Add(take)
			repurchases = append(repurchases, b.Date)
			claimedLots = append(claimedLots, b.LotID)
		}

		if claimed.IsZero() {
			if truncated {
				// Replacement data may exist outside the covered range;
				// degrade to no adjustment and flag it.
				diags = append(diags, domain.Diagnostic{
					Code: domain.DiagWashWindowTruncated,
					TxID: ev.TxID,
					Coin: ev.Coin,
					Message: fmt.Sprintf("wash-sale window [%s, %s] leaves the covered range; no adjustment applied",
						windowStart.Format("2006-01-02"), windowEnd.Format("2006-01-02")),
				})
			}
			continue
		}
		if truncated {
			diags = append(diags, domain.Diagnostic{
				Code: domain.DiagWashWindowTruncated,
				TxID: ev.TxID,
				Coin: ev.Coin,
				Message: "wash-sale window leaves the covered range; adjustment uses in-range purchases only",
			})
		}

		// Disallowance is proportional to the replaced fraction, never
		// all-or-nothing.
		proportion := decimal.Min(claimed.Div(ev.Amount), decimal.NewFromInt(1))
		disallowed := ev.Gain.Abs().Mul(proportion)

		adjustment := domain.WashSaleAdjustment{
			DisposalID:          ev.DisposalID,
			Coin:                ev.Coin,
			Date:                ev.Date,
			OriginalLoss:        ev.Gain,
			ReplacementQuantity: claimed,
			DisallowedLoss:      disallowed,
			RepurchaseDates:     repurchases,
		}

		target, err := pushForward(claimedLots, disallowed, adj)
		if err != nil {
			adjustment.BasisDeferred = false
			diags = append(diags, domain.Diagnostic{
				Code:    domain.DiagWashBasisUndeferred,
				TxID:    ev.TxID,
				Coin:    ev.Coin,
				Message: "replacement lots already consumed; disallowed loss could not be deferred into basis",
			})
		} else {
			adjustment.BasisDeferred = true
			adjustment.AdjustedLotID = target
		}

		distribute(ev, disallowed)
		adjustments = append(adjustments, adjustment)
	}

	return adjustments, diags
}

// pushForward adds the disallowed loss to the basis of the first claimed
// replacement lot that still has remaining quantity.
func pushForward(lots []domain.LotID, disallowed decimal.Decimal, adj BasisAdjuster) (domain.LotID, error) {
	for _, id := range lots {
		err := adj.AdjustBasis(id, disallowed)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ledger.ErrLotExhausted) {
			return 0, err
		}
	}
	return 0, ledger.ErrLotExhausted
}

// distribute spreads the disallowed amount across the disposal's
// loss-making records, proportional to each record's share of the loss.
func distribute(ev *domain.DisposalEvent, disallowed decimal.Decimal) {
	totalLoss := decimal.Zero
	for _, r := range ev.Records {
		if r.Gain.IsNegative() {
			totalLoss = totalLoss.Add(r.Gain.Abs())
		}
	}
	if totalLoss.IsZero() {
		return
	}
	for i := range ev.Records {
		r := &ev.Records[i]
		if r.Gain.IsNegative() {
			r.DisallowedLoss = disallowed.Mul(r.Gain.Abs()).Div(totalLoss)
		}
	}
}
