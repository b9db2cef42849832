// Package ledger tracks open acquisition lots per (coin, source) bucket
// and matches disposals against them under a configurable selection method.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"cryptobasis/internal/domain"
)

// Ledger errors.
var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrUnknownLot    = errors.New("unknown lot id")
	ErrLotExhausted  = errors.New("lot has no remaining amount")
)

// bucketKey indexes open lots by coin and custodial source.
type bucketKey struct {
	coin   string
	source string
}

// Ledger holds an arena of lots plus a (coin, source) index into it.
// Lots are referenced by LotID (arena position), so partial consumption
// mutates in place without copying buckets around.
type Ledger struct {
	lots  []domain.Lot
	index map[bucketKey][]domain.LotID
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{index: make(map[bucketKey][]domain.LotID)}
}

// ConsumeResult is the cost-basis breakdown of one consume call.
// Shortfall is the requested quantity that matched no lot; the caller
// treats it as zero-basis rather than failing the run.
type ConsumeResult struct {
	Consumed  []domain.Consumption
	Shortfall decimal.Decimal
}

// CostBasis returns the total matched USD basis.
func (r ConsumeResult) CostBasis() decimal.Decimal {
	total := decimal.Zero
	for _, c := range r.Consumed {
		total = total.Add(c.CostBasis())
	}
	return total
}

// Acquire appends a new lot to the (coin, source) bucket.
func (l *Ledger) Acquire(coin, source string, amount, unitCost decimal.Decimal, acquiredAt time.Time, originTxID string) (domain.LotID, error) {
	return l.acquire(coin, source, amount, unitCost, acquiredAt, originTxID, false)
}

// AcquireSeed appends a migration-seeded opening lot. Seeded lots are
// consumed before replayed history within the same bucket.
func (l *Ledger) AcquireSeed(coin, source string, amount, unitCost decimal.Decimal, acquiredAt time.Time) (domain.LotID, error) {
	return l.acquire(coin, source, amount, unitCost, acquiredAt, "", true)
}

func (l *Ledger) acquire(coin, source string, amount, unitCost decimal.Decimal, acquiredAt time.Time, originTxID string, seed bool) (domain.LotID, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("acquire %s/%s: %w", coin, source, ErrInvalidAmount)
	}
	coin = domain.NormalizeCoin(coin)
	id := domain.LotID(len(l.lots))
	l.lots = append(l.lots, domain.Lot{
		ID:            id,
		Coin:          coin,
		Source:        source,
		Remaining:     amount,
		UnitCost:      unitCost,
		AcquiredAt:    acquiredAt,
		OriginTxID:    originTxID,
		MigrationSeed: seed,
	})
	key := bucketKey{coin, source}
	l.index[key] = append(l.index[key], id)
	return id, nil
}

// Consume draws amount from open lots of coin as of asOfDate, selected by
// method. When isolated is true only the named source's bucket is
// eligible; otherwise lots of the same coin held under other sources may
// satisfy the tail. The last matched lot is partially consumed (split)
// when it exceeds the outstanding quantity. Lots acquired after asOfDate
// are never eligible.
func (l *Ledger) Consume(coin, source string, amount decimal.Decimal, asOfDate time.Time, method domain.LotMethod, isolated bool) ConsumeResult {
	coin = domain.NormalizeCoin(coin)
	candidates := l.selectable(coin, source, asOfDate, method, isolated)

	var result ConsumeResult
	outstanding := amount
	for _, id := range candidates {
		if !outstanding.IsPositive() {
			break
		}
		lot := &l.lots[id]
		take := decimal.Min(lot.Remaining, outstanding)
		result.Consumed = append(result.Consumed, domain.Consumption{
			LotID:      id,
			Amount:     take,
			UnitCost:   lot.UnitCost,
			AcquiredAt: lot.AcquiredAt,
		})
		lot.Remaining = lot.Remaining.Sub(take)
		outstanding = outstanding.Sub(take)
		if lot.Remaining.IsZero() {
			l.drop(id)
		}
	}
	result.Shortfall = outstanding
	return result
}

// Transfer consumes amount from (coin, fromSource) and re-acquires the
// identical lots under toSource, preserving unit cost and acquisition
// date. This is the mechanism that carries holding period and basis
// across wallets. The unmatched tail, if any, is re-acquired at zero
// basis dated asOfDate so quantity tracking survives; the caller flags it.
func (l *Ledger) Transfer(coin, fromSource, toSource string, amount decimal.Decimal, asOfDate time.Time, method domain.LotMethod, originTxID string) (ConsumeResult, error) {
	if !amount.IsPositive() {
		return ConsumeResult{}, fmt.Errorf("transfer %s: %w", coin, ErrInvalidAmount)
	}
	// A transfer only ever moves the sending wallet's own lots.
	result := l.Consume(coin, fromSource, amount, asOfDate, method, true)
	for _, c := range result.Consumed {
		origin := l.lots[c.LotID].OriginTxID
		seed := l.lots[c.LotID].MigrationSeed
		if _, err := l.acquire(coin, toSource, c.Amount, c.UnitCost, c.AcquiredAt, origin, seed); err != nil {
			return result, err
		}
	}
	if result.Shortfall.IsPositive() {
		if _, err := l.acquire(coin, toSource, result.Shortfall, decimal.Zero, asOfDate, originTxID, false); err != nil {
			return result, err
		}
	}
	return result, nil
}

// Remaining sums the open quantity in the (coin, source) bucket.
func (l *Ledger) Remaining(coin, source string) decimal.Decimal {
	total := decimal.Zero
	for _, id := range l.index[bucketKey{domain.NormalizeCoin(coin), source}] {
		total = total.Add(l.lots[id].Remaining)
	}
	return total
}

// Lot returns a copy of the lot with the given id.
func (l *Ledger) Lot(id domain.LotID) (domain.Lot, bool) {
	if int(id) < 0 || int(id) >= len(l.lots) {
		return domain.Lot{}, false
	}
	return l.lots[id], true
}

// AdjustBasis spreads an additional USD amount over the lot's remaining
// quantity. Used by the wash-sale push-forward: the disallowed loss is
// deferred into the replacement lot's basis rather than lost.
func (l *Ledger) AdjustBasis(id domain.LotID, addUSD decimal.Decimal) error {
	if int(id) < 0 || int(id) >= len(l.lots) {
		return ErrUnknownLot
	}
	lot := &l.lots[id]
	if !lot.Remaining.IsPositive() {
		return ErrLotExhausted
	}
	lot.UnitCost = lot.UnitCost.Add(addUSD.Div(lot.Remaining))
	return nil
}

// selectable returns the eligible lot ids in consumption order:
// migration seeds first, then method order (FIFO: acquisition date
// ascending; HIFO: unit cost descending).
func (l *Ledger) selectable(coin, source string, asOfDate time.Time, method domain.LotMethod, isolated bool) []domain.LotID {
	var ids []domain.LotID
	if isolated {
		ids = append(ids, l.index[bucketKey{coin, source}]...)
	} else {
		// The named source's lots stay ahead of borrowed ones so cross-source
		// borrowing only covers what the local bucket cannot.
		ids = append(ids, l.index[bucketKey{coin, source}]...)
		for key, bucket := range l.index {
			if key.coin == coin && key.source != source {
				ids = append(ids, bucket...)
			}
		}
	}

	eligible := ids[:0]
	for _, id := range ids {
		lot := l.lots[id]
		if lot.Remaining.IsPositive() && !lot.AcquiredAt.After(asOfDate) {
			eligible = append(eligible, id)
		}
	}

	local := func(id domain.LotID) bool { return l.lots[id].Source == source }
	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := l.lots[eligible[i]], l.lots[eligible[j]]
		if local(a.ID) != local(b.ID) {
			return local(a.ID)
		}
		if a.MigrationSeed != b.MigrationSeed {
			return a.MigrationSeed
		}
		switch method {
		case domain.HIFO:
			if !a.UnitCost.Equal(b.UnitCost) {
				return a.UnitCost.GreaterThan(b.UnitCost)
			}
		default:
			if !a.AcquiredAt.Equal(b.AcquiredAt) {
				return a.AcquiredAt.Before(b.AcquiredAt)
			}
		}
		if !a.AcquiredAt.Equal(b.AcquiredAt) {
			return a.AcquiredAt.Before(b.AcquiredAt)
		}
		return a.ID < b.ID
	})
	return append([]domain.LotID(nil), eligible...)
}

// drop removes a fully consumed lot from its bucket index.
func (l *Ledger) drop(id domain.LotID) {
	lot := l.lots[id]
	key := bucketKey{lot.Coin, lot.Source}
	bucket := l.index[key]
	for i, v := range bucket {
		if v == id {
			l.index[key] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(l.index[key]) == 0 {
		delete(l.index, key)
	}
}
