// Package carryover folds prior-year capital-loss carryforwards into a
// year's net short/long totals and derives the carryforward for the next
// year.
package carryover

import (
	"github.com/shopspring/decimal"

	"cryptobasis/internal/domain"
)

// Result is the reconciled outcome of one year's totals.
type Result struct {
	ShortTermNet      decimal.Decimal // after prior short carryforward
	LongTermNet       decimal.Decimal // after prior long carryforward
	NetAfterCarryover decimal.Decimal
	Next              domain.YearCarryover
}

// Apply threads the prior year's carryforward losses into this year's
// short- and long-term totals. Each carryforward first offsets its own
// term; a remaining net loss in one term then offsets a net gain in the
// other; whatever loss survives becomes the next year's carryforward.
func Apply(year int, shortTotal, longTotal decimal.Decimal, prior domain.YearCarryover) Result {
	short := shortTotal.Sub(prior.ShortTermLossCarryforward)
	long := longTotal.Sub(prior.LongTermLossCarryforward)

	// Cross-term offset: a net loss absorbs the other term's net gain.
	if short.IsNegative() && long.IsPositive() {
		offset := decimal.Min(short.Neg(), long)
		short = short.Add(offset)
		long = long.Sub(offset)
	} else if long.IsNegative() && short.IsPositive() {
		offset := decimal.Min(long.Neg(), short)
		long = long.Add(offset)
		short = short.Sub(offset)
	}

	next := domain.YearCarryover{Year: year + 1}
	if short.IsNegative() {
		next.ShortTermLossCarryforward = short.Neg()
	}
	if long.IsNegative() {
		next.LongTermLossCarryforward = long.Neg()
	}

	return Result{
		ShortTermNet:      short,
		LongTermNet:       long,
		NetAfterCarryover: short.Add(long),
		Next:              next,
	}
}
