package domain

import "github.com/shopspring/decimal"

// YearCarryover threads unused capital losses from one tax year's output
// into the next year's input. Carryforwards are stored as non-negative
// magnitudes.
type YearCarryover struct {
	Year                     int
	ShortTermLossCarryforward decimal.Decimal
	LongTermLossCarryforward  decimal.Decimal
}

// IsZero reports whether no loss is carried.
func (c YearCarryover) IsZero() bool {
	return c.ShortTermLossCarryforward.IsZero() && c.LongTermLossCarryforward.IsZero()
}
