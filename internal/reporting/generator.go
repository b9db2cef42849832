// Package reporting renders engine results into per-coin summaries, CSV
// exports, and a human-readable markdown report.
package reporting

import (
	"sort"
	"time"

	"cryptobasis/internal/domain"
	"cryptobasis/internal/engine"
)

// Generator produces reports from engine results.
type Generator struct {
	lotMethod domain.LotMethod
	now       func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(lotMethod domain.LotMethod) *Generator {
	return &Generator{
		lotMethod: lotMethod,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report view of one run's result.
func (g *Generator) Generate(result *engine.Result) *Report {
	r := &Report{
		GeneratedAt:               g.now(),
		RunID:                     result.RunID,
		Year:                      result.Year,
		LotMethod:                 g.lotMethod.String(),
		ShortTermTotal:            result.ShortTermTotal,
		LongTermTotal:             result.LongTermTotal,
		CollectibleTotal:          result.CollectibleTotal,
		IncomeTotal:               result.IncomeTotal,
		NetAfterCarryover:         result.NetAfterCarryover,
		NextShortTermCarryforward: result.Carryover.ShortTermLossCarryforward,
		NextLongTermCarryforward:  result.Carryover.LongTermLossCarryforward,
	}

	r.CoinBreakdown = coinBreakdown(result.RealizedGains)

	for _, adj := range result.WashSaleLog {
		r.WashSales = append(r.WashSales, WashSaleRow{
			DisposalID:          adj.DisposalID,
			Coin:                adj.Coin,
			Date:                adj.Date,
			OriginalLoss:        adj.OriginalLoss,
			ReplacementQuantity: adj.ReplacementQuantity,
			DisallowedLoss:      adj.DisallowedLoss,
			BasisDeferred:       adj.BasisDeferred,
		})
	}
	sort.SliceStable(r.WashSales, func(i, j int) bool {
		if !r.WashSales[i].Date.Equal(r.WashSales[j].Date) {
			return r.WashSales[i].Date.Before(r.WashSales[j].Date)
		}
		return r.WashSales[i].DisposalID < r.WashSales[j].DisposalID
	})

	for _, d := range result.Diagnostics {
		r.Diagnostics = append(r.Diagnostics, d.String())
	}

	return r
}

// coinBreakdown aggregates realized gains per coin. Disposal counts are
// distinct disposal IDs, not per-lot records.
func coinBreakdown(gains []domain.RealizedGain) []CoinRow {
	byCoin := make(map[string]*CoinRow)
	disposals := make(map[string]map[string]struct{})

	for _, g := range gains {
		row, ok := byCoin[g.Coin]
		if !ok {
			row = &CoinRow{Coin: g.Coin}
			byCoin[g.Coin] = row
			disposals[g.Coin] = make(map[string]struct{})
		}
		row.Proceeds = row.Proceeds.Add(g.Proceeds)
		row.CostBasis = row.CostBasis.Add(g.CostBasis)
		row.Gain = row.Gain.Add(g.AdjustedGain())
		row.DisallowedLoss = row.DisallowedLoss.Add(g.DisallowedLoss)
		disposals[g.Coin][g.DisposalID] = struct{}{}
	}

	coins := make([]string, 0, len(byCoin))
	for coin := range byCoin {
		coins = append(coins, coin)
	}
	sort.Strings(coins)

	rows := make([]CoinRow, 0, len(coins))
	for _, coin := range coins {
		row := byCoin[coin]
		row.Disposals = len(disposals[coin])
		rows = append(rows, *row)
	}
	return rows
}
