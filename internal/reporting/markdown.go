package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Tax Year %d Report\n\n", r.Year))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s | Lot method: %s\n\n", r.RunID, r.LotMethod))

	// Totals
	sb.WriteString("## Totals\n\n")
	sb.WriteString("| Metric | USD |\n")
	sb.WriteString("|--------|-----|\n")
	sb.WriteString(fmt.Sprintf("| Short-term gain/loss | %s |\n", r.ShortTermTotal))
	sb.WriteString(fmt.Sprintf("| Long-term gain/loss | %s |\n", r.LongTermTotal))
	sb.WriteString(fmt.Sprintf("| Collectible (28%% bucket) | %s |\n", r.CollectibleTotal))
	sb.WriteString(fmt.Sprintf("| Ordinary income | %s |\n", r.IncomeTotal))
	sb.WriteString(fmt.Sprintf("| Net after carryover | %s |\n", r.NetAfterCarryover))
	sb.WriteString(fmt.Sprintf("| Carryforward short (next year) | %s |\n", r.NextShortTermCarryforward))
	sb.WriteString(fmt.Sprintf("| Carryforward long (next year) | %s |\n", r.NextLongTermCarryforward))
	sb.WriteString("\n")

	// Per-coin breakdown
	sb.WriteString("## Per-Coin Breakdown\n\n")
	if len(r.CoinBreakdown) > 0 {
		sb.WriteString("| Coin | Disposals | Proceeds | Cost Basis | Gain | Disallowed |\n")
		sb.WriteString("|------|-----------|----------|------------|------|------------|\n")
		for _, c := range r.CoinBreakdown {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %s |\n",
				c.Coin, c.Disposals, c.Proceeds, c.CostBasis, c.Gain, c.DisallowedLoss))
		}
	} else {
		sb.WriteString("No disposals this year.\n")
	}
	sb.WriteString("\n")

	// Wash sales
	sb.WriteString("## Wash-Sale Adjustments\n\n")
	if len(r.WashSales) > 0 {
		sb.WriteString("| Disposal | Coin | Date | Loss | Replacement Qty | Disallowed | Deferred |\n")
		sb.WriteString("|----------|------|------|------|-----------------|------------|----------|\n")
		for _, w := range r.WashSales {
			deferred := "no"
			if w.BasisDeferred {
				deferred = "yes"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s |\n",
				w.DisposalID, w.Coin, w.Date.UTC().Format("2006-01-02"),
				w.OriginalLoss, w.ReplacementQuantity, w.DisallowedLoss, deferred))
		}
	} else {
		sb.WriteString("No wash sales detected.\n")
	}
	sb.WriteString("\n")

	// Diagnostics
	sb.WriteString("## Diagnostics\n\n")
	if len(r.Diagnostics) > 0 {
		for _, d := range r.Diagnostics {
			sb.WriteString(fmt.Sprintf("- %s\n", d))
		}
	} else {
		sb.WriteString("No diagnostics.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
