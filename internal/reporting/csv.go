package reporting

import (
	"fmt"
	"strings"
	"time"

	"cryptobasis/internal/domain"
)

// RenderGainsCSV renders per-lot realized gain records as CSV.
func RenderGainsCSV(gains []domain.RealizedGain) string {
	var sb strings.Builder

	sb.WriteString("disposal_id,tx_id,coin,source,disposed_at,acquired_at,amount,")
	sb.WriteString("proceeds,cost_basis,gain,disallowed_loss,adjusted_gain,term,holding_term,basis_shortfall\n")

	for _, g := range gains {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%t\n",
			g.DisposalID,
			g.TxID,
			g.Coin,
			g.Source,
			g.Date.UTC().Format(time.RFC3339),
			g.AcquiredAt.UTC().Format(time.RFC3339),
			g.Amount,
			g.Proceeds,
			g.CostBasis,
			g.Gain,
			g.DisallowedLoss,
			g.AdjustedGain(),
			g.Term,
			g.HoldingTerm,
			g.BasisShortfall,
		))
	}

	return sb.String()
}

// RenderWashSalesCSV renders the wash-sale adjustment log as CSV.
func RenderWashSalesCSV(rows []WashSaleRow) string {
	var sb strings.Builder

	sb.WriteString("disposal_id,coin,disposed_at,original_loss,replacement_quantity,disallowed_loss,basis_deferred\n")

	for _, w := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%t\n",
			w.DisposalID,
			w.Coin,
			w.Date.UTC().Format(time.RFC3339),
			w.OriginalLoss,
			w.ReplacementQuantity,
			w.DisallowedLoss,
			w.BasisDeferred,
		))
	}

	return sb.String()
}
