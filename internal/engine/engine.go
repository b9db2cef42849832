// Package engine drives one tax-year computation: it replays the year's
// transactions into the lot ledger in timestamp order, classifies
// disposals, applies the wash-sale rule, and reconciles totals against
// prior-year carryover.
package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cryptobasis/internal/carryover"
	"cryptobasis/internal/classify"
	"cryptobasis/internal/domain"
	"cryptobasis/internal/idhash"
	"cryptobasis/internal/inventory"
	"cryptobasis/internal/ledger"
	"cryptobasis/internal/pricing"
	"cryptobasis/internal/washsale"
)

// Phase tracks the engine's progress through one run.
type Phase string

// Run phases, in order.
const (
	PhaseInit              Phase = "INIT"
	PhaseLoadCarryover     Phase = "LOAD_CARRYOVER"
	PhaseReplay            Phase = "REPLAY"
	PhaseClassifyDisposals Phase = "CLASSIFY_DISPOSALS"
	PhaseApplyWashSales    Phase = "APPLY_WASH_SALES"
	PhaseReconcile         Phase = "RECONCILE"
	PhaseDone              Phase = "DONE"
)

// Options configure one engine instance. Engines for different years are
// independent and share no mutable state.
type Options struct {
	Year           int
	Config         domain.ComplianceConfig
	PriorCarryover domain.YearCarryover
	Opening        inventory.Opening // migration-seeded opening lots, may be nil
	Oracle         pricing.Oracle    // consulted only for rows missing a unit price, may be nil
	Verbose        bool
}

// Engine computes one tax year. Init is re-entrant: each Run starts from
// a fresh ledger.
type Engine struct {
	opts       Options
	phase      Phase
	ledger     *ledger.Ledger
	classifier *classify.Classifier

	disposals []*domain.DisposalEvent
	buys      []washsale.Buy
	income    []domain.IncomeEntry
	diags     []domain.Diagnostic
	coverage  washsale.Range
}

// New validates the ruleset and creates an Engine. Config errors are
// structural and fail fast.
func New(opts Options) (*Engine, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("compliance config: %w", err)
	}
	if opts.Year <= 0 {
		return nil, fmt.Errorf("invalid tax year %d", opts.Year)
	}
	return &Engine{opts: opts, phase: PhaseInit}, nil
}

// Result is the Done-state output of one run.
type Result struct {
	RunID string
	Year  int

	RealizedGains []domain.RealizedGain
	IncomeEntries []domain.IncomeEntry
	WashSaleLog   []domain.WashSaleAdjustment
	Diagnostics   []domain.Diagnostic

	ShortTermTotal   decimal.Decimal // after wash adjustment, before carryover
	LongTermTotal    decimal.Decimal
	CollectibleTotal decimal.Decimal // rate-bucket slice of the above
	IncomeTotal      decimal.Decimal

	NetAfterCarryover decimal.Decimal
	Carryover         domain.YearCarryover // to thread into next year's run
}

// Run replays txs (ascending timestamp order) and computes the year's
// results. Per-row problems become diagnostics on the result; only
// structural errors are returned.
func (e *Engine) Run(ctx context.Context, txs []domain.Transaction) (*Result, error) {
	e.reset()
	result := &Result{RunID: uuid.NewString(), Year: e.opts.Year}
	e.log("run %s: year %d, %d transactions, method=%s", result.RunID, e.opts.Year, len(txs), e.opts.Config.LotMethod)

	e.phase = PhaseLoadCarryover
	prior := e.opts.PriorCarryover
	if !prior.IsZero() {
		e.log("carryover in: short=%s long=%s", prior.ShortTermLossCarryforward, prior.LongTermLossCarryforward)
	}

	e.phase = PhaseReplay
	if err := e.seedOpening(); err != nil {
		return nil, err
	}
	ordered := make([]domain.Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Timestamp.Before(ordered[j].Timestamp) })
	e.coverage = e.coverageFor(ordered)
	for i := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.replay(ctx, &ordered[i])
	}

	e.phase = PhaseClassifyDisposals
	for _, ev := range e.disposals {
		if ev.Shortfall.IsPositive() {
			e.diag(domain.DiagBasisShortfall, ev.TxID, ev.Coin,
				fmt.Sprintf("disposal exceeds tracked lots by %s; unmatched portion carries zero basis", ev.Shortfall))
		}
	}

	e.phase = PhaseApplyWashSales
	detector := washsale.NewDetector(e.coverage)
	adjustments, washDiags := detector.Detect(e.disposals, e.buys, e.ledger)
	result.WashSaleLog = adjustments
	e.diags = append(e.diags, washDiags...)
	e.log("wash sales: %d adjustments", len(adjustments))

	e.phase = PhaseReconcile
	shortTotal, longTotal, collectible := decimal.Zero, decimal.Zero, decimal.Zero
	for _, ev := range e.disposals {
		if ev.Date.Year() != e.opts.Year {
			continue
		}
		for _, r := range ev.Records {
			result.RealizedGains = append(result.RealizedGains, r)
			gain := r.AdjustedGain()
			if r.HoldingTerm == domain.TermLong {
				longTotal = longTotal.Add(gain)
			} else {
				shortTotal = shortTotal.Add(gain)
			}
			if r.Term == domain.TermCollectible {
				collectible = collectible.Add(gain)
			}
		}
	}
	incomeTotal := decimal.Zero
	for _, entry := range e.income {
		if entry.Date.Year() != e.opts.Year {
			continue
		}
		result.IncomeEntries = append(result.IncomeEntries, entry)
		incomeTotal = incomeTotal.Add(entry.Value)
	}
	reconciled := carryover.Apply(e.opts.Year, shortTotal, longTotal, prior)

	result.ShortTermTotal = shortTotal
	result.LongTermTotal = longTotal
	result.CollectibleTotal = collectible
	result.IncomeTotal = incomeTotal
	result.NetAfterCarryover = reconciled.NetAfterCarryover
	result.Carryover = reconciled.Next
	result.Diagnostics = e.diags

	e.phase = PhaseDone
	e.log("done: short=%s long=%s net=%s diagnostics=%d",
		result.ShortTermTotal, result.LongTermTotal, result.NetAfterCarryover, len(result.Diagnostics))
	return result, nil
}

// Phase returns the engine's current phase.
func (e *Engine) Phase() Phase {
	return e.phase
}

func (e *Engine) reset() {
	e.phase = PhaseInit
	e.ledger = ledger.New()
	e.classifier = classify.New(e.ledger, e.opts.Config)
	e.disposals = nil
	e.buys = nil
	e.income = nil
	e.diags = nil
}

// seedOpening loads migration-provided opening lots. Only consulted in
// strict broker mode; absence is not an error.
func (e *Engine) seedOpening() error {
	if !e.opts.Config.StrictBrokerMode || e.opts.Opening == nil {
		return nil
	}
	for coin, sources := range e.opts.Opening {
		for source, seeds := range sources {
			for _, s := range seeds {
				if _, err := e.ledger.AcquireSeed(coin, source, s.Amount, s.UnitCost, s.AcquiredAt); err != nil {
					return fmt.Errorf("seed opening inventory %s/%s: %w", coin, source, err)
				}
			}
		}
	}
	return nil
}

// coverageFor derives the replacement-data coverage range: the target
// year, extended by any context rows the source provided around it.
func (e *Engine) coverageFor(ordered []domain.Transaction) washsale.Range {
	r := washsale.Range{
		Start: time.Date(e.opts.Year, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(e.opts.Year, 12, 31, 23, 59, 59, 0, time.UTC),
	}
	if len(ordered) > 0 {
		if first := ordered[0].Timestamp; first.Before(r.Start) {
			r.Start = first
		}
		if last := ordered[len(ordered)-1].Timestamp; last.After(r.End) {
			r.End = last
		}
	}
	return r
}

// replay applies one transaction to the ledger, recording disposals,
// income, replacement buys, and diagnostics as it goes.
func (e *Engine) replay(ctx context.Context, tx *domain.Transaction) {
	if err := tx.Validate(); err != nil {
		e.diag(domain.DiagMalformedRow, tx.ID, tx.Coin, err.Error())
		return
	}
	coin := domain.NormalizeCoin(tx.Coin)
	price := e.resolvePrice(ctx, tx, coin)

	switch tx.Action {
	case domain.ActionBuy:
		e.replayBuy(ctx, tx, coin, price, true)
	case domain.ActionGiftIn:
		// Carry-over donor basis, no income recognized, and a gift is
		// not a purchase for wash-sale purposes.
		e.replayBuy(ctx, tx, coin, price, false)
	case domain.ActionIncome:
		e.replayIncome(tx, coin, price)
	case domain.ActionSell, domain.ActionSpend, domain.ActionSwap:
		e.replayDisposal(ctx, tx, coin, price)
	case domain.ActionLoss:
		// Lost or stolen units: disposed at zero proceeds.
		ev := e.classifier.Dispose(classify.DisposeInput{
			DisposalID:   idhash.ComputeDisposalID(tx.ID, coin, tx.Source, tx.Timestamp.UnixMilli()),
			TxID:         tx.ID,
			Coin:         coin,
			Source:       tx.Source,
			Amount:       tx.Amount,
			UnitPriceUSD: decimal.Zero,
			Date:         tx.Timestamp,
		})
		e.disposals = append(e.disposals, ev)
	case domain.ActionTransfer:
		e.replayTransfer(ctx, tx, coin)
	case domain.ActionDeposit:
		if e.opts.Config.DefiLPConservative {
			e.replayDisposal(ctx, tx, coin, price)
		} else {
			e.moveLots(tx, coin, tx.Source, lpBucket(tx.Source))
		}
	case domain.ActionWithdrawal:
		if e.opts.Config.DefiLPConservative {
			// Taxable re-acquisition at fair value; qualifies as a
			// replacement purchase.
			e.replayBuy(ctx, tx, coin, price, true)
		} else {
			e.moveLots(tx, coin, lpBucket(tx.Source), tx.Source)
		}
	default:
		e.diag(domain.DiagUnknownAction, tx.ID, tx.Coin, fmt.Sprintf("unsupported action %q skipped", tx.Action))
	}
}

func (e *Engine) replayBuy(ctx context.Context, tx *domain.Transaction, coin string, price decimal.Decimal, replacement bool) {
	cost := tx.Amount.Mul(price)
	if tx.Fee.IsPositive() {
		if tx.EffectiveFeeCoin() == coin {
			// A fee settled in the purchase currency folds into basis.
			cost = cost.Add(tx.Fee.Mul(price))
		} else {
			e.disposeFee(ctx, tx)
		}
	}
	unitCost := cost.Div(tx.Amount)
	id, err := e.ledger.Acquire(coin, tx.Source, tx.Amount, unitCost, tx.Timestamp, tx.ID)
	if err != nil {
		e.diag(domain.DiagMalformedRow, tx.ID, coin, err.Error())
		return
	}
	if replacement {
		e.buys = append(e.buys, washsale.Buy{
			LotID: id, TxID: tx.ID, Coin: coin, Amount: tx.Amount, Date: tx.Timestamp,
		})
	}
}

func (e *Engine) replayIncome(tx *domain.Transaction, coin string, price decimal.Decimal) {
	if !e.opts.Config.StakingTaxableOnReceipt {
		// Deferred recognition: zero-basis lot, full gain realized on
		// eventual disposal, no income entry now.
		if _, err := e.ledger.Acquire(coin, tx.Source, tx.Amount, decimal.Zero, tx.Timestamp, tx.ID); err != nil {
			e.diag(domain.DiagMalformedRow, tx.ID, coin, err.Error())
		}
		return
	}
	if _, err := e.ledger.Acquire(coin, tx.Source, tx.Amount, price, tx.Timestamp, tx.ID); err != nil {
		e.diag(domain.DiagMalformedRow, tx.ID, coin, err.Error())
		return
	}
	e.income = append(e.income, domain.IncomeEntry{
		TxID:   tx.ID,
		Coin:   coin,
		Source: tx.Source,
		Date:   tx.Timestamp,
		Amount: tx.Amount,
		Value:  tx.Amount.Mul(price),
	})
}

func (e *Engine) replayDisposal(ctx context.Context, tx *domain.Transaction, coin string, price decimal.Decimal) {
	feeUSD := decimal.Zero
	if tx.Fee.IsPositive() {
		if tx.EffectiveFeeCoin() == coin {
			feeUSD = tx.Fee.Mul(price)
		} else {
			// A fee paid in another coin is its own disposal, never
			// netted against this coin's proceeds.
			e.disposeFee(ctx, tx)
		}
	}
	ev := e.classifier.Dispose(classify.DisposeInput{
		DisposalID:   idhash.ComputeDisposalID(tx.ID, coin, tx.Source, tx.Timestamp.UnixMilli()),
		TxID:         tx.ID,
		Coin:         coin,
		Source:       tx.Source,
		Amount:       tx.Amount,
		UnitPriceUSD: price,
		FeeUSD:       feeUSD,
		Date:         tx.Timestamp,
	})
	e.disposals = append(e.disposals, ev)
}

func (e *Engine) replayTransfer(ctx context.Context, tx *domain.Transaction, coin string) {
	if tx.Destination == "" {
		e.diag(domain.DiagMalformedRow, tx.ID, coin, "transfer without destination")
		return
	}
	res, err := e.ledger.Transfer(coin, tx.Source, tx.Destination, tx.Amount, tx.Timestamp, e.opts.Config.LotMethod, tx.ID)
	if err != nil {
		e.diag(domain.DiagMalformedRow, tx.ID, coin, err.Error())
		return
	}
	if res.Shortfall.IsPositive() {
		e.diag(domain.DiagTransferShortfall, tx.ID, coin,
			fmt.Sprintf("transferred %s beyond tracked lots; tail carries zero basis", res.Shortfall))
	}
	if tx.Fee.IsPositive() {
		e.disposeFee(ctx, tx)
	}
}

// disposeFee classifies a fee as an independent disposal of the fee coin.
func (e *Engine) disposeFee(ctx context.Context, tx *domain.Transaction) {
	feeCoin := domain.NormalizeCoin(tx.EffectiveFeeCoin())
	feePrice := decimal.Zero
	if feeCoin == domain.NormalizeCoin(tx.Coin) && !tx.UnitPriceUSD.IsZero() {
		feePrice = tx.UnitPriceUSD
	} else {
		feePrice = e.lookupPrice(ctx, tx, feeCoin)
	}
	ev := e.classifier.Dispose(classify.DisposeInput{
		DisposalID:   idhash.ComputeFeeDisposalID(tx.ID, feeCoin, tx.Source, tx.Timestamp.UnixMilli()),
		TxID:         tx.ID,
		Coin:         feeCoin,
		Source:       tx.Source,
		Amount:       tx.Fee,
		UnitPriceUSD: feePrice,
		Date:         tx.Timestamp,
	})
	e.disposals = append(e.disposals, ev)
}

// moveLots is the non-taxable LP path: lots shift between the wallet and
// its pool bucket, preserving basis and holding period.
func (e *Engine) moveLots(tx *domain.Transaction, coin, from, to string) {
	res, err := e.ledger.Transfer(coin, from, to, tx.Amount, tx.Timestamp, e.opts.Config.LotMethod, tx.ID)
	if err != nil {
		e.diag(domain.DiagMalformedRow, tx.ID, coin, err.Error())
		return
	}
	if res.Shortfall.IsPositive() {
		e.diag(domain.DiagTransferShortfall, tx.ID, coin,
			fmt.Sprintf("pool movement of %s beyond tracked lots; tail carries zero basis", res.Shortfall))
	}
}

// resolvePrice fills a missing unit price from the oracle. A miss is a
// diagnostic, not an error; the row is still ledgered at zero so
// quantity tracking survives.
func (e *Engine) resolvePrice(ctx context.Context, tx *domain.Transaction, coin string) decimal.Decimal {
	if !tx.UnitPriceUSD.IsZero() {
		return tx.UnitPriceUSD
	}
	if tx.Action == domain.ActionLoss || tx.Action == domain.ActionTransfer {
		return decimal.Zero
	}
	return e.lookupPrice(ctx, tx, coin)
}

func (e *Engine) lookupPrice(ctx context.Context, tx *domain.Transaction, coin string) decimal.Decimal {
	if e.opts.Oracle == nil {
		e.diag(domain.DiagMissingPrice, tx.ID, coin, "no unit price and no oracle configured")
		return decimal.Zero
	}
	price, err := e.opts.Oracle.GetPrice(ctx, coin, tx.Timestamp)
	if err != nil {
		e.diag(domain.DiagMissingPrice, tx.ID, coin, fmt.Sprintf("price lookup failed: %v", err))
		return decimal.Zero
	}
	return price
}

func lpBucket(source string) string {
	return source + "/lp"
}

func (e *Engine) diag(code domain.DiagnosticCode, txID, coin, msg string) {
	e.diags = append(e.diags, domain.Diagnostic{Code: code, TxID: txID, Coin: domain.NormalizeCoin(coin), Message: msg})
}

func (e *Engine) log(format string, args ...interface{}) {
	if e.opts.Verbose {
		log.Printf("[engine] "+format, args...)
	}
}
