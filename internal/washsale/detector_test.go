package washsale

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cryptobasis/internal/domain"
	"cryptobasis/internal/ledger"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func yearCoverage(y int) Range {
	return Range{Start: day(y, 1, 1), End: day(y, 12, 31)}
}

// lossDisposal builds a disposal event with a single loss record.
func lossDisposal(id, coin string, date time.Time, amount, gain decimal.Decimal) *domain.DisposalEvent {
	return &domain.DisposalEvent{
		DisposalID: id,
		TxID:       "tx-" + id,
		Coin:       coin,
		Date:       date,
		Amount:     amount,
		Gain:       gain,
		Records: []domain.RealizedGain{
			{DisposalID: id, Coin: coin, Date: date, Amount: amount, Gain: gain, Term: domain.TermShort},
		},
	}
}

func TestDetect_ProportionalTinyReplacement(t *testing.T) {
	l := ledger.New()
	lotID, _ := l.Acquire("BTC", "kraken", dec("0.0001"), dec("30000"), day(2023, 6, 10), "rebuy")

	ev := lossDisposal("d1", "BTC", day(2023, 6, 1), dec("10"), dec("-50000"))
	buys := []Buy{{LotID: lotID, TxID: "rebuy", Coin: "BTC", Amount: dec("0.0001"), Date: day(2023, 6, 10)}}

	adjs, diags := NewDetector(yearCoverage(2023)).Detect([]*domain.DisposalEvent{ev}, buys, l)

	if len(adjs) != 1 {
		t.Fatalf("expected one adjustment, got %d (diags %v)", len(adjs), diags)
	}
	// 50000 * (0.0001/10) = 0.5, not 50000
	if !adjs[0].DisallowedLoss.Equal(dec("0.5")) {
		t.Errorf("expected disallowed loss 0.5, got %s", adjs[0].DisallowedLoss)
	}
	if !ev.Records[0].DisallowedLoss.Equal(dec("0.5")) {
		t.Errorf("record must carry its disallowed share, got %s", ev.Records[0].DisallowedLoss)
	}
	if !ev.Records[0].AdjustedGain().Equal(dec("-49999.5")) {
		t.Errorf("expected adjusted gain -49999.5, got %s", ev.Records[0].AdjustedGain())
	}
}

func TestDetect_FullReplacementDisallowsEverything(t *testing.T) {
	l := ledger.New()
	lotID, _ := l.Acquire("BTC", "kraken", dec("10"), dec("28000"), day(2023, 6, 15), "rebuy")

	ev := lossDisposal("d1", "BTC", day(2023, 6, 1), dec("10"), dec("-50000"))
	buys := []Buy{{LotID: lotID, TxID: "rebuy", Coin: "BTC", Amount: dec("10"), Date: day(2023, 6, 15)}}

	adjs, _ := NewDetector(yearCoverage(2023)).Detect([]*domain.DisposalEvent{ev}, buys, l)

	if len(adjs) != 1 || !adjs[0].DisallowedLoss.Equal(dec("50000")) {
		t.Fatalf("expected full 50000 disallowed, got %+v", adjs)
	}
	if !ev.Records[0].AdjustedGain().IsZero() {
		t.Errorf("adjusted gain must be zero, got %s", ev.Records[0].AdjustedGain())
	}
	// Deferred into the replacement lot: 28000 + 50000/10 per unit
	lot, _ := l.Lot(lotID)
	if !lot.UnitCost.Equal(dec("33000")) {
		t.Errorf("expected replacement unit cost 33000, got %s", lot.UnitCost)
	}
}

func TestDetect_OutsideWindowNoAdjustment(t *testing.T) {
	l := ledger.New()
	lotID, _ := l.Acquire("BTC", "kraken", dec("10"), dec("28000"), day(2023, 7, 2), "rebuy")

	ev := lossDisposal("d1", "BTC", day(2023, 6, 1), dec("10"), dec("-50000"))
	// 31 days after the disposal: outside the inclusive window
	buys := []Buy{{LotID: lotID, TxID: "rebuy", Coin: "BTC", Amount: dec("10"), Date: day(2023, 7, 2)}}

	adjs, _ := NewDetector(yearCoverage(2023)).Detect([]*domain.DisposalEvent{ev}, buys, l)

	if len(adjs) != 0 {
		t.Errorf("expected no adjustment for a 31-day repurchase, got %+v", adjs)
	}
}

func TestDetect_ExactThirtyDayBoundaryCounts(t *testing.T) {
	for _, offset := range []int{-30, 30} {
		l := ledger.New()
		date := day(2023, 6, 15).AddDate(0, 0, offset)
		lotID, _ := l.Acquire("BTC", "kraken", dec("10"), dec("28000"), date, "rebuy")

		ev := lossDisposal("d1", "BTC", day(2023, 6, 15), dec("10"), dec("-1000"))
		buys := []Buy{{LotID: lotID, TxID: "rebuy", Coin: "BTC", Amount: dec("10"), Date: date}}

		adjs, _ := NewDetector(yearCoverage(2023)).Detect([]*domain.DisposalEvent{ev}, buys, l)
		if len(adjs) != 1 {
			t.Errorf("offset %d: a purchase exactly 30 days out is within the window", offset)
		}
	}
}

func TestDetect_ClockTimeDoesNotShiftWindow(t *testing.T) {
	at := func(y int, m time.Month, d, hour int) time.Time {
		return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
	}
	cases := []struct {
		name     string
		disposed time.Time
		bought   time.Time
	}{
		// Exactly 30 calendar days out; the buy's clock time falls
		// outside the raw +/-30-day duration in both directions.
		{"earlier morning buy 30 days before", at(2023, 6, 30, 15), at(2023, 5, 31, 9)},
		{"later evening buy 30 days after", at(2023, 6, 1, 9), at(2023, 7, 1, 15)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := ledger.New()
			lotID, _ := l.Acquire("BTC", "kraken", dec("10"), dec("28000"), tc.bought, "rebuy")

			ev := lossDisposal("d1", "BTC", tc.disposed, dec("10"), dec("-1000"))
			buys := []Buy{{LotID: lotID, TxID: "rebuy", Coin: "BTC", Amount: dec("10"), Date: tc.bought}}

			adjs, _ := NewDetector(yearCoverage(2023)).Detect([]*domain.DisposalEvent{ev}, buys, l)
			if len(adjs) != 1 {
				t.Errorf("expected one adjustment for a 30-calendar-day repurchase, got %d", len(adjs))
			}
		})
	}
}

func TestDetect_PrecedingPurchaseQualifies(t *testing.T) {
	l := ledger.New()
	lotID, _ := l.Acquire("BTC", "kraken", dec("5"), dec("30000"), day(2023, 5, 20), "rebuy")

	ev := lossDisposal("d1", "BTC", day(2023, 6, 1), dec("10"), dec("-10000"))
	buys := []Buy{{LotID: lotID, TxID: "rebuy", Coin: "BTC", Amount: dec("5"), Date: day(2023, 5, 20)}}

	adjs, _ := NewDetector(yearCoverage(2023)).Detect([]*domain.DisposalEvent{ev}, buys, l)

	if len(adjs) != 1 {
		t.Fatal("a purchase preceding the disposal must qualify")
	}
	// 10000 * 5/10
	if !adjs[0].DisallowedLoss.Equal(dec("5000")) {
		t.Errorf("expected 5000 disallowed, got %s", adjs[0].DisallowedLoss)
	}
}

func TestDetect_ReplacementNeverCountedTwice(t *testing.T) {
	l := ledger.New()
	lotID, _ := l.Acquire("BTC", "kraken", dec("10"), dec("28000"), day(2023, 6, 10), "rebuy")

	d1 := lossDisposal("d1", "BTC", day(2023, 6, 1), dec("10"), dec("-10000"))
	d2 := lossDisposal("d2", "BTC", day(2023, 6, 5), dec("10"), dec("-8000"))
	buys := []Buy{{LotID: lotID, TxID: "rebuy", Coin: "BTC", Amount: dec("10"), Date: day(2023, 6, 10)}}

	adjs, _ := NewDetector(yearCoverage(2023)).Detect([]*domain.DisposalEvent{d1, d2}, buys, l)

	if len(adjs) != 1 {
		t.Fatalf("the 10 replacement units back only the first disposal, got %d adjustments", len(adjs))
	}
	if adjs[0].DisposalID != "d1" {
		t.Errorf("earliest disposal claims replacement quantity first, got %s", adjs[0].DisposalID)
	}
	if !adjs[0].DisallowedLoss.Equal(dec("10000")) {
		t.Errorf("expected 10000 disallowed, got %s", adjs[0].DisallowedLoss)
	}
}

func TestDetect_DisposedSharesAreNotReplacements(t *testing.T) {
	l := ledger.New()
	lotID, _ := l.Acquire("BTC", "kraken", dec("10"), dec("28000"), day(2023, 6, 10), "rebuy")

	// The in-window buy is itself fully consumed by the disposal under test.
	ev := lossDisposal("d1", "BTC", day(2023, 6, 15), dec("10"), dec("-10000"))
	ev.MatchedLots = []domain.Consumption{{LotID: lotID, Amount: dec("10"), UnitCost: dec("28000"), AcquiredAt: day(2023, 6, 10)}}

	buys := []Buy{{LotID: lotID, TxID: "rebuy", Coin: "BTC", Amount: dec("10"), Date: day(2023, 6, 10)}}

	adjs, _ := NewDetector(yearCoverage(2023)).Detect([]*domain.DisposalEvent{ev}, buys, l)

	if len(adjs) != 0 {
		t.Errorf("shares constituting the disposal are not replacements, got %+v", adjs)
	}
}

func TestDetect_GainDisposalIgnored(t *testing.T) {
	l := ledger.New()
	lotID, _ := l.Acquire("BTC", "kraken", dec("10"), dec("28000"), day(2023, 6, 10), "rebuy")

	ev := lossDisposal("d1", "BTC", day(2023, 6, 1), dec("10"), dec("4000"))
	ev.Records[0].Gain = dec("4000")
	buys := []Buy{{LotID: lotID, TxID: "rebuy", Coin: "BTC", Amount: dec("10"), Date: day(2023, 6, 10)}}

	adjs, _ := NewDetector(yearCoverage(2023)).Detect([]*domain.DisposalEvent{ev}, buys, l)

	if len(adjs) != 0 {
		t.Errorf("gains are never wash-adjusted, got %+v", adjs)
	}
}

func TestDetect_DifferentCoinNeverMatches(t *testing.T) {
	l := ledger.New()
	lotID, _ := l.Acquire("ETH", "kraken", dec("10"), dec("2000"), day(2023, 6, 10), "rebuy")

	ev := lossDisposal("d1", "BTC", day(2023, 6, 1), dec("10"), dec("-10000"))
	buys := []Buy{{LotID: lotID, TxID: "rebuy", Coin: "ETH", Amount: dec("10"), Date: day(2023, 6, 10)}}

	adjs, _ := NewDetector(yearCoverage(2023)).Detect([]*domain.DisposalEvent{ev}, buys, l)

	if len(adjs) != 0 {
		t.Errorf("cross-coin replacement must not trigger the rule, got %+v", adjs)
	}
}

func TestDetect_TruncatedWindowDegradesWithDiagnostic(t *testing.T) {
	l := ledger.New()

	// Disposal 10 days into the covered year: the lookback window
	// reaches into the prior year for which no data exists.
	ev := lossDisposal("d1", "BTC", day(2023, 1, 10), dec("10"), dec("-10000"))

	adjs, diags := NewDetector(yearCoverage(2023)).Detect([]*domain.DisposalEvent{ev}, nil, l)

	if len(adjs) != 0 {
		t.Errorf("expected no adjustment, got %+v", adjs)
	}
	found := false
	for _, d := range diags {
		if d.Code == domain.DiagWashWindowTruncated {
			found = true
		}
	}
	if !found {
		t.Error("expected a wash-window-truncated diagnostic")
	}
}

func TestDetect_UndeferredBasisFlagged(t *testing.T) {
	l := ledger.New()
	lotID, _ := l.Acquire("BTC", "kraken", dec("10"), dec("28000"), day(2023, 6, 10), "rebuy")
	// Replacement lot fully consumed before the adjustment lands.
	l.Consume("BTC", "kraken", dec("10"), day(2023, 6, 20), domain.FIFO, false)

	ev := lossDisposal("d1", "BTC", day(2023, 6, 1), dec("10"), dec("-10000"))
	buys := []Buy{{LotID: lotID, TxID: "rebuy", Coin: "BTC", Amount: dec("10"), Date: day(2023, 6, 10)}}

	adjs, diags := NewDetector(yearCoverage(2023)).Detect([]*domain.DisposalEvent{ev}, buys, l)

	if len(adjs) != 1 || adjs[0].BasisDeferred {
		t.Fatalf("adjustment must be recorded but not deferred, got %+v", adjs)
	}
	found := false
	for _, d := range diags {
		if d.Code == domain.DiagWashBasisUndeferred {
			found = true
		}
	}
	if !found {
		t.Error("expected an undeferred-basis diagnostic")
	}
}
