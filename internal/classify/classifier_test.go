package classify

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

func at(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestDispose_GainAndBasis(t *testing.T) {
	l := ledger.New()
	l.Acquire("BTC", "kraken", dec("1"), dec("10000"), day(2023, 1, 1), "buy")
	c := New(l, domain.DefaultComplianceConfig())

	ev := c.Dispose(DisposeInput{
		DisposalID:   "d1",
		TxID:         "sell",
		Coin:         "BTC",
		Source:       "kraken",
		Amount:       dec("1"),
		UnitPriceUSD: dec("15000"),
		FeeUSD:       dec("10"),
		Date:         day(2023, 6, 1),
	})

	if !ev.Proceeds.Equal(dec("14990")) {
		t.Errorf("expected proceeds 14990, got %s", ev.Proceeds)
	}
	if !ev.CostBasis.Equal(dec("10000")) {
		t.Errorf("expected basis 10000, got %s", ev.CostBasis)
	}
	if !ev.Gain.Equal(dec("4990")) {
		t.Errorf("expected gain 4990, got %s", ev.Gain)
	}
	if len(ev.Records) != 1 || ev.Records[0].Term != domain.TermShort {
		t.Errorf("expected one short-term record, got %+v", ev.Records)
	}
}

func TestDispose_BoundaryHoldingPeriod(t *testing.T) {
	cases := []struct {
		name     string
		acquired time.Time
		disposed time.Time
		want     domain.Term
	}{
		{"364 days is short", day(2023, 1, 1), day(2023, 12, 31), domain.TermShort},
		{"365 days is short", day(2023, 1, 1), day(2024, 1, 1), domain.TermShort},
		{"366 days is long", day(2023, 1, 1), day(2024, 1, 2), domain.TermLong},
		{"two years is long", day(2021, 1, 1), day(2023, 1, 1), domain.TermLong},
		// Calendar days, not elapsed hours: a later acquisition clock
		// time must not pull the boundary back to short.
		{"366 days despite later acquisition hour is long", at(2021, 1, 1, 12), at(2022, 1, 2, 11), domain.TermLong},
		{"365 days despite earlier acquisition hour is short", at(2023, 1, 1, 3), at(2024, 1, 1, 22), domain.TermShort},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := ledger.New()
			l.Acquire("BTC", "kraken", dec("1"), dec("10000"), tc.acquired, "buy")
			c := New(l, domain.DefaultComplianceConfig())

			ev := c.Dispose(DisposeInput{
				DisposalID: "d", TxID: "s", Coin: "BTC", Source: "kraken",
				Amount: dec("1"), UnitPriceUSD: dec("20000"), Date: tc.disposed,
			})
			if ev.Records[0].Term != tc.want {
				t.Errorf("expected %s, got %s", tc.want, ev.Records[0].Term)
			}
		})
	}
}

func TestDispose_CollectibleOverride(t *testing.T) {
	cfg := domain.DefaultComplianceConfig()
	cfg.CollectiblePrefixes = []string{"NFT-"}

	l := ledger.New()
	l.Acquire("NFT-APE", "wallet", dec("1"), dec("1000"), day(2021, 1, 1), "mint")
	c := New(l, cfg)

	ev := c.Dispose(DisposeInput{
		DisposalID: "d", TxID: "s", Coin: "NFT-APE", Source: "wallet",
		Amount: dec("1"), UnitPriceUSD: dec("5000"), Date: day(2023, 6, 1),
	})

	rec := ev.Records[0]
	if rec.Term != domain.TermCollectible {
		t.Errorf("expected collectible rate bucket, got %s", rec.Term)
	}
	if rec.HoldingTerm != domain.TermLong {
		t.Errorf("day-count classification must still be recorded, got %s", rec.HoldingTerm)
	}
}

func TestDispose_ShortfallRecognizedAtZeroBasis(t *testing.T) {
	l := ledger.New()
	l.Acquire("SOL", "wallet", dec("2"), dec("100"), day(2023, 1, 1), "buy")
	c := New(l, domain.DefaultComplianceConfig())

	ev := c.Dispose(DisposeInput{
		DisposalID: "d", TxID: "s", Coin: "SOL", Source: "wallet",
		Amount: dec("5"), UnitPriceUSD: dec("150"), Date: day(2023, 6, 1),
	})

	if !ev.Shortfall.Equal(dec("3")) {
		t.Fatalf("expected shortfall 3, got %s", ev.Shortfall)
	}
	// proceeds fully recognized: 5*150 = 750
	if !ev.Proceeds.Equal(dec("750")) {
		t.Errorf("expected proceeds 750, got %s", ev.Proceeds)
	}
	last := ev.Records[len(ev.Records)-1]
	if !last.BasisShortfall || !last.CostBasis.IsZero() {
		t.Errorf("tail must carry zero basis and a shortfall flag, got %+v", last)
	}
	// tail proceeds: 750 * 3/5 = 450
	if !last.Proceeds.Equal(dec("450")) {
		t.Errorf("expected tail proceeds 450, got %s", last.Proceeds)
	}
}

func TestDispose_StrictBrokerIsolation(t *testing.T) {
	cfg := domain.DefaultComplianceConfig()
	cfg.StrictBrokerMode = true
	cfg.BrokerSources = map[string]struct{}{"sourceB": {}}

	l := ledger.New()
	l.Acquire("BTC", "sourceA", dec("1"), dec("10000"), day(2023, 1, 1), "buy")
	c := New(l, cfg)

	ev := c.Dispose(DisposeInput{
		DisposalID: "d", TxID: "s", Coin: "BTC", Source: "sourceB",
		Amount: dec("1"), UnitPriceUSD: dec("20000"), Date: day(2023, 6, 1),
	})

	if !ev.CostBasis.IsZero() {
		t.Errorf("strict mode must not borrow source A basis, got %s", ev.CostBasis)
	}
	if !ev.Proceeds.Equal(dec("20000")) {
		t.Errorf("proceeds still fully recognized, got %s", ev.Proceeds)
	}
}

func TestDispose_ExactDecimalAllocation(t *testing.T) {
	l := ledger.New()
	l.Acquire("ETH", "wallet", dec("0.1"), dec("2000"), day(2023, 1, 1), "a")
	l.Acquire("ETH", "wallet", dec("0.2"), dec("2000"), day(2023, 1, 2), "b")
	c := New(l, domain.DefaultComplianceConfig())

	ev := c.Dispose(DisposeInput{
		DisposalID: "d", TxID: "s", Coin: "ETH", Source: "wallet",
		Amount: dec("0.3"), UnitPriceUSD: dec("3000"), Date: day(2023, 6, 1),
	})

	// basis exactly 0.3 * 2000, proceeds exactly 0.3 * 3000
	if !ev.CostBasis.Equal(dec("600")) {
		t.Errorf("expected exact basis 600, got %s", ev.CostBasis)
	}
	if !ev.Gain.Equal(dec("300")) {
		t.Errorf("expected exact gain 300, got %s", ev.Gain)
	}
	sum := decimal.Zero
	for _, r := range ev.Records {
		sum = sum.Add(r.Gain)
	}
	if !sum.Equal(ev.Gain) {
		t.Errorf("per-lot gains must sum to the event gain: %s vs %s", sum, ev.Gain)
	}
}
