package curve

import (
	"errors"
	"math"
	"testing"

	"creatorvault/internal/domain"
)

const tolerance = 1e-6

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= tolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestNewDerivesVirtualReserves(t *testing.T) {
	e := New(0.001, 1_000_000, 0.5)
	if e.VirtualTokenReserve != 1_000_000 {
		t.Fatalf("virtual token reserve = %v, want 1000000", e.VirtualTokenReserve)
	}
	if !almostEqual(e.VirtualAlgoReserve, 1500) {
		t.Fatalf("virtual algo reserve = %v, want 1500", e.VirtualAlgoReserve)
	}
	if !almostEqual(e.K, 1.5e9) {
		t.Fatalf("k = %v, want 1.5e9", e.K)
	}
	if !almostEqual(e.SpotPrice(0, 0), 0.0015) {
		t.Fatalf("spot price at genesis = %v, want 0.0015", e.SpotPrice(0, 0))
	}
}

func TestQuoteBuy(t *testing.T) {
	e := New(0.001, 1_000_000, 0.5)

	q, err := e.QuoteBuy(0, 0, 100_000)
	if err != nil {
		t.Fatalf("QuoteBuy: %v", err)
	}
	if !almostEqual(q.Cost, 1.5e9/900_000-1500) {
		t.Fatalf("cost = %v, want %v", q.Cost, 1.5e9/900_000-1500)
	}
	if !almostEqual(q.NewPrice, (1.5e9/900_000)/900_000) {
		t.Fatalf("new price = %v, want %v", q.NewPrice, (1.5e9/900_000)/900_000)
	}
	if q.NewSupply != 100_000 {
		t.Fatalf("new supply = %v, want 100000", q.NewSupply)
	}
	if !almostEqual(q.NewReserveBalance, q.Cost) {
		t.Fatalf("new reserve = %v, want cost %v", q.NewReserveBalance, q.Cost)
	}
	if q.NewPrice <= e.SpotPrice(0, 0) {
		t.Fatalf("buy should raise price: %v <= %v", q.NewPrice, e.SpotPrice(0, 0))
	}
}

func TestQuoteBuyPreservesProduct(t *testing.T) {
	e := New(0.001, 1_000_000, 0.5)
	supply, reserve := 0.0, 0.0
	for _, amount := range []float64{50_000, 120_000, 3_000, 400_000} {
		q, err := e.QuoteBuy(supply, reserve, amount)
		if err != nil {
			t.Fatalf("QuoteBuy(%v): %v", amount, err)
		}
		tokenReserve := e.VirtualTokenReserve - q.NewSupply
		totalReserve := e.VirtualAlgoReserve + q.NewReserveBalance
		if !almostEqual(tokenReserve*totalReserve, e.K) {
			t.Fatalf("product drifted after buy of %v: got %v, want %v", amount, tokenReserve*totalReserve, e.K)
		}
		supply, reserve = q.NewSupply, q.NewReserveBalance
	}
}

func TestBuyThenSellRoundTrip(t *testing.T) {
	e := New(0.001, 1_000_000, 0.5)

	buy, err := e.QuoteBuy(0, 0, 250_000)
	if err != nil {
		t.Fatalf("QuoteBuy: %v", err)
	}
	sell, err := e.QuoteSell(buy.NewSupply, buy.NewReserveBalance, 250_000)
	if err != nil {
		t.Fatalf("QuoteSell: %v", err)
	}
	if !almostEqual(sell.Cost, buy.Cost) {
		t.Fatalf("round trip proceeds = %v, want cost %v", sell.Cost, buy.Cost)
	}
	if !almostEqual(sell.NewSupply, 0) || !almostEqual(sell.NewReserveBalance, 0) {
		t.Fatalf("round trip should return to genesis, got supply=%v reserve=%v", sell.NewSupply, sell.NewReserveBalance)
	}
}

func TestMarginalCostIncreases(t *testing.T) {
	e := New(0.001, 1_000_000, 0.5)
	prev := 0.0
	supply, reserve := 0.0, 0.0
	for i := 0; i < 8; i++ {
		q, err := e.QuoteBuy(supply, reserve, 100_000)
		if err != nil {
			t.Fatalf("QuoteBuy #%d: %v", i, err)
		}
		if q.Cost <= prev {
			t.Fatalf("tranche %d cost %v not above previous %v", i, q.Cost, prev)
		}
		prev = q.Cost
		supply, reserve = q.NewSupply, q.NewReserveBalance
	}
}

func TestQuoteBuyRejectsDrainingReserve(t *testing.T) {
	e := New(0.001, 1_000_000, 0.5)
	if _, err := e.QuoteBuy(0, 0, 1_000_000); !errors.Is(err, domain.ErrInsufficientLiquidity) {
		t.Fatalf("draining buy: got %v, want ErrInsufficientLiquidity", err)
	}
	if _, err := e.QuoteBuy(0, 0, 2_000_000); !errors.Is(err, domain.ErrInsufficientLiquidity) {
		t.Fatalf("oversized buy: got %v, want ErrInsufficientLiquidity", err)
	}
}

func TestQuoteSellRejectsOversell(t *testing.T) {
	e := New(0.001, 1_000_000, 0.5)
	buy, err := e.QuoteBuy(0, 0, 10_000)
	if err != nil {
		t.Fatalf("QuoteBuy: %v", err)
	}
	if _, err := e.QuoteSell(buy.NewSupply, buy.NewReserveBalance, 10_001); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("oversell: got %v, want ErrInsufficientBalance", err)
	}
}

func TestQuoteRejectsNonPositiveAmount(t *testing.T) {
	e := New(0.001, 1_000_000, 0.5)
	for _, amount := range []float64{0, -5} {
		if _, err := e.QuoteBuy(0, 0, amount); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("QuoteBuy(%v): got %v, want ErrInvalidAmount", amount, err)
		}
		if _, err := e.QuoteSell(100, 10, amount); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("QuoteSell(%v): got %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestSteepnessControlsImpact(t *testing.T) {
	flat := New(0.001, 1_000_000, 0.1)
	steep := New(0.001, 1_000_000, 2.0)

	qFlat, err := flat.QuoteBuy(0, 0, 100_000)
	if err != nil {
		t.Fatalf("flat QuoteBuy: %v", err)
	}
	qSteep, err := steep.QuoteBuy(0, 0, 100_000)
	if err != nil {
		t.Fatalf("steep QuoteBuy: %v", err)
	}

	if qSteep.Cost <= qFlat.Cost {
		t.Fatalf("steeper curve should cost more: %v <= %v", qSteep.Cost, qFlat.Cost)
	}
	if steep.SpotPrice(0, 0) <= flat.SpotPrice(0, 0) {
		t.Fatalf("steeper curve should start higher: %v <= %v", steep.SpotPrice(0, 0), flat.SpotPrice(0, 0))
	}
}

func TestMarshalRestoreRoundTrip(t *testing.T) {
	e := New(0.002, 500_000, 0.8)
	blob, err := e.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	restored, err := Restore(blob)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.K != e.K || restored.VirtualAlgoReserve != e.VirtualAlgoReserve || restored.VirtualTokenReserve != e.VirtualTokenReserve {
		t.Fatalf("restored engine differs: %+v vs %+v", restored, e)
	}

	q1, err := e.QuoteBuy(1000, 2.5, 5000)
	if err != nil {
		t.Fatalf("QuoteBuy: %v", err)
	}
	q2, err := restored.QuoteBuy(1000, 2.5, 5000)
	if err != nil {
		t.Fatalf("restored QuoteBuy: %v", err)
	}
	if q1 != q2 {
		t.Fatalf("restored engine quotes differently: %+v vs %+v", q1, q2)
	}
}

func TestRestoreRejectsUnknownSchema(t *testing.T) {
	if _, err := Restore([]byte(`{"schema_version":99,"virtual_token_reserve":1,"virtual_algo_reserve":1}`)); err == nil {
		t.Fatal("expected error for unknown schema version")
	}
	if _, err := Restore([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed blob")
	}
	if _, err := Restore([]byte(`{"schema_version":1,"virtual_token_reserve":0,"virtual_algo_reserve":1}`)); err == nil {
		t.Fatal("expected error for non-positive reserves")
	}
}
