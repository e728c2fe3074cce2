package settlement

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"creatorvault/internal/config"
	"creatorvault/internal/domain"
	"creatorvault/internal/locks"
	"creatorvault/internal/models"
	"creatorvault/internal/referral"
	"creatorvault/internal/repository/repotest"
)

func newService(store *repotest.Store) *Service {
	keyed := locks.NewKeyed()
	return &Service{
		Repo:   store,
		Ledger: &referral.Ledger{Repo: store, Locks: keyed},
		Fees: config.FeesConfig{
			CreatorRate:  0.05,
			PlatformRate: 0.02,
			ReferralRate: 0.0001,
		},
		Locks: keyed,
	}
}

func mintToken(t *testing.T, svc *Service) *models.Token {
	t.Helper()
	token, err := svc.Mint(context.Background(), MintParams{
		Creator:      "alice",
		Name:         "Alice Coin",
		Symbol:       "alc",
		TotalSupply:  1_000_000,
		InitialPrice: 0.001,
		Steepness:    0.5,
	}, 0.5)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return token
}

func TestMint(t *testing.T) {
	store := repotest.New()
	svc := newService(store)

	token := mintToken(t, svc)
	if token.Symbol != "ALC" {
		t.Fatalf("symbol = %q, want ALC", token.Symbol)
	}
	if token.CirculatingSupply != 0 || token.ReserveBalance != 0 {
		t.Fatalf("token should start at zero circulation: %+v", token)
	}
	if math.Abs(token.CurrentPrice-0.0015) > 1e-9 {
		t.Fatalf("genesis price = %v, want 0.0015", token.CurrentPrice)
	}
	if len(token.CurveConfig) == 0 {
		t.Fatal("curve config blob missing")
	}
}

func TestMintRejectsInvalidParams(t *testing.T) {
	svc := newService(repotest.New())
	ctx := context.Background()

	cases := []MintParams{
		{Creator: "", Name: "x", Symbol: "X", TotalSupply: 1, InitialPrice: 1},
		{Creator: "a", Name: "x", Symbol: "X", TotalSupply: 0, InitialPrice: 1},
		{Creator: "a", Name: "x", Symbol: "X", TotalSupply: 1, InitialPrice: -2},
	}
	for i, params := range cases {
		if _, err := svc.Mint(ctx, params, 0.5); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("case %d: got %v, want ErrInvalidInput", i, err)
		}
	}
}

func TestExecuteTradeBuy(t *testing.T) {
	store := repotest.New()
	svc := newService(store)
	token := mintToken(t, svc)
	ctx := context.Background()

	result, err := svc.ExecuteTrade(ctx, token.ID, "bob", "buy", 100_000)
	if err != nil {
		t.Fatalf("ExecuteTrade: %v", err)
	}

	wantCost := 1.5e9/900_000 - 1500
	cost, _ := result.TotalValue.Float64()
	if math.Abs(cost-wantCost) > 1e-6 {
		t.Fatalf("total value = %v, want %v", cost, wantCost)
	}
	if result.PriceImpact <= 0 {
		t.Fatalf("buy impact = %v, want positive", result.PriceImpact)
	}

	fees := result.CreatorFee.Add(result.PlatformFee).Add(result.ReferralEarnings)
	if fees.GreaterThan(result.TotalValue) {
		t.Fatalf("fee split %s exceeds total value %s", fees, result.TotalValue)
	}
	wantCreator := result.TotalValue.Mul(decimal.RequireFromString("0.05"))
	if !result.CreatorFee.Equal(wantCreator) {
		t.Fatalf("creator fee = %s, want %s", result.CreatorFee, wantCreator)
	}

	stored, _ := store.GetTokenByID(ctx, token.ID)
	if stored.CirculatingSupply != 100_000 {
		t.Fatalf("stored supply = %v, want 100000", stored.CirculatingSupply)
	}
	if math.Abs(stored.ReserveBalance-wantCost) > 1e-6 {
		t.Fatalf("stored reserve = %v, want %v", stored.ReserveBalance, wantCost)
	}
	if len(store.Trades) != 1 {
		t.Fatalf("expected 1 trade row, got %d", len(store.Trades))
	}
	if store.Trades[0].ReferralCode != nil {
		t.Fatalf("unreferred trader should have no referral code, got %v", *store.Trades[0].ReferralCode)
	}
}

func TestExecuteTradeSell(t *testing.T) {
	store := repotest.New()
	svc := newService(store)
	token := mintToken(t, svc)
	ctx := context.Background()

	if _, err := svc.ExecuteTrade(ctx, token.ID, "bob", "buy", 200_000); err != nil {
		t.Fatalf("buy: %v", err)
	}
	result, err := svc.ExecuteTrade(ctx, token.ID, "bob", "sell", 50_000)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if result.PriceImpact >= 0 {
		t.Fatalf("sell impact = %v, want negative", result.PriceImpact)
	}

	stored, _ := store.GetTokenByID(ctx, token.ID)
	if stored.CirculatingSupply != 150_000 {
		t.Fatalf("stored supply = %v, want 150000", stored.CirculatingSupply)
	}
}

func TestExecuteTradeCreditsReferrer(t *testing.T) {
	store := repotest.New()
	svc := newService(store)
	token := mintToken(t, svc)
	ctx := context.Background()

	code, err := svc.Ledger.GenerateCode(ctx, "alice")
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if _, err := svc.Ledger.Register(ctx, code, "bob"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	result, err := svc.ExecuteTrade(ctx, token.ID, "bob", "buy", 100_000)
	if err != nil {
		t.Fatalf("ExecuteTrade: %v", err)
	}
	wantEarnings := result.TotalValue.Mul(decimal.RequireFromString("0.0001"))
	if !result.ReferralEarnings.Equal(wantEarnings) {
		t.Fatalf("referral earnings = %s, want %s", result.ReferralEarnings, wantEarnings)
	}
	if len(store.Earnings) != 1 {
		t.Fatalf("expected 1 earnings row, got %d", len(store.Earnings))
	}
	if store.Earnings[0].Referrer != "alice" {
		t.Fatalf("earnings credited to %q, want alice", store.Earnings[0].Referrer)
	}
	if store.Trades[0].ReferralCode == nil || *store.Trades[0].ReferralCode != code {
		t.Fatalf("trade should carry the attributed code")
	}
}

func TestExecuteTradeIsAtomic(t *testing.T) {
	store := repotest.New()
	svc := newService(store)
	token := mintToken(t, svc)
	ctx := context.Background()

	store.FailInsertTrade = true
	if _, err := svc.ExecuteTrade(ctx, token.ID, "bob", "buy", 100_000); err == nil {
		t.Fatal("expected forced failure")
	}

	stored, _ := store.GetTokenByID(ctx, token.ID)
	if stored.CirculatingSupply != 0 || stored.ReserveBalance != 0 {
		t.Fatalf("failed trade mutated token state: %+v", stored)
	}
	if len(store.Trades) != 0 || len(store.Earnings) != 0 {
		t.Fatalf("failed trade left rows behind: %d trades, %d earnings", len(store.Trades), len(store.Earnings))
	}

	store.FailInsertTrade = false
	if _, err := svc.ExecuteTrade(ctx, token.ID, "bob", "buy", 100_000); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestExecuteTradeValidation(t *testing.T) {
	store := repotest.New()
	svc := newService(store)
	token := mintToken(t, svc)
	ctx := context.Background()

	if _, err := svc.ExecuteTrade(ctx, token.ID, "", "buy", 10); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("empty trader: got %v, want ErrInvalidInput", err)
	}
	if _, err := svc.ExecuteTrade(ctx, token.ID, "bob", "short", 10); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("bad side: got %v, want ErrInvalidInput", err)
	}
	if _, err := svc.ExecuteTrade(ctx, token.ID, "bob", "buy", -1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("negative amount: got %v, want ErrInvalidInput", err)
	}
	if _, err := svc.ExecuteTrade(ctx, "missing", "bob", "buy", 10); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing token: got %v, want ErrNotFound", err)
	}
	if _, err := svc.ExecuteTrade(ctx, token.ID, "bob", "sell", 10); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("sell at zero circulation: got %v, want ErrInsufficientBalance", err)
	}
}

func TestEstimateDoesNotCommit(t *testing.T) {
	store := repotest.New()
	svc := newService(store)
	token := mintToken(t, svc)
	ctx := context.Background()

	est, err := svc.Estimate(ctx, token.ID, "buy", 100_000)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.TradeID != "" {
		t.Fatalf("estimate should not mint a trade id, got %q", est.TradeID)
	}

	stored, _ := store.GetTokenByID(ctx, token.ID)
	if stored.CirculatingSupply != 0 || len(store.Trades) != 0 {
		t.Fatal("estimate mutated state")
	}

	executed, err := svc.ExecuteTrade(ctx, token.ID, "bob", "buy", 100_000)
	if err != nil {
		t.Fatalf("ExecuteTrade: %v", err)
	}
	if !est.TotalValue.Equal(executed.TotalValue) {
		t.Fatalf("estimate %s differs from execution %s", est.TotalValue, executed.TotalValue)
	}
}
