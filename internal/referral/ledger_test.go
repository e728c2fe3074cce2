package referral

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"creatorvault/internal/domain"
	"creatorvault/internal/locks"
	"creatorvault/internal/repository/repotest"
)

func newLedger(store *repotest.Store) *Ledger {
	return &Ledger{Repo: store, Locks: locks.NewKeyed()}
}

func TestGenerateCodeIsIdempotent(t *testing.T) {
	store := repotest.New()
	ledger := newLedger(store)
	ctx := context.Background()

	code, err := ledger.GenerateCode(ctx, "alice")
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if len(code) != codeLength {
		t.Fatalf("code %q has length %d, want %d", code, len(code), codeLength)
	}

	again, err := ledger.GenerateCode(ctx, "alice")
	if err != nil {
		t.Fatalf("GenerateCode again: %v", err)
	}
	if again != code {
		t.Fatalf("second call returned %q, want %q", again, code)
	}
	if len(store.Referrals) != 1 {
		t.Fatalf("expected single ownership row, got %d", len(store.Referrals))
	}
}

func TestGenerateCodeRejectsEmptyAddress(t *testing.T) {
	ledger := newLedger(repotest.New())
	if _, err := ledger.GenerateCode(context.Background(), "  "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
}

func TestRegister(t *testing.T) {
	store := repotest.New()
	ledger := newLedger(store)
	ctx := context.Background()

	code, err := ledger.GenerateCode(ctx, "alice")
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}

	referrer, err := ledger.Register(ctx, code, "bob")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if referrer != "alice" {
		t.Fatalf("referrer = %q, want alice", referrer)
	}

	rel, err := ledger.Lookup(ctx, "bob")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rel == nil || rel.Referrer != "alice" {
		t.Fatalf("lookup returned %+v, want alice relationship", rel)
	}
}

func TestRegisterRejectsSecondReferrer(t *testing.T) {
	store := repotest.New()
	ledger := newLedger(store)
	ctx := context.Background()

	codeA, _ := ledger.GenerateCode(ctx, "alice")
	codeC, _ := ledger.GenerateCode(ctx, "carol")

	if _, err := ledger.Register(ctx, codeA, "bob"); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, err := ledger.Register(ctx, codeC, "bob"); !errors.Is(err, domain.ErrAlreadyReferred) {
		t.Fatalf("second Register: got %v, want ErrAlreadyReferred", err)
	}
}

func TestRegisterRejectsUnknownCode(t *testing.T) {
	ledger := newLedger(repotest.New())
	if _, err := ledger.Register(context.Background(), "NOPE1234", "bob"); !errors.Is(err, domain.ErrUnknownCode) {
		t.Fatalf("got %v, want ErrUnknownCode", err)
	}
}

func TestRegisterRejectsSelfReferral(t *testing.T) {
	ledger := newLedger(repotest.New())
	ctx := context.Background()

	code, err := ledger.GenerateCode(ctx, "alice")
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if _, err := ledger.Register(ctx, code, "alice"); !errors.Is(err, domain.ErrSelfReferral) {
		t.Fatalf("got %v, want ErrSelfReferral", err)
	}
}

func TestLookupIgnoresOwnershipRows(t *testing.T) {
	ledger := newLedger(repotest.New())
	ctx := context.Background()

	if _, err := ledger.GenerateCode(ctx, "alice"); err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	rel, err := ledger.Lookup(ctx, "alice")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rel != nil {
		t.Fatalf("ownership row leaked as relationship: %+v", rel)
	}
}

func TestCreditTxUpdatesJournalAndTotals(t *testing.T) {
	store := repotest.New()
	ledger := newLedger(store)
	ctx := context.Background()

	code, _ := ledger.GenerateCode(ctx, "alice")
	if _, err := ledger.Register(ctx, code, "bob"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	rel, _ := ledger.Lookup(ctx, "bob")

	earnings := decimal.RequireFromString("0.05")
	volume := decimal.RequireFromString("500")
	if err := ledger.CreditTx(ctx, nil, rel, "trade-1", earnings, volume); err != nil {
		t.Fatalf("CreditTx: %v", err)
	}

	if len(store.Earnings) != 1 {
		t.Fatalf("expected 1 journal row, got %d", len(store.Earnings))
	}
	row := store.Earnings[0]
	if row.Referrer != "alice" || row.TradeID != "trade-1" || !row.Earnings.Equal(earnings) {
		t.Fatalf("journal row = %+v", row)
	}

	summary, err := ledger.Summary(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !summary.TotalEarnings.Equal(earnings) {
		t.Fatalf("total earnings = %s, want %s", summary.TotalEarnings, earnings)
	}
	if summary.TotalTrades != 1 || summary.TotalReferrals != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Code != code {
		t.Fatalf("summary code = %q, want %q", summary.Code, code)
	}
}

func TestSummaryPropagatesRepoErrors(t *testing.T) {
	store := repotest.New()
	ledger := newLedger(store)
	ctx := context.Background()

	if _, err := ledger.GenerateCode(ctx, "alice"); err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}

	store.FailGetCodeOwner = true
	summary, err := ledger.Summary(ctx, "alice", 10)
	if err == nil {
		t.Fatal("code lookup failure must surface, not degrade to no code")
	}
	if summary != nil {
		t.Fatalf("expected nil summary on error, got %+v", summary)
	}
}

func TestCreditTxSkipsZeroEarnings(t *testing.T) {
	store := repotest.New()
	ledger := newLedger(store)
	ctx := context.Background()

	code, _ := ledger.GenerateCode(ctx, "alice")
	if _, err := ledger.Register(ctx, code, "bob"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	rel, _ := ledger.Lookup(ctx, "bob")

	if err := ledger.CreditTx(ctx, nil, rel, "trade-1", decimal.Zero, decimal.RequireFromString("10")); err != nil {
		t.Fatalf("CreditTx: %v", err)
	}
	if len(store.Earnings) != 0 {
		t.Fatalf("zero earnings should not write a journal row, got %d", len(store.Earnings))
	}
	if err := ledger.CreditTx(ctx, nil, nil, "trade-2", decimal.RequireFromString("1"), decimal.RequireFromString("10")); err != nil {
		t.Fatalf("CreditTx without relationship: %v", err)
	}
	if len(store.Earnings) != 0 {
		t.Fatalf("missing relationship should not write a journal row, got %d", len(store.Earnings))
	}
}
