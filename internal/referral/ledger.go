// Package referral maintains the referrer/referred mapping and the
// append-only earnings journal consulted by trade settlement.
package referral

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"creatorvault/internal/domain"
	"creatorvault/internal/locks"
	"creatorvault/internal/models"
	"creatorvault/internal/repository"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 8

type Ledger struct {
	Repo   repository.Repository
	Locks  *locks.Keyed
	Logger *zap.Logger
}

// GenerateCode returns the caller's referral code, creating one on first
// call. Ownership is stored as a self-row so it does not consume the
// address's single referrer slot.
func (l *Ledger) GenerateCode(ctx context.Context, referrer string) (string, error) {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return "", fmt.Errorf("referrer address required: %w", domain.ErrInvalidInput)
	}

	existing, err := l.Repo.GetCodeOwnerRow(ctx, referrer)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.Code, nil
	}

	code, err := l.uniqueCode(ctx)
	if err != nil {
		return "", err
	}
	row := &models.Referral{
		Referrer:      referrer,
		Referred:      referrer,
		Code:          code,
		TotalEarnings: decimal.Zero,
		TotalVolume:   decimal.Zero,
	}
	if err := l.Repo.InsertReferral(ctx, row); err != nil {
		return "", err
	}
	return code, nil
}

func (l *Ledger) uniqueCode(ctx context.Context) (string, error) {
	for {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		exists, err := l.Repo.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}

// Register binds referred to the owner of code. Each address has at most one
// referrer, enforced here and by the unique index on referred.
func (l *Ledger) Register(ctx context.Context, code, referred string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	referred = strings.TrimSpace(referred)
	if code == "" || referred == "" {
		return "", fmt.Errorf("code and referred address required: %w", domain.ErrInvalidInput)
	}

	existing, err := l.Repo.GetReferralByReferred(ctx, referred)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", domain.ErrAlreadyReferred
	}

	owner, err := l.Repo.FindCodeOwnerByCode(ctx, code)
	if err != nil {
		return "", err
	}
	if owner == nil {
		return "", domain.ErrUnknownCode
	}
	if owner.Referrer == referred {
		return "", domain.ErrSelfReferral
	}

	row := &models.Referral{
		Referrer:      owner.Referrer,
		Referred:      referred,
		Code:          code,
		TotalEarnings: decimal.Zero,
		TotalVolume:   decimal.Zero,
	}
	if err := l.Repo.InsertReferral(ctx, row); err != nil {
		return "", err
	}
	return owner.Referrer, nil
}

// Lookup returns the relationship row for a trader, or nil when the trader
// has no referrer. Self-rows mark code ownership and are not relationships.
func (l *Ledger) Lookup(ctx context.Context, trader string) (*models.Referral, error) {
	rel, err := l.Repo.GetReferralByReferred(ctx, trader)
	if err != nil {
		return nil, err
	}
	if rel == nil || rel.Referrer == rel.Referred {
		return nil, nil
	}
	return rel, nil
}

// CreditTx appends an earnings row and bumps the referrer's cumulative
// totals, inside the caller's settlement transaction. Callers serialize per
// referrer via Locks before invoking.
func (l *Ledger) CreditTx(ctx context.Context, tx *gorm.DB, rel *models.Referral, tradeID string, earnings, tradeValue decimal.Decimal) error {
	if rel == nil || !earnings.IsPositive() {
		return nil
	}
	if err := l.Repo.InsertReferralEarningTx(ctx, tx, &models.ReferralEarning{
		Referrer:   rel.Referrer,
		Referred:   rel.Referred,
		TradeID:    tradeID,
		Earnings:   earnings,
		TradeValue: tradeValue,
	}); err != nil {
		return err
	}
	return l.Repo.IncrementReferralTotalsTx(ctx, tx, rel.Referred, earnings, tradeValue)
}

// Summary is the aggregate view served at /api/referrals/:address.
type Summary struct {
	Address        string                   `json:"address"`
	Code           string                   `json:"code,omitempty"`
	TotalEarnings  decimal.Decimal          `json:"total_earnings"`
	TotalTrades    int64                    `json:"total_trades"`
	TotalVolume    decimal.Decimal          `json:"total_volume"`
	TotalReferrals int64                    `json:"total_referrals"`
	History        []models.ReferralEarning `json:"history"`
}

func (l *Ledger) Summary(ctx context.Context, address string, historyLimit int) (*Summary, error) {
	agg, err := l.Repo.SummarizeReferralEarnings(ctx, address)
	if err != nil {
		return nil, err
	}
	history, err := l.Repo.ListReferralEarnings(ctx, address, historyLimit)
	if err != nil {
		return nil, err
	}
	out := &Summary{
		Address:        address,
		TotalEarnings:  agg.TotalEarnings,
		TotalTrades:    agg.TotalTrades,
		TotalVolume:    agg.TotalVolume,
		TotalReferrals: agg.TotalReferrals,
		History:        history,
	}
	ownRow, err := l.Repo.GetCodeOwnerRow(ctx, address)
	if err != nil {
		return nil, err
	}
	if ownRow != nil {
		out.Code = ownRow.Code
	}
	return out, nil
}
