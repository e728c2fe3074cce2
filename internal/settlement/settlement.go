// Package settlement turns curve quotes into committed state transitions:
// token state, trade record, and referral credit move together or not at all.
package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"creatorvault/internal/config"
	"creatorvault/internal/curve"
	"creatorvault/internal/domain"
	"creatorvault/internal/locks"
	"creatorvault/internal/models"
	"creatorvault/internal/referral"
	"creatorvault/internal/repository"
)

type Service struct {
	Repo   repository.Repository
	Ledger *referral.Ledger
	Fees   config.FeesConfig
	Locks  *locks.Keyed
	Logger *zap.Logger
}

// TradeResult is handed to the on-chain settlement collaborator, which
// performs the actual asset transfer.
type TradeResult struct {
	TradeID     string          `json:"trade_id"`
	TokenID     string          `json:"token_id"`
	Side        string          `json:"side"`
	TokenAmount float64         `json:"token_amount"`
	TotalValue  decimal.Decimal `json:"total_value"`
	UnitPrice   float64         `json:"unit_price"`
	// PriceImpact is (new-old)/old; positive on buys, negative on sells.
	PriceImpact      float64         `json:"price_impact"`
	CreatorFee       decimal.Decimal `json:"creator_fee"`
	PlatformFee      decimal.Decimal `json:"platform_fee"`
	ReferralEarnings decimal.Decimal `json:"referral_earnings"`
	NewSupply        float64         `json:"new_supply"`
	NewReserve       float64         `json:"new_reserve"`
}

// Estimate quotes a trade against current token state without committing
// anything.
func (s *Service) Estimate(ctx context.Context, tokenID, side string, amount float64) (*TradeResult, error) {
	token, engine, err := s.loadToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	quote, err := s.quote(engine, token, side, amount)
	if err != nil {
		return nil, err
	}
	return s.buildResult("", token, side, amount, quote), nil
}

// ExecuteTrade validates, quotes, splits fees, credits the trader's referrer
// if one is registered, and commits the mutated token state plus the trade
// and earnings rows atomically. Validation happens before any mutation; a
// failed trade leaves no trace.
func (s *Service) ExecuteTrade(ctx context.Context, tokenID, trader, side string, amount float64) (*TradeResult, error) {
	trader = strings.TrimSpace(trader)
	if trader == "" {
		return nil, fmt.Errorf("trader address required: %w", domain.ErrInvalidInput)
	}
	side = strings.ToLower(strings.TrimSpace(side))
	if side != models.TradeSideBuy && side != models.TradeSideSell {
		return nil, fmt.Errorf("side must be buy or sell: %w", domain.ErrInvalidInput)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("token amount must be positive: %w", domain.ErrInvalidInput)
	}

	// Single writer per token: the quote is computed on state that cannot
	// change before the commit below.
	s.Locks.Lock("token:" + tokenID)
	defer s.Locks.Unlock("token:" + tokenID)

	token, engine, err := s.loadToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	quote, err := s.quote(engine, token, side, amount)
	if err != nil {
		return nil, err
	}

	totalValue := decimal.NewFromFloat(quote.Cost)
	creatorFee := totalValue.Mul(decimal.NewFromFloat(s.Fees.CreatorRate))
	platformFee := totalValue.Mul(decimal.NewFromFloat(s.Fees.PlatformRate))

	rel, err := s.Ledger.Lookup(ctx, trader)
	if err != nil {
		return nil, err
	}
	referralEarnings := decimal.Zero
	var referralCode *string
	if rel != nil {
		referralEarnings = totalValue.Mul(decimal.NewFromFloat(s.Fees.ReferralRate))
		referralCode = &rel.Code
	}

	tradeID := uuid.NewString()
	trade := &models.Trade{
		ID:               tradeID,
		TokenID:          token.ID,
		Trader:           trader,
		Side:             side,
		TokenAmount:      amount,
		UnitPrice:        quote.NewPrice,
		TotalValue:       totalValue,
		CreatorFee:       creatorFee,
		PlatformFee:      platformFee,
		ReferralEarnings: referralEarnings,
		ReferralCode:     referralCode,
	}
	state := repository.TokenState{
		CirculatingSupply: quote.NewSupply,
		ReserveBalance:    quote.NewReserveBalance,
		CurrentPrice:      quote.NewPrice,
		MarketCap:         quote.NewSupply * quote.NewPrice,
	}

	if rel != nil {
		s.Locks.Lock("referrer:" + rel.Referrer)
		defer s.Locks.Unlock("referrer:" + rel.Referrer)
	}

	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Repo.UpdateTokenStateTx(ctx, tx, token.ID, state); err != nil {
			return err
		}
		if err := s.Repo.InsertTradeTx(ctx, tx, trade); err != nil {
			return err
		}
		return s.Ledger.CreditTx(ctx, tx, rel, tradeID, referralEarnings, totalValue)
	})
	if err != nil {
		return nil, err
	}

	if s.Logger != nil {
		s.Logger.Info("trade settled",
			zap.String("token", token.ID),
			zap.String("side", side),
			zap.Float64("amount", amount),
			zap.String("total_value", totalValue.String()),
		)
	}
	result := s.buildResult(tradeID, token, side, amount, quote)
	result.ReferralEarnings = referralEarnings
	return result, nil
}

func (s *Service) loadToken(ctx context.Context, tokenID string) (*models.Token, *curve.Engine, error) {
	token, err := s.Repo.GetTokenByID(ctx, tokenID)
	if err != nil {
		return nil, nil, err
	}
	if token == nil {
		return nil, nil, fmt.Errorf("token %s: %w", tokenID, domain.ErrNotFound)
	}
	engine, err := curve.Restore(token.CurveConfig)
	if err != nil {
		return nil, nil, err
	}
	return token, engine, nil
}

func (s *Service) quote(engine *curve.Engine, token *models.Token, side string, amount float64) (curve.Quote, error) {
	if side == models.TradeSideSell {
		return engine.QuoteSell(token.CirculatingSupply, token.ReserveBalance, amount)
	}
	return engine.QuoteBuy(token.CirculatingSupply, token.ReserveBalance, amount)
}

func (s *Service) buildResult(tradeID string, token *models.Token, side string, amount float64, quote curve.Quote) *TradeResult {
	totalValue := decimal.NewFromFloat(quote.Cost)
	creatorFee := totalValue.Mul(decimal.NewFromFloat(s.Fees.CreatorRate))
	platformFee := totalValue.Mul(decimal.NewFromFloat(s.Fees.PlatformRate))

	impact := 0.0
	if token.CurrentPrice > 0 {
		impact = (quote.NewPrice - token.CurrentPrice) / token.CurrentPrice
	}
	return &TradeResult{
		TradeID:     tradeID,
		TokenID:     token.ID,
		Side:        side,
		TokenAmount: amount,
		TotalValue:  totalValue,
		UnitPrice:   quote.NewPrice,
		PriceImpact: impact,
		CreatorFee:  creatorFee,
		PlatformFee: platformFee,
		NewSupply:   quote.NewSupply,
		NewReserve:  quote.NewReserveBalance,
	}
}

// Volume24h reports the rolling trade volume used on token listings.
func (s *Service) Volume24h(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	return s.Repo.SumTradeVolumeSince(ctx, tokenID, time.Now().UTC().Add(-24*time.Hour))
}
