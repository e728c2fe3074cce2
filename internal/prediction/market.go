// Package prediction implements the parimutuel engagement-metric market:
// pooled YES/NO wagers, odds that dilute as a side fills, and proportional
// payout of the whole pool at resolution.
package prediction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"creatorvault/internal/domain"
	"creatorvault/internal/locks"
	"creatorvault/internal/metrics"
	"creatorvault/internal/models"
	"creatorvault/internal/repository"
)

type Service struct {
	Repo   repository.Repository
	Reader metrics.Reader
	Locks  *locks.Keyed
	Logger *zap.Logger
}

// CreateMarketParams are the caller-supplied market parameters. The initial
// observed value comes from the metric collaborator at registration time.
type CreateMarketParams struct {
	Creator      string
	ContentRef   string
	Platform     string
	MetricType   string
	TargetValue  float64
	Timeframe    time.Duration
	InitialValue float64
}

func (s *Service) CreateMarket(ctx context.Context, params CreateMarketParams) (*models.PredictionMarket, error) {
	params.Creator = strings.TrimSpace(params.Creator)
	params.ContentRef = strings.TrimSpace(params.ContentRef)
	params.MetricType = strings.ToLower(strings.TrimSpace(params.MetricType))
	if params.Creator == "" || params.ContentRef == "" || params.MetricType == "" {
		return nil, fmt.Errorf("creator, content ref and metric type required: %w", domain.ErrInvalidInput)
	}
	if params.TargetValue <= 0 {
		return nil, fmt.Errorf("target value must be positive: %w", domain.ErrInvalidInput)
	}
	if params.Timeframe <= 0 {
		return nil, fmt.Errorf("timeframe must be positive: %w", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	market := &models.PredictionMarket{
		ID:            marketID(params.Creator, params.ContentRef, now),
		Creator:       params.Creator,
		ContentRef:    params.ContentRef,
		Platform:      strings.ToLower(params.Platform),
		MetricType:    params.MetricType,
		TargetValue:   params.TargetValue,
		InitialValue:  params.InitialValue,
		EndTime:       now.Add(params.Timeframe),
		YesPool:       decimal.Zero,
		NoPool:        decimal.Zero,
		CarryoverPool: decimal.Zero,
		Status:        models.MarketStatusActive,
	}
	if err := s.Repo.InsertPredictionMarket(ctx, market); err != nil {
		return nil, err
	}
	return market, nil
}

// marketID mirrors the platform's short content-addressed ids: sha256 over
// creator, content and creation time, truncated to 16 hex chars.
func marketID(creator, contentRef string, at time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", creator, contentRef, at.UnixNano())))
	return strings.ToUpper(hex.EncodeToString(sum[:])[:16])
}

// PlaceWager stakes on one side of an open market. Parimutuel odds: the
// shared total pool divided by the staker's side after the stake, so odds
// shrink as a side fills and a late bettor only dilutes their own side.
func (s *Service) PlaceWager(ctx context.Context, marketID, trader, side string, stake decimal.Decimal) (*models.PredictionTrade, error) {
	trader = strings.TrimSpace(trader)
	if trader == "" {
		return nil, fmt.Errorf("trader address required: %w", domain.ErrInvalidInput)
	}
	side = strings.ToUpper(strings.TrimSpace(side))
	if side != models.OutcomeYes && side != models.OutcomeNo {
		return nil, fmt.Errorf("side must be YES or NO: %w", domain.ErrInvalidInput)
	}
	if !stake.IsPositive() {
		return nil, fmt.Errorf("stake must be positive: %w", domain.ErrInvalidInput)
	}

	s.Locks.Lock("market:" + marketID)
	defer s.Locks.Unlock("market:" + marketID)

	market, err := s.Repo.GetPredictionMarketByID(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, fmt.Errorf("market %s: %w", marketID, domain.ErrNotFound)
	}
	if market.Status != models.MarketStatusActive || !time.Now().UTC().Before(market.EndTime) {
		return nil, domain.ErrMarketClosed
	}

	sidePool := market.YesPool
	if side == models.OutcomeNo {
		sidePool = market.NoPool
	}
	newSidePool := sidePool.Add(stake)
	totalAfter := market.YesPool.Add(market.NoPool).Add(stake)
	odds := totalAfter.Div(newSidePool)

	wager := &models.PredictionTrade{
		ID:              uuid.NewString(),
		MarketID:        market.ID,
		Trader:          trader,
		Side:            side,
		Stake:           stake,
		OddsAtTrade:     odds,
		PotentialPayout: stake.Mul(odds),
		Status:          models.WagerStatusPending,
		PayoutAmount:    decimal.Zero,
	}

	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Repo.IncrementMarketPoolTx(ctx, tx, market.ID, side, stake); err != nil {
			return err
		}
		return s.Repo.InsertPredictionTradeTx(ctx, tx, wager)
	})
	if err != nil {
		return nil, err
	}
	return wager, nil
}

// ResolveResult summarizes a resolution for the caller and the treasury
// collaborator.
type ResolveResult struct {
	MarketID   string          `json:"market_id"`
	Outcome    string          `json:"outcome"`
	FinalValue float64         `json:"final_value"`
	TotalPool  decimal.Decimal `json:"total_pool"`
	Winners    int             `json:"winners"`
	// Carryover is the whole pool when nobody bet on the winning side; the
	// external treasury policy collects it.
	Carryover decimal.Decimal `json:"carryover"`
}

// Resolve settles a market against the final observed metric value. Each
// pending wager on the winning side receives total_pool * stake/winning_pool
// so the payouts sum to exactly the pool; the wager-time potential payout is
// only an estimate and is not consulted.
func (s *Service) Resolve(ctx context.Context, marketID string, finalValue float64) (*ResolveResult, error) {
	s.Locks.Lock("market:" + marketID)
	defer s.Locks.Unlock("market:" + marketID)

	market, err := s.Repo.GetPredictionMarketByID(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, fmt.Errorf("market %s: %w", marketID, domain.ErrNotFound)
	}
	if market.Status != models.MarketStatusActive && market.Status != models.MarketStatusResolving {
		return nil, domain.ErrAlreadyResolved
	}

	outcome := models.OutcomeNo
	if finalValue >= market.TargetValue {
		outcome = models.OutcomeYes
	}
	totalPool := market.YesPool.Add(market.NoPool)
	winningPool := market.YesPool
	if outcome == models.OutcomeNo {
		winningPool = market.NoPool
	}

	result := &ResolveResult{
		MarketID:   market.ID,
		Outcome:    outcome,
		FinalValue: finalValue,
		TotalPool:  totalPool,
		Carryover:  decimal.Zero,
	}
	if winningPool.IsZero() {
		result.Carryover = totalPool
	}

	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		pending, err := s.Repo.ListPendingTradesTx(ctx, tx, market.ID)
		if err != nil {
			return err
		}
		for _, wager := range pending {
			if wager.Side != outcome || winningPool.IsZero() {
				if err := s.Repo.SettlePredictionTradeTx(ctx, tx, wager.ID, models.WagerStatusLost, decimal.Zero); err != nil {
					return err
				}
				continue
			}
			payout := totalPool.Mul(wager.Stake).Div(winningPool)
			if err := s.Repo.SettlePredictionTradeTx(ctx, tx, wager.ID, models.WagerStatusWon, payout); err != nil {
				return err
			}
			result.Winners++
		}
		return s.Repo.ResolveMarketTx(ctx, tx, market.ID, outcome, finalValue, result.Carryover, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	if s.Logger != nil {
		s.Logger.Info("market resolved",
			zap.String("market", market.ID),
			zap.String("outcome", outcome),
			zap.Float64("final_value", finalValue),
			zap.Int("winners", result.Winners),
			zap.String("carryover", result.Carryover.String()),
		)
	}
	return result, nil
}

// CheckTarget records an observed reading against an active market and moves
// it to resolving when the target is already met. Resolution still requires
// an explicit Resolve call with a final reading. Holds the market lock so a
// concurrent Resolve cannot land between the read and the status write; the
// active-only transition guard backs that up at the row level.
func (s *Service) CheckTarget(ctx context.Context, marketID string, observed float64) (bool, error) {
	s.Locks.Lock("market:" + marketID)
	defer s.Locks.Unlock("market:" + marketID)

	market, err := s.Repo.GetPredictionMarketByID(ctx, marketID)
	if err != nil {
		return false, err
	}
	if market == nil {
		return false, fmt.Errorf("market %s: %w", marketID, domain.ErrNotFound)
	}
	if market.Status != models.MarketStatusActive || observed < market.TargetValue {
		return false, nil
	}
	moved, err := s.Repo.TransitionMarketStatus(ctx, market.ID, models.MarketStatusActive, models.MarketStatusResolving)
	if err != nil {
		return false, err
	}
	return moved, nil
}

// Claim releases a won wager's payout to the payment-execution collaborator.
// The engine records the claim; it does not move funds. Serialized per wager
// so concurrent claims cannot both observe claimed == false.
func (s *Service) Claim(ctx context.Context, tradeID, claimant string) (decimal.Decimal, error) {
	s.Locks.Lock("wager:" + tradeID)
	defer s.Locks.Unlock("wager:" + tradeID)

	wager, err := s.Repo.GetPredictionTradeByID(ctx, tradeID)
	if err != nil {
		return decimal.Zero, err
	}
	if wager == nil {
		return decimal.Zero, fmt.Errorf("trade %s: %w", tradeID, domain.ErrNotFound)
	}
	if claimant != "" && wager.Trader != claimant {
		return decimal.Zero, fmt.Errorf("trade belongs to another trader: %w", domain.ErrInvalidClaim)
	}
	if wager.Status != models.WagerStatusWon {
		return decimal.Zero, domain.ErrInvalidClaim
	}
	if wager.Claimed {
		return decimal.Zero, domain.ErrAlreadyClaimed
	}
	if err := s.Repo.MarkTradeClaimed(ctx, wager.ID, time.Now().UTC()); err != nil {
		return decimal.Zero, err
	}
	return wager.PayoutAmount, nil
}
