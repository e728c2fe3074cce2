package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"creatorvault/internal/models"
)

// Repository is the persistence boundary for both engines. Tx-suffixed
// methods run inside an InTx closure so a settlement or resolution commits
// all of its writes together or not at all.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Tokens
	CreateToken(ctx context.Context, item *models.Token) error
	GetTokenByID(ctx context.Context, id string) (*models.Token, error)
	ListTokens(ctx context.Context, params ListTokensParams) ([]models.Token, error)
	CountTokens(ctx context.Context, params ListTokensParams) (int64, error)
	UpdateTokenStateTx(ctx context.Context, tx *gorm.DB, id string, state TokenState) error

	// Trades
	InsertTradeTx(ctx context.Context, tx *gorm.DB, item *models.Trade) error
	ListTrades(ctx context.Context, params ListTradesParams) ([]models.Trade, error)
	CountTrades(ctx context.Context, params ListTradesParams) (int64, error)
	SumTradeVolumeSince(ctx context.Context, tokenID string, since time.Time) (decimal.Decimal, error)

	// Referrals
	InsertReferral(ctx context.Context, item *models.Referral) error
	GetReferralByReferred(ctx context.Context, referred string) (*models.Referral, error)
	GetCodeOwnerRow(ctx context.Context, address string) (*models.Referral, error)
	FindCodeOwnerByCode(ctx context.Context, code string) (*models.Referral, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	IncrementReferralTotalsTx(ctx context.Context, tx *gorm.DB, referred string, earnings, volume decimal.Decimal) error
	InsertReferralEarningTx(ctx context.Context, tx *gorm.DB, item *models.ReferralEarning) error
	SummarizeReferralEarnings(ctx context.Context, referrer string) (ReferralSummary, error)
	ListReferralEarnings(ctx context.Context, referrer string, limit int) ([]models.ReferralEarning, error)

	// Prediction markets
	InsertPredictionMarket(ctx context.Context, item *models.PredictionMarket) error
	GetPredictionMarketByID(ctx context.Context, id string) (*models.PredictionMarket, error)
	ListPredictionMarkets(ctx context.Context, params ListMarketsParams) ([]models.PredictionMarket, error)
	CountPredictionMarkets(ctx context.Context, params ListMarketsParams) (int64, error)
	ListExpiredActiveMarkets(ctx context.Context, now time.Time, limit int) ([]models.PredictionMarket, error)
	TransitionMarketStatus(ctx context.Context, id string, from, to string) (bool, error)
	IncrementMarketPoolTx(ctx context.Context, tx *gorm.DB, id string, side string, stake decimal.Decimal) error
	ResolveMarketTx(ctx context.Context, tx *gorm.DB, id string, outcome string, finalValue float64, carryover decimal.Decimal, resolvedAt time.Time) error

	// Prediction trades
	InsertPredictionTradeTx(ctx context.Context, tx *gorm.DB, item *models.PredictionTrade) error
	GetPredictionTradeByID(ctx context.Context, id string) (*models.PredictionTrade, error)
	ListPredictionTrades(ctx context.Context, marketID string) ([]models.PredictionTrade, error)
	ListPendingTradesTx(ctx context.Context, tx *gorm.DB, marketID string) ([]models.PredictionTrade, error)
	SettlePredictionTradeTx(ctx context.Context, tx *gorm.DB, id string, status string, payout decimal.Decimal) error
	MarkTradeClaimed(ctx context.Context, id string, at time.Time) error
	ListUnclaimedWinnings(ctx context.Context, trader string) ([]models.PredictionTrade, error)
}

// TokenState is the post-trade mutable state committed by settlement.
type TokenState struct {
	CirculatingSupply float64
	ReserveBalance    float64
	CurrentPrice      float64
	MarketCap         float64
}

type ListTokensParams struct {
	Creator *string
	Limit   int
	Offset  int
	OrderBy string
	Asc     *bool
}

type ListTradesParams struct {
	TokenID *string
	Trader  *string
	Since   *time.Time
	Limit   int
	Offset  int
}

type ListMarketsParams struct {
	Status  *string
	Creator *string
	Limit   int
	Offset  int
}

// ReferralSummary aggregates the earnings journal for one referrer.
type ReferralSummary struct {
	TotalEarnings  decimal.Decimal
	TotalTrades    int64
	TotalVolume    decimal.Decimal
	TotalReferrals int64
}
