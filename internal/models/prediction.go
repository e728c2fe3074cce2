package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PredictionMarket is a parimutuel market on a future engagement metric.
// Pools only grow while the market is open; Resolve sets the terminal state
// exactly once. CarryoverPool records the whole pool when nobody bet on the
// winning side, for the external treasury policy to collect.
type PredictionMarket struct {
	ID         string `gorm:"primaryKey;type:text"`
	Creator    string `gorm:"type:text;not null;index"`
	ContentRef string `gorm:"type:text;not null"`
	Platform   string `gorm:"type:text;not null"`
	MetricType string `gorm:"type:varchar(20);not null"`

	TargetValue  float64   `gorm:"type:numeric(30,10);not null"`
	InitialValue float64   `gorm:"type:numeric(30,10);not null;default:0"`
	FinalValue   *float64  `gorm:"type:numeric(30,10)"`
	EndTime      time.Time `gorm:"type:timestamptz;not null;index"`

	YesPool       decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	NoPool        decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	CarryoverPool decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	Status  string  `gorm:"type:varchar(16);not null;default:'active';index"`
	Outcome *string `gorm:"type:varchar(3)"`

	CreatedAt  time.Time  `gorm:"type:timestamptz;autoCreateTime;index"`
	ResolvedAt *time.Time `gorm:"type:timestamptz"`
}

func (PredictionMarket) TableName() string {
	return "prediction_markets"
}

const (
	MarketStatusActive    = "active"
	MarketStatusResolving = "resolving"
	MarketStatusResolved  = "resolved"

	OutcomeYes = "YES"
	OutcomeNo  = "NO"
)

// PredictionTrade is a single wager. PotentialPayout is the wager-time
// estimate shown to the user; the amount actually paid is recomputed
// proportionally at resolution and stored in PayoutAmount.
type PredictionTrade struct {
	ID       string `gorm:"primaryKey;type:uuid"`
	MarketID string `gorm:"type:text;not null;index"`
	Trader   string `gorm:"type:text;not null;index"`
	Side     string `gorm:"type:varchar(3);not null"`

	Stake           decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	OddsAtTrade     decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	PotentialPayout decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	Status       string          `gorm:"type:varchar(10);not null;default:'pending';index"`
	PayoutAmount decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Claimed      bool            `gorm:"not null;default:false"`
	ClaimedAt    *time.Time      `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (PredictionTrade) TableName() string {
	return "prediction_trades"
}

const (
	WagerStatusPending = "pending"
	WagerStatusWon     = "won"
	WagerStatusLost    = "lost"
)
