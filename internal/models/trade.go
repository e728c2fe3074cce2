package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one settled bonding-curve trade. Rows are immutable once written.
// Fee columns are an informational split of TotalValue for the external
// payment-distribution collaborator; the trader pays or receives exactly the
// curve-quoted amount.
type Trade struct {
	ID      string `gorm:"primaryKey;type:uuid"`
	TokenID string `gorm:"type:text;not null;index"`
	Trader  string `gorm:"type:text;not null;index"`
	Side    string `gorm:"type:varchar(4);not null"`

	TokenAmount float64 `gorm:"type:numeric(30,10);not null"`
	UnitPrice   float64 `gorm:"type:numeric(20,10);not null"`

	TotalValue       decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	CreatorFee       decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	PlatformFee      decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	ReferralEarnings decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	ReferralCode     *string         `gorm:"type:varchar(16)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (Trade) TableName() string {
	return "trades"
}

const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"
)
