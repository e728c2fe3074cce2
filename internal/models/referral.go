package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Referral maps a referred address to its single referrer. A row with
// Referrer == Referred marks ownership of the code without binding a
// referrer, so code generation does not consume the address's one slot.
type Referral struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	Referrer string `gorm:"type:text;not null;index"`
	Referred string `gorm:"type:text;not null;uniqueIndex"`
	Code     string `gorm:"type:varchar(16);not null;index"`

	TotalEarnings    decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	TotalTradesCount int64           `gorm:"not null;default:0"`
	TotalVolume      decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Referral) TableName() string {
	return "referrals"
}

// ReferralEarning is the append-only earnings journal: one row per settled
// trade that had an attributable referrer, linked to the originating trade.
type ReferralEarning struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	Referrer string `gorm:"type:text;not null;index"`
	Referred string `gorm:"type:text;not null;index"`
	TradeID  string `gorm:"type:uuid;not null;index"`

	Earnings   decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	TradeValue decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (ReferralEarning) TableName() string {
	return "referral_earnings"
}
