package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Token is a creator token priced along a bonding curve. CurveConfig is the
// versioned curve blob (see internal/curve.Config); the mutable trading state
// lives in CirculatingSupply/ReserveBalance and is written only by settlement.
type Token struct {
	ID          string  `gorm:"primaryKey;type:text"`
	Creator     string  `gorm:"type:text;not null;index"`
	Name        string  `gorm:"type:text;not null"`
	Symbol      string  `gorm:"type:text;not null"`
	Platform    *string `gorm:"type:text"`
	ContentURL  *string `gorm:"type:text"`
	TotalSupply float64 `gorm:"type:numeric(30,10);not null"`

	CurveConfig datatypes.JSON `gorm:"type:jsonb;not null"`

	CirculatingSupply float64         `gorm:"type:numeric(30,10);not null;default:0"`
	ReserveBalance    float64         `gorm:"type:numeric(30,10);not null;default:0"`
	CurrentPrice      float64         `gorm:"type:numeric(20,10);not null"`
	MarketCap         float64         `gorm:"type:numeric(30,10);not null;default:0"`
	Volume24h         decimal.Decimal `gorm:"column:volume_24h;type:numeric(30,10);not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Token) TableName() string {
	return "tokens"
}
