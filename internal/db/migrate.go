package db

import (
	"creatorvault/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Token{},
		&models.Trade{},
		&models.Referral{},
		&models.ReferralEarning{},
		&models.PredictionMarket{},
		&models.PredictionTrade{},
	)
}
