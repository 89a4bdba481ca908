package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UserStats is the per-user aggregate the stats hook maintains. Counters
// are advanced with atomic increments so concurrent closeouts can't lose
// updates.
type UserStats struct {
	gorm.Model

	UserCode     string          `gorm:"size:32;uniqueIndex;not null"`
	BetsSettled  int64           `gorm:"default:0"`
	TotalWagered decimal.Decimal `gorm:"type:numeric(18,2);default:0"`
	TotalPayout  decimal.Decimal `gorm:"type:numeric(18,2);default:0"`
	RewardPoints decimal.Decimal `gorm:"type:numeric(18,2);default:0"`
}

// AffiliateEarning accrues commission for the affiliate that referred the
// bettor, one row per settled bet.
type AffiliateEarning struct {
	gorm.Model

	AffiliateCode string          `gorm:"size:32;index;not null"`
	UserCode      string          `gorm:"size:32;index"`
	RoundID       string          `gorm:"size:64;uniqueIndex"`
	Commission    decimal.Decimal `gorm:"type:numeric(18,2)"`
}
