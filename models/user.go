package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model

	UserCode string          `gorm:"uniqueIndex;size:32" json:"user_code"`
	Balance  decimal.Decimal `gorm:"type:numeric(18,2);default:0" json:"balance"`
	Currency string          `gorm:"size:8" json:"currency"`
	Country  string          `gorm:"size:64" json:"country"`
	IsActive bool            `gorm:"default:true" json:"is_active"`

	AffiliateCode string `gorm:"size:32;index" json:"affiliate_code"`

	Transactions []UserTransaction `gorm:"foreignKey:UserID"`
}

// UserTransaction is the balance ledger's audit row: one per debit/credit,
// carrying enough provider metadata to reconstruct where the money went.
type UserTransaction struct {
	gorm.Model

	TrxID    string `gorm:"size:36;uniqueIndex"`
	UserID   uint   `gorm:"index"`
	UserCode string `gorm:"size:32;index"`

	Direction   string          `gorm:"size:8"` // debit | credit
	Amount      decimal.Decimal `gorm:"type:numeric(18,2)"`
	BalanceType string          `gorm:"size:16"`
	Currency    string          `gorm:"size:8"`

	BalanceBefore decimal.Decimal `gorm:"type:numeric(18,2)"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(18,2)"`

	Provider string `gorm:"size:32;index"`
	RoundID  string `gorm:"size:64;index"`
	BetTxID  string `gorm:"size:64;index"`
	Note     string `gorm:"size:255"`
}
