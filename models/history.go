package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CloseoutMaxAttempts is the ceiling after which an incomplete history row
// is permanently abandoned and left for manual reconciliation.
const CloseoutMaxAttempts = 10

// BetHistory is the permanent record of a settled wager, created at close
// time and driven to CloseoutComplete by the closeout engine.
type BetHistory struct {
	gorm.Model

	ExternalRoundID string `gorm:"size:64;uniqueIndex;not null"`
	UserCode        string `gorm:"size:32;index"`
	GameID          string `gorm:"size:64;index"`
	Provider        string `gorm:"size:32;index"`

	BetAmount   decimal.Decimal `gorm:"type:numeric(18,2)"`
	Payout      decimal.Decimal `gorm:"type:numeric(18,2)"`
	Multiplier  decimal.Decimal `gorm:"type:numeric(18,8)"`
	Profit      decimal.Decimal `gorm:"type:numeric(18,2)"`
	BalanceType string          `gorm:"size:16"`

	Outcome  string    `gorm:"size:16;index"` // game_over | refunded
	ClosedAt time.Time `gorm:"index"`

	PaidOut          bool           `gorm:"default:false"`
	RanHooks         bool           `gorm:"default:false"`
	CloseoutComplete bool           `gorm:"index;default:false"`
	Attempts         int            `gorm:"default:0"`
	Errors           datatypes.JSON `gorm:"type:jsonb"`
}

// NewBetHistory derives the permanent record from a closed wager.
func NewBetHistory(w *ActiveWager, payout decimal.Decimal, closedAt time.Time) *BetHistory {
	multiplier := decimal.Zero
	if w.Amount.IsPositive() {
		multiplier = payout.DivRound(w.Amount, 8)
	}
	return &BetHistory{
		ExternalRoundID: w.ExternalRoundID,
		UserCode:        w.UserCode,
		GameID:          w.GameID,
		Provider:        w.Provider,
		BetAmount:       w.Amount,
		Payout:          payout,
		Multiplier:      multiplier,
		Profit:          payout.Sub(w.Amount),
		BalanceType:     w.BalanceType,
		Outcome:         w.Status,
		ClosedAt:        closedAt,
	}
}
