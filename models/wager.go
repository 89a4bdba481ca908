package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Active wager statuses. A wager starts playing and ends in exactly one of
// the terminal states, set by the same conditional update that stamps
// ClosedOut.
const (
	WagerPlaying  = "playing"
	WagerGameOver = "game_over"
	WagerRefunded = "refunded"
)

// ActiveWager is the in-flight bet for one external provider round. At most
// one row exists per ExternalRoundID; ClosedOut is nil while the round is
// open and is stamped exactly once.
type ActiveWager struct {
	gorm.Model

	ExternalRoundID string `gorm:"size:64;uniqueIndex;not null"`
	SessionID       string `gorm:"size:64;index"`
	UserCode        string `gorm:"size:32;index"`
	GameID          string `gorm:"size:64;index"`
	Provider        string `gorm:"size:32;index"`

	// Amount accumulates across multiple bet events on the same round,
	// already converted to the settlement currency.
	Amount      decimal.Decimal `gorm:"type:numeric(18,2);default:0"`
	BalanceType string          `gorm:"size:16"`

	Status    string     `gorm:"size:16;index;default:playing"`
	ClosedOut *time.Time `gorm:"index"`

	Hidden     bool `gorm:"default:false"`
	Incognito  bool `gorm:"default:false"`
	Highroller bool `gorm:"default:false"`

	// DeleteAfterRecord removes the row once closeout has recorded history.
	DeleteAfterRecord bool `gorm:"default:true"`

	Meta datatypes.JSON `gorm:"type:jsonb"`
}

// Open reports whether the wager can still accept settlement events.
func (w *ActiveWager) Open() bool {
	return w.ClosedOut == nil
}

// BalanceTypeOrDefault is nil-safe: a round with no wager yet settles
// against the main balance.
func (w *ActiveWager) BalanceTypeOrDefault() string {
	if w == nil || w.BalanceType == "" {
		return "main"
	}
	return w.BalanceType
}
