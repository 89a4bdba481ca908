package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Action kinds as sent by the provider's action discriminator.
const (
	ActionBalance  = "balance"
	ActionBet      = "bet"
	ActionWin      = "win"
	ActionRefund   = "refund"
	ActionRollback = "rollback"
)

// ActionRecord is the idempotency-ledger entry for one inbound provider
// event. ExternalTxID is the provider-supplied key: duplicate deliveries of
// the same event must resolve to this same row.
type ActionRecord struct {
	gorm.Model

	ExternalTxID string `gorm:"size:64;uniqueIndex;not null"`
	Kind         string `gorm:"size:16;index;not null"`

	RoundID   string `gorm:"size:64;index"`
	SessionID string `gorm:"size:64;index"`
	UserCode  string `gorm:"size:32;index"`
	GameID    string `gorm:"size:64;index"`
	Provider  string `gorm:"size:32;index"`

	Amount   decimal.Decimal `gorm:"type:numeric(18,2);default:0"`
	Currency string          `gorm:"size:8"`

	// BetTxID links a refund to the bet it reverses.
	BetTxID string `gorm:"size:64;index"`
	// InternalTxID is attached once the balance mutation committed.
	InternalTxID string `gorm:"size:36;index"`

	Attempts int            `gorm:"default:1"`
	Payload  datatypes.JSON `gorm:"type:jsonb"`
}
