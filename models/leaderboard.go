package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ranking fields a leaderboard entry can qualify under.
const (
	RankByPayout     = "payout"
	RankByMultiplier = "multiplier"
)

// LeaderboardEntry is a denormalized copy of a winning bet retained only
// while it still places in at least one time window for its (game, field).
type LeaderboardEntry struct {
	gorm.Model

	GameID string `gorm:"size:64;index:idx_lb_game_field"`
	Field  string `gorm:"size:16;index:idx_lb_game_field"`

	UserCode string `gorm:"size:32;index"`

	Payout     decimal.Decimal `gorm:"type:numeric(18,2)"`
	Multiplier decimal.Decimal `gorm:"type:numeric(18,8)"`
	BetAmount  decimal.Decimal `gorm:"type:numeric(18,2)"`

	WonAt time.Time `gorm:"index"`
}

// Value returns the entry's value under its own ranking field.
func (e *LeaderboardEntry) Value() decimal.Decimal {
	if e.Field == RankByMultiplier {
		return e.Multiplier
	}
	return e.Payout
}

// Secondary is the tie-break value: whichever of payout and multiplier is
// not the primary ranking field.
func (e *LeaderboardEntry) Secondary() decimal.Decimal {
	if e.Field == RankByMultiplier {
		return e.Payout
	}
	return e.Multiplier
}
