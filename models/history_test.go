package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewBetHistory(t *testing.T) {
	now := time.Now()
	w := &ActiveWager{
		ExternalRoundID: "R1",
		UserCode:        "alice",
		GameID:          "slots-7",
		Provider:        "seamless",
		Amount:          decimal.NewFromInt(10),
		BalanceType:     "main",
		Status:          WagerGameOver,
	}

	h := NewBetHistory(w, decimal.NewFromInt(25), now)

	if !h.Multiplier.Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("multiplier = %s, want 2.5", h.Multiplier)
	}
	if !h.Profit.Equal(decimal.NewFromInt(15)) {
		t.Errorf("profit = %s, want 15", h.Profit)
	}
	if h.Outcome != WagerGameOver {
		t.Errorf("outcome = %s, want game_over", h.Outcome)
	}
	if h.CloseoutComplete || h.PaidOut || h.RanHooks {
		t.Error("fresh history must start with all closeout flags false")
	}
}

func TestNewBetHistoryZeroWager(t *testing.T) {
	w := &ActiveWager{Status: WagerRefunded}
	h := NewBetHistory(w, decimal.NewFromInt(5), time.Now())
	if !h.Multiplier.IsZero() {
		t.Errorf("multiplier = %s, want 0 for zero wager", h.Multiplier)
	}
}

func TestLeaderboardEntryValueAndSecondary(t *testing.T) {
	e := LeaderboardEntry{
		Field:      RankByPayout,
		Payout:     decimal.NewFromInt(100),
		Multiplier: decimal.NewFromInt(4),
	}
	if !e.Value().Equal(decimal.NewFromInt(100)) || !e.Secondary().Equal(decimal.NewFromInt(4)) {
		t.Errorf("payout field: value = %s secondary = %s", e.Value(), e.Secondary())
	}

	e.Field = RankByMultiplier
	if !e.Value().Equal(decimal.NewFromInt(4)) || !e.Secondary().Equal(decimal.NewFromInt(100)) {
		t.Errorf("multiplier field: value = %s secondary = %s", e.Value(), e.Secondary())
	}
}
