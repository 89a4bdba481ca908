package leaderboard

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"wagerd/models"
)

func entry(id uint, user string, payout, multiplier float64, wonAt time.Time) models.LeaderboardEntry {
	return models.LeaderboardEntry{
		Model:      gorm.Model{ID: id},
		GameID:     "g1",
		Field:      models.RankByPayout,
		UserCode:   user,
		Payout:     decimal.NewFromFloat(payout),
		Multiplier: decimal.NewFromFloat(multiplier),
		WonAt:      wonAt,
	}
}

func TestRankWindowsTopNBound(t *testing.T) {
	now := time.Now()
	var entries []models.LeaderboardEntry
	for i := uint(1); i <= 10; i++ {
		entries = append(entries, entry(i, string(rune('a'+i)), float64(i*100), 2, now.Add(-time.Hour)))
	}

	ranked := RankWindows(entries, now)
	for window, board := range ranked {
		if len(board) > TopN {
			t.Errorf("window %s holds %d entries, want at most %d", window, len(board), TopN)
		}
	}

	day := ranked[WindowDay]
	if len(day) != TopN {
		t.Fatalf("day window holds %d entries, want %d", len(day), TopN)
	}
	if !day[0].Payout.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("day winner payout = %s, want 1000", day[0].Payout)
	}
	if !day[2].Payout.Equal(decimal.NewFromInt(800)) {
		t.Errorf("day third payout = %s, want 800", day[2].Payout)
	}
}

func TestRankWindowsOneEntryPerUser(t *testing.T) {
	now := time.Now()
	entries := []models.LeaderboardEntry{
		entry(1, "alice", 500, 2, now.Add(-time.Hour)),
		entry(2, "alice", 900, 3, now.Add(-2*time.Hour)),
		entry(3, "bob", 700, 4, now.Add(-time.Hour)),
	}

	ranked := RankWindows(entries, now)
	for window, board := range ranked {
		seen := map[string]bool{}
		for _, e := range board {
			if seen[e.UserCode] {
				t.Errorf("window %s lists %s twice", window, e.UserCode)
			}
			seen[e.UserCode] = true
		}
	}

	day := ranked[WindowDay]
	if len(day) != 2 {
		t.Fatalf("day window holds %d entries, want 2", len(day))
	}
	if day[0].UserCode != "alice" || !day[0].Payout.Equal(decimal.NewFromInt(900)) {
		t.Errorf("day winner = %s/%s, want alice/900", day[0].UserCode, day[0].Payout)
	}
}

func TestRankWindowsTieBreaks(t *testing.T) {
	now := time.Now()
	older := now.Add(-3 * time.Hour)
	newer := now.Add(-time.Hour)

	// Equal payout: higher multiplier wins; equal both: newer wins.
	entries := []models.LeaderboardEntry{
		entry(1, "alice", 500, 2, newer),
		entry(2, "bob", 500, 5, older),
		entry(3, "carol", 500, 2, older),
	}

	day := RankWindows(entries, now)[WindowDay]
	if len(day) != 3 {
		t.Fatalf("day window holds %d entries, want 3", len(day))
	}
	if day[0].UserCode != "bob" {
		t.Errorf("winner = %s, want bob (multiplier tie-break)", day[0].UserCode)
	}
	if day[1].UserCode != "alice" {
		t.Errorf("second = %s, want alice (recency tie-break)", day[1].UserCode)
	}
}

func TestRankWindowsPartitionsByAge(t *testing.T) {
	now := time.Now()
	entries := []models.LeaderboardEntry{
		entry(1, "alice", 100, 2, now.Add(-time.Hour)),
		entry(2, "bob", 200, 2, now.Add(-3*24*time.Hour)),
		entry(3, "carol", 300, 2, now.Add(-20*24*time.Hour)),
		entry(4, "dave", 400, 2, now.Add(-60*24*time.Hour)),
	}

	ranked := RankWindows(entries, now)
	if n := len(ranked[WindowDay]); n != 1 {
		t.Errorf("day window holds %d entries, want 1", n)
	}
	if n := len(ranked[WindowWeek]); n != 2 {
		t.Errorf("week window holds %d entries, want 2", n)
	}
	if n := len(ranked[WindowMonth]); n != 3 {
		t.Errorf("month window holds %d entries, want 3", n)
	}
	// All-time keeps the top 3 across every age.
	all := ranked[WindowAll]
	if len(all) != 3 {
		t.Fatalf("all-time window holds %d entries, want 3", len(all))
	}
	if all[0].UserCode != "dave" {
		t.Errorf("all-time winner = %s, want dave", all[0].UserCode)
	}
}
