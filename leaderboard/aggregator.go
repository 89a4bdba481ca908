// Package leaderboard derives top-N winners per time window from settled
// bets. Storage is denormalized and self-pruning: every recompute deletes
// the candidates that no longer place in any window, and a cached recording
// cutoff keeps the hot path from recomputing on non-contenders.
package leaderboard

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"wagerd/models"
)

// TopN is the fixed number of entries retained per (game, field, window).
const TopN = 3

type Window string

const (
	WindowDay   Window = "day"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
	WindowAll   Window = "all"
)

var windowSpans = map[Window]time.Duration{
	WindowDay:   24 * time.Hour,
	WindowWeek:  7 * 24 * time.Hour,
	WindowMonth: 30 * 24 * time.Hour,
	WindowAll:   0,
}

type Aggregator struct {
	DB    *gorm.DB
	Redis *redis.Client
	Log   zerolog.Logger

	// Floor is the minimum wager for a win to be a candidate at all.
	Floor decimal.Decimal
	// CutoffFloor is the fallback recording cutoff while a board is
	// under-populated.
	CutoffFloor decimal.Decimal
	// Cooldown rate-limits recomputes per (game, field).
	Cooldown time.Duration
	// CutoffTTL bounds staleness of the cached cutoff.
	CutoffTTL time.Duration

	Now func() time.Time
}

func (a *Aggregator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Record considers one settled bet for the leaderboard. Only wins whose
// wager clears the floor are candidates; the cached cutoff rejects
// non-contenders without touching the stored board.
func (a *Aggregator) Record(h *models.BetHistory) error {
	if h.Outcome != models.WagerGameOver || !h.Payout.IsPositive() {
		return nil
	}
	if h.BetAmount.LessThan(a.Floor) {
		return nil
	}

	ctx := context.Background()
	for _, field := range []string{models.RankByPayout, models.RankByMultiplier} {
		entry := models.LeaderboardEntry{
			GameID:     h.GameID,
			Field:      field,
			UserCode:   h.UserCode,
			Payout:     h.Payout,
			Multiplier: h.Multiplier,
			BetAmount:  h.BetAmount,
			WonAt:      h.ClosedAt,
		}

		if cutoff, ok := a.cachedCutoff(ctx, h.GameID, field); ok &&
			entry.Value().LessThan(cutoff) {
			continue
		}

		if err := a.DB.Create(&entry).Error; err != nil {
			return err
		}

		if a.acquireCooldown(ctx, h.GameID, field) {
			if err := a.Recompute(h.GameID, field); err != nil {
				a.Log.Error().Err(err).Str("game", h.GameID).Str("field", field).
					Msg("leaderboard recompute failed")
			}
		}
	}
	return nil
}

// Recompute rebuilds every window for (game, field), prunes candidates that
// place nowhere, and refreshes the recording cutoff.
func (a *Aggregator) Recompute(gameID, field string) error {
	var entries []models.LeaderboardEntry
	if err := a.DB.Where("game_id = ? AND field = ?", gameID, field).
		Find(&entries).Error; err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	ranked := RankWindows(entries, a.now())

	keep := make(map[uint]struct{})
	for _, board := range ranked {
		for _, e := range board {
			keep[e.ID] = struct{}{}
		}
	}
	stale := lo.FilterMap(entries, func(e models.LeaderboardEntry, _ int) (uint, bool) {
		_, kept := keep[e.ID]
		return e.ID, !kept
	})
	if len(stale) > 0 {
		if err := a.DB.Unscoped().Delete(&models.LeaderboardEntry{}, stale).Error; err != nil {
			return err
		}
	}

	a.refreshCutoff(context.Background(), gameID, field, ranked[WindowWeek])
	return nil
}

// Boards returns the current windows for a game and field.
func (a *Aggregator) Boards(gameID, field string) (map[Window][]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	if err := a.DB.Where("game_id = ? AND field = ?", gameID, field).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return RankWindows(entries, a.now()), nil
}

// RankWindows partitions candidates into time windows, keeps each user's
// best entry per window and takes the top N with the multi-key sort:
// ranking field desc, secondary field desc, recency desc.
func RankWindows(entries []models.LeaderboardEntry, now time.Time) map[Window][]models.LeaderboardEntry {
	out := make(map[Window][]models.LeaderboardEntry, len(windowSpans))
	for window, span := range windowSpans {
		candidates := entries
		if span > 0 {
			since := now.Add(-span)
			candidates = lo.Filter(entries, func(e models.LeaderboardEntry, _ int) bool {
				return e.WonAt.After(since)
			})
		}

		perUser := lo.Values(lo.MapValues(
			lo.GroupBy(candidates, func(e models.LeaderboardEntry) string { return e.UserCode }),
			func(own []models.LeaderboardEntry, _ string) models.LeaderboardEntry {
				best := own[0]
				for _, e := range own[1:] {
					if rankLess(best, e) {
						best = e
					}
				}
				return best
			},
		))

		sort.Slice(perUser, func(i, j int) bool { return rankLess(perUser[j], perUser[i]) })
		if len(perUser) > TopN {
			perUser = perUser[:TopN]
		}
		out[window] = perUser
	}
	return out
}

// rankLess reports whether a ranks strictly below b.
func rankLess(a, b models.LeaderboardEntry) bool {
	if !a.Value().Equal(b.Value()) {
		return a.Value().LessThan(b.Value())
	}
	if !a.Secondary().Equal(b.Secondary()) {
		return a.Secondary().LessThan(b.Secondary())
	}
	return a.WonAt.Before(b.WonAt)
}

func (a *Aggregator) cutoffKey(gameID, field string) string {
	return "lb:cutoff:" + gameID + ":" + field
}

func (a *Aggregator) cachedCutoff(ctx context.Context, gameID, field string) (decimal.Decimal, bool) {
	if a.Redis == nil {
		return decimal.Zero, false
	}
	raw, err := a.Redis.Get(ctx, a.cutoffKey(gameID, field)).Result()
	if err != nil {
		return decimal.Zero, false
	}
	cutoff, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return cutoff, true
}

// refreshCutoff stores the smallest value that made the weekly board, or
// the fallback floor while the board is under-populated.
func (a *Aggregator) refreshCutoff(ctx context.Context, gameID, field string, weekly []models.LeaderboardEntry) {
	if a.Redis == nil {
		return
	}
	cutoff := a.CutoffFloor
	if len(weekly) == TopN {
		cutoff = weekly[len(weekly)-1].Value()
	}
	if err := a.Redis.Set(ctx, a.cutoffKey(gameID, field), cutoff.String(), a.CutoffTTL).Err(); err != nil {
		a.Log.Warn().Err(err).Str("game", gameID).Msg("failed to cache leaderboard cutoff")
	}
}

func (a *Aggregator) acquireCooldown(ctx context.Context, gameID, field string) bool {
	if a.Redis == nil || a.Cooldown <= 0 {
		return true
	}
	ok, err := a.Redis.SetNX(ctx, "lb:recompute:"+gameID+":"+field, 1, a.Cooldown).Result()
	if err != nil {
		a.Log.Warn().Err(err).Msg("leaderboard cooldown check failed")
		return false
	}
	return ok
}
