package hooks

import (
	"wagerd/feed"
	"wagerd/leaderboard"
	"wagerd/models"
)

// LeaderboardHook offers each settled bet to the aggregator.
type LeaderboardHook struct {
	Aggregator *leaderboard.Aggregator
}

func (l *LeaderboardHook) Name() string { return "leaderboard" }

func (l *LeaderboardHook) Run(h *models.BetHistory) error {
	return l.Aggregator.Record(h)
}

// FeedHook pushes the settled bet onto the live feed.
type FeedHook struct {
	Publisher *feed.Publisher
	Hidden    func(h *models.BetHistory) bool
}

func (f *FeedHook) Name() string { return "feed" }

func (f *FeedHook) Run(h *models.BetHistory) error {
	hidden := false
	if f.Hidden != nil {
		hidden = f.Hidden(h)
	}
	f.Publisher.Push(feed.Item{
		UserCode:   h.UserCode,
		GameID:     h.GameID,
		Provider:   h.Provider,
		BetAmount:  h.BetAmount,
		Payout:     h.Payout,
		Multiplier: h.Multiplier,
		Outcome:    h.Outcome,
		SettledAt:  h.ClosedAt,
		Hidden:     hidden,
	})
	return nil
}
