package closeout

import (
	"time"

	"wagerd/models"
)

// Recovery sweep bounds. MinAge keeps the sweep from racing an in-progress
// closeout; MaxLookback bounds the job's scope so one ancient stuck row
// can't dominate every sweep.
const (
	RecoveryMinAge      = 2 * time.Minute
	RecoveryMaxLookback = 7 * 24 * time.Hour
)

// Recover replays closeout for history records a crashed process left
// incomplete. Safe to run concurrently with live closeouts: each pass is
// idempotent and the in-flight cooldown collapses duplicates.
func (e *Engine) Recover(now time.Time) (int, error) {
	var rows []models.BetHistory
	err := e.DB.
		Where("closeout_complete = ?", false).
		Where("closed_at < ?", now.Add(-RecoveryMinAge)).
		Where("closed_at > ?", now.Add(-RecoveryMaxLookback)).
		Where("attempts <= ?", models.CloseoutMaxAttempts).
		Order("closed_at asc").
		Find(&rows).Error
	if err != nil {
		return 0, err
	}

	recovered := 0
	for i := range rows {
		h := rows[i]
		ok, err := e.CloseOut(&h, now)
		if err != nil {
			e.Log.Error().Err(err).Str("round", h.ExternalRoundID).Msg("recovery closeout failed")
			continue
		}
		if ok && h.CloseoutComplete {
			recovered++
		}
	}

	if recovered > 0 {
		e.Log.Info().Int("recovered", recovered).Int("scanned", len(rows)).Msg("closeout recovery sweep")
	}
	return recovered, nil
}
