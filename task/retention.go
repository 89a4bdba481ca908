package tasks

import (
	"time"

	"wagerd/config"
	"wagerd/database"
	"wagerd/logging"
	"wagerd/models"
)

// CleanupClosedWagers removes closed wager rows whose post-closeout TTL has
// lapsed. Rows with delete_after_record are normally removed by the
// closeout engine; this catches the ones whose deletion failed.
func CleanupClosedWagers() {
	log := logging.Component("retention")
	ttl := config.Duration("WAGER_CLOSED_TTL", 6*time.Hour)

	res := database.DB.Unscoped().
		Where("closed_out IS NOT NULL AND closed_out < ?", time.Now().Add(-ttl)).
		Delete(&models.ActiveWager{})
	if res.Error != nil {
		log.Error().Err(res.Error).Msg("failed to delete expired wagers")
	} else if res.RowsAffected > 0 {
		log.Info().Int64("deleted", res.RowsAffected).Msg("expired closed wagers")
	}
}

// CleanupBetHistory expires settled history past the reporting retention
// window. Incomplete rows are kept: they are the recovery sweep's input and
// the abandoned ones are an operator worklist.
func CleanupBetHistory() {
	log := logging.Component("retention")
	retention := config.Duration("HISTORY_RETENTION", 90*24*time.Hour)

	res := database.DB.Unscoped().
		Where("closeout_complete = ? AND closed_at < ?", true, time.Now().Add(-retention)).
		Delete(&models.BetHistory{})
	if res.Error != nil {
		log.Error().Err(res.Error).Msg("failed to delete expired bet history")
	} else if res.RowsAffected > 0 {
		log.Info().Int64("deleted", res.RowsAffected).Msg("expired bet history")
	}
}

// CleanupSessions drops expired session rows.
func CleanupSessions() {
	log := logging.Component("retention")

	res := database.DB.Unscoped().
		Where("expires_at < ?", time.Now()).
		Delete(&models.Session{})
	if res.Error != nil {
		log.Error().Err(res.Error).Msg("failed to delete expired sessions")
	}
}
