package jobs

import (
	"time"

	"github.com/robfig/cron/v3"

	"wagerd/closeout"
	"wagerd/logging"
	tasks "wagerd/task"
)

// StartScheduler runs the recovery sweep and the retention cleanups on
// fixed intervals. The sweep is safe against live closeouts: every pass it
// replays is idempotent.
func StartScheduler(engine *closeout.Engine) *cron.Cron {
	log := logging.Component("jobs")
	c := cron.New()

	if _, err := c.AddFunc("@every 1m", func() {
		if _, err := engine.Recover(time.Now()); err != nil {
			log.Error().Err(err).Msg("recovery sweep failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule recovery sweep")
	}

	if _, err := c.AddFunc("@hourly", func() {
		tasks.CleanupClosedWagers()
		tasks.CleanupBetHistory()
		tasks.CleanupSessions()
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule retention cleanup")
	}

	c.Start()
	return c
}
