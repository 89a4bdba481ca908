// Package hooks runs the post-settlement side effects: stats, leaderboard,
// affiliate earnings and rewards. Hooks are best-effort with settle-all
// semantics: every hook runs, individual failures are collected and never
// abort the rest.
package hooks

import (
	"wagerd/models"
)

type PostBet interface {
	Name() string
	Run(h *models.BetHistory) error
}

// RunAll invokes every hook and returns a map of hook name to error for the
// ones that failed. An empty map means a clean pass.
func RunAll(all []PostBet, h *models.BetHistory) map[string]error {
	failed := make(map[string]error)
	for _, hook := range all {
		if err := hook.Run(h); err != nil {
			failed[hook.Name()] = err
		}
	}
	return failed
}
