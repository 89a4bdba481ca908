// Package closeout converts closed wagers into permanent bet history and
// drives every history row to completion: payout, post-bet hooks,
// bookkeeping flags. Every step is idempotent behind its own completion
// flag, which is what makes a crashed pass safe to replay.
package closeout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"wagerd/balance"
	"wagerd/hooks"
	"wagerd/models"
	wagerstore "wagerd/wager"
)

type Engine struct {
	DB     *gorm.DB
	Wagers *wagerstore.Store
	Ledger balance.Ledger
	Hooks  []hooks.PostBet
	Redis  *redis.Client
	Log    zerolog.Logger

	// Cooldown collapses duplicate closeout triggers for the same bet.
	Cooldown time.Duration
}

// CloseOut runs one closeout pass over a history record. It returns
// success for every short-circuit and for a finished pass, even one that
// recorded step errors; false only for permanent abandonment.
func (e *Engine) CloseOut(h *models.BetHistory, now time.Time) (bool, error) {
	if done, ok := ShortCircuit(h); done {
		if !ok {
			e.Log.Error().Str("round", h.ExternalRoundID).Int("attempts", h.Attempts).
				Msg("closeout permanently abandoned; manual reconciliation required")
		}
		return ok, nil
	}

	if !e.acquireInflight(h.ID) {
		// A very recent attempt for this bet is already running.
		return true, nil
	}

	// Attempts increments durably on every pass, so a pass that keeps
	// crashing still walks toward the abandonment ceiling.
	if err := e.DB.Model(h).UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error; err != nil {
		return false, err
	}
	h.Attempts++

	errs := loadErrors(h.Errors)

	// No owner, no payout: close the books with an explanatory error.
	if _, err := e.Ledger.Balance(h.UserCode); errors.Is(err, balance.ErrUserNotFound) {
		if w, ferr := e.Wagers.FindByRound(h.ExternalRoundID); ferr == nil && w != nil {
			if derr := e.Wagers.Delete(w.ID); derr != nil {
				e.Log.Error().Err(derr).Str("round", h.ExternalRoundID).Msg("failed to delete orphaned wager")
			}
		}
		errs["user"] = fmt.Sprintf("user %s no longer exists; payout impossible", h.UserCode)
		h.CloseoutComplete = true
		return true, e.persist(h, errs)
	} else if err != nil {
		return false, err
	}

	// Step 1: payout. Guarded by its own flag so a replayed pass can never
	// credit twice.
	if !h.PaidOut {
		if h.Payout.IsPositive() {
			_, err := e.Ledger.Credit(h.UserCode, h.Payout, h.BalanceType, balance.Meta{
				Provider: h.Provider,
				RoundID:  h.ExternalRoundID,
				Note:     "closeout payout round " + h.ExternalRoundID,
			})
			if err != nil {
				errs["payout"] = err.Error()
			} else {
				h.PaidOut = true
				delete(errs, "payout")
			}
		} else {
			h.PaidOut = true
		}
	}

	// Step 2: post-bet hooks, settle-all. A failed hook is captured, not
	// thrown: the payout above must never be lost to a stats error.
	if !h.RanHooks {
		failed := hooks.RunAll(e.Hooks, h)
		for name, err := range failed {
			errs["hook:"+name] = err.Error()
		}
		if len(failed) == 0 {
			h.RanHooks = true
			for key := range errs {
				if len(key) > 5 && key[:5] == "hook:" {
					delete(errs, key)
				}
			}
		}
	}

	// Both steps attempted: this pass is finished regardless of individual
	// step failure. The error map stays visible for manual reconciliation,
	// which intentionally stops infinite retries of a deterministic
	// failure.
	h.CloseoutComplete = true
	if err := e.persist(h, errs); err != nil {
		return false, err
	}

	if w, err := e.Wagers.FindByRound(h.ExternalRoundID); err == nil && w != nil && w.DeleteAfterRecord {
		if err := e.Wagers.Delete(w.ID); err != nil {
			e.Log.Error().Err(err).Str("round", h.ExternalRoundID).Msg("failed to delete closed wager")
		}
	}
	return true, nil
}

// ShortCircuit is the pure gate in front of a closeout pass: (done, success).
// done = true means skip the pass entirely; success = false marks permanent
// abandonment once the attempt ceiling is exceeded.
func ShortCircuit(h *models.BetHistory) (done bool, success bool) {
	switch {
	case h.CloseoutComplete:
		return true, true
	case h.ClosedAt.IsZero():
		// Not marked closed yet; nothing to do.
		return true, true
	case h.Attempts > models.CloseoutMaxAttempts:
		return true, false
	}
	return false, false
}

func (e *Engine) acquireInflight(id uint) bool {
	if e.Redis == nil || e.Cooldown <= 0 {
		return true
	}
	ok, err := e.Redis.SetNX(context.Background(),
		fmt.Sprintf("closeout:inflight:%d", id), 1, e.Cooldown).Result()
	if err != nil {
		e.Log.Warn().Err(err).Uint("history", id).Msg("closeout inflight check failed")
		return true
	}
	return ok
}

func (e *Engine) persist(h *models.BetHistory, errs map[string]string) error {
	raw, err := json.Marshal(errs)
	if err != nil {
		return err
	}
	h.Errors = datatypes.JSON(raw)
	return e.DB.Model(h).Updates(map[string]any{
		"paid_out":          h.PaidOut,
		"ran_hooks":         h.RanHooks,
		"closeout_complete": h.CloseoutComplete,
		"attempts":          h.Attempts,
		"errors":            h.Errors,
	}).Error
}

func loadErrors(raw datatypes.JSON) map[string]string {
	errs := make(map[string]string)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &errs)
	}
	return errs
}
