package settle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"wagerd/balance"
	"wagerd/fx"
	"wagerd/lock"
	"wagerd/models"
)

var (
	ErrUnknownAction    = errors.New("settle: unknown action")
	ErrAlreadyRefunded  = errors.New("settle: bet already refunded")
	ErrAlreadyClosed    = errors.New("settle: bet already closed")
	ErrMissingReference = errors.New("settle: missing transaction reference")
)

// Event is one validated inbound provider action. The HTTP layer parses
// each action kind into this shape; anything that doesn't parse is rejected
// before it gets here.
type Event struct {
	Kind         string
	ExternalTxID string
	Provider     string

	RoundID   string
	SessionID string
	UserCode  string
	GameID    string

	Amount   decimal.Decimal
	Currency string

	// BetTxID is the bet a refund reverses; RefTxIDs are the prior actions
	// a rollback compensates.
	BetTxID  string
	RefTxIDs []string

	// Finished is the provider's round-finished flag for multi-win rounds.
	// Single-shot providers send every win with Finished = true.
	Finished bool

	Payload []byte
}

// Result is the settled outcome echoed back to the provider.
type Result struct {
	Balance      decimal.Decimal
	InternalTxID string
	Duplicate    bool
}

// Closer converts a closed wager into permanent history bookkeeping; the
// closeout engine implements it.
type Closer interface {
	CloseOut(h *models.BetHistory, now time.Time) (bool, error)
}

// ActionLedger is the durable idempotency store the pipeline writes every
// event to; the ledger package implements it.
type ActionLedger interface {
	Touch(rec *models.ActionRecord) (*models.ActionRecord, bool, error)
	AttachInternalTx(id uint, trxID string) error
	Delete(id uint) error
	FindByExternalTx(externalTxID string) (*models.ActionRecord, error)
	FindBetForRound(roundID string) (*models.ActionRecord, error)
	FindRefundOfBet(betTxID string, excludeID uint) (*models.ActionRecord, error)
}

// WagerStore is the mutable per-round wager state; the wager package
// implements it.
type WagerStore interface {
	GetOrCreate(w *models.ActiveWager) (*models.ActiveWager, bool, error)
	FindByRound(roundID string) (*models.ActiveWager, error)
	AddAmount(id uint, delta decimal.Decimal) (bool, error)
	CloseIfOpen(id uint, status string, now time.Time) (bool, error)
}

// Settler validates provider events against the round state machine and
// applies their balance effects exactly once.
type Settler struct {
	Actions ActionLedger
	Wagers  WagerStore
	Ledger  balance.Ledger
	FX      *fx.Converter
	Closer  Closer
	DB      *gorm.DB
	Redis   *redis.Client

	// BetLockTTL bounds the per-user bet placement mutex; 0 disables
	// locking (tests).
	BetLockTTL time.Duration

	Log zerolog.Logger
	Now func() time.Time
}

func (s *Settler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Apply runs one provider event through the settlement pipeline:
// fx conversion, idempotent action-ledger write, state derivation, legality
// check, balance effect. A duplicate delivery replays the stored outcome
// without side effects.
func (s *Settler) Apply(ctx context.Context, ev Event) (Result, error) {
	switch ev.Kind {
	case models.ActionBalance:
		bal, err := s.Ledger.Balance(ev.UserCode)
		if err != nil {
			return Result{}, err
		}
		return Result{Balance: bal}, nil
	case models.ActionBet, models.ActionWin, models.ActionRefund, models.ActionRollback:
	default:
		return Result{}, ErrUnknownAction
	}

	if ev.ExternalTxID == "" {
		return Result{}, ErrMissingReference
	}

	amount, err := s.FX.ToSettlement(ev.Amount, ev.Currency)
	if err != nil {
		return Result{}, err
	}

	rec, existed, err := s.Actions.Touch(&models.ActionRecord{
		ExternalTxID: ev.ExternalTxID,
		Kind:         ev.Kind,
		RoundID:      ev.RoundID,
		SessionID:    ev.SessionID,
		UserCode:     ev.UserCode,
		GameID:       ev.GameID,
		Provider:     ev.Provider,
		Amount:       amount,
		Currency:     s.FX.Settlement(),
		BetTxID:      ev.BetTxID,
		Payload:      datatypes.JSON(ev.Payload),
	})
	if err != nil {
		return Result{}, err
	}
	if existed {
		// Same event delivered again: re-derive the response from the
		// stored record, never reprocess.
		bal, err := s.Ledger.Balance(rec.UserCode)
		if err != nil {
			return Result{}, err
		}
		return Result{Balance: bal, InternalTxID: rec.InternalTxID, Duplicate: true}, nil
	}

	res, committed, err := s.process(ctx, rec, ev, amount)
	if err != nil {
		if committed {
			// A balance effect already landed. Keep the record so the
			// provider's retry takes the duplicate replay path instead of
			// re-applying the mutation.
			s.Log.Error().Err(err).Str("external_tx", rec.ExternalTxID).
				Msg("failure after committed balance effect; action record retained")
			return Result{}, err
		}
		// Processing failed before any balance effect committed: drop the
		// fresh record so a legitimate provider retry starts clean.
		if delErr := s.Actions.Delete(rec.ID); delErr != nil {
			s.Log.Error().Err(delErr).Str("external_tx", rec.ExternalTxID).
				Msg("failed to roll back action record")
		}
		return Result{}, err
	}
	return res, nil
}

// process reports, alongside the result, whether a balance effect committed
// during the pass. On error that flag decides the action record's fate:
// uncommitted passes are erased for a clean retry, committed ones must stay
// so the retry replays instead of double-applying.
func (s *Settler) process(ctx context.Context, rec *models.ActionRecord, ev Event, amount decimal.Decimal) (Result, bool, error) {
	w, err := s.Wagers.FindByRound(ev.RoundID)
	if err != nil {
		return Result{}, false, err
	}
	state := deriveState(w)

	switch ev.Kind {
	case models.ActionBet:
		return s.applyBet(ctx, rec, ev, amount, w, state)
	case models.ActionWin:
		return s.applyWin(rec, ev, amount, w, state)
	case models.ActionRefund:
		return s.applyRefund(rec, ev, w, state)
	case models.ActionRollback:
		return s.applyRollback(rec, ev)
	}
	return Result{}, false, ErrUnknownAction
}

func deriveState(w *models.ActiveWager) State {
	switch {
	case w == nil:
		return StateWaiting
	case w.Open():
		return StatePlaying
	case w.Status == models.WagerRefunded:
		return StateRefunded
	default:
		return StateGameOver
	}
}

func (s *Settler) applyBet(ctx context.Context, rec *models.ActionRecord, ev Event, amount decimal.Decimal, w *models.ActiveWager, state State) (Result, bool, error) {
	t, err := Lookup(state, EventBet)
	if err != nil {
		return Result{}, false, err
	}

	// Serialize bet placement per user. The lock has a hard TTL so a
	// crashed holder cannot wedge the user; see lock package.
	if s.Redis != nil && s.BetLockTTL > 0 {
		mu := lock.New(s.Redis, "bet:user:"+ev.UserCode, s.BetLockTTL)
		lockCtx, cancel := context.WithTimeout(ctx, s.BetLockTTL)
		defer cancel()
		if err := mu.Acquire(lockCtx); err != nil {
			return Result{}, false, err
		}
		defer func() {
			if err := mu.Release(context.Background()); err != nil {
				s.Log.Warn().Err(err).Str("user", ev.UserCode).Msg("bet lock release failed")
			}
		}()
	}

	meta := balance.Meta{
		Provider: ev.Provider,
		RoundID:  ev.RoundID,
		BetTxID:  ev.ExternalTxID,
		Note:     fmt.Sprintf("bet round %s game %s", ev.RoundID, ev.GameID),
	}
	trxID, err := s.Ledger.Debit(ev.UserCode, amount, w.BalanceTypeOrDefault(), meta)
	if err != nil {
		return Result{}, false, err
	}

	// The debit is committed from here on; every failure below either
	// compensates it or keeps the action record.
	switch t.Effect {
	case EffectDebit:
		created := &models.ActiveWager{
			ExternalRoundID:   ev.RoundID,
			SessionID:         ev.SessionID,
			UserCode:          ev.UserCode,
			GameID:            ev.GameID,
			Provider:          ev.Provider,
			Amount:            amount,
			BalanceType:       "main",
			Status:            models.WagerPlaying,
			DeleteAfterRecord: true,
		}
		stored, fresh, err := s.Wagers.GetOrCreate(created)
		if err != nil {
			return s.compensateBet(ev, amount, trxID, err)
		}
		if !fresh {
			// Lost the creation race: fold this bet into the winner's row.
			if ok, err := s.Wagers.AddAmount(stored.ID, amount); err != nil || !ok {
				if err == nil {
					err = ErrAlreadyClosed
				}
				return s.compensateBet(ev, amount, trxID, err)
			}
		}
	case EffectAccumulate:
		ok, err := s.Wagers.AddAmount(w.ID, amount)
		if err != nil || !ok {
			// Round closed between state derivation and increment.
			if err == nil {
				err = ErrAlreadyClosed
			}
			return s.compensateBet(ev, amount, trxID, err)
		}
	}

	if err := s.Actions.AttachInternalTx(rec.ID, trxID); err != nil {
		s.Log.Error().Err(err).Str("external_tx", rec.ExternalTxID).Msg("failed to attach internal tx")
	}

	bal, err := s.Ledger.Balance(ev.UserCode)
	if err != nil {
		return Result{}, true, err
	}
	return Result{Balance: bal, InternalTxID: trxID}, true, nil
}

// compensateBet undoes a committed debit whose wager bookkeeping failed.
// A successful credit restores the balance, so the action record can be
// erased and the provider can retry the whole callback. A failed credit
// leaves the debit standing: the record must be retained so the retry
// replays instead of debiting again.
func (s *Settler) compensateBet(ev Event, amount decimal.Decimal, trxID string, cause error) (Result, bool, error) {
	_, err := s.Ledger.Credit(ev.UserCode, amount, "main", balance.Meta{
		Provider: ev.Provider,
		RoundID:  ev.RoundID,
		BetTxID:  ev.ExternalTxID,
		Note:     "bet compensation: " + cause.Error(),
	})
	if err != nil {
		s.Log.Error().Err(err).Str("user", ev.UserCode).Str("debit_tx", trxID).
			Msg("bet compensation credit failed; balance requires manual reconciliation")
		return Result{}, true, cause
	}
	return Result{}, false, cause
}

func (s *Settler) applyWin(rec *models.ActionRecord, ev Event, amount decimal.Decimal, w *models.ActiveWager, state State) (Result, bool, error) {
	t, err := Lookup(state, EventWin)
	if err != nil {
		return Result{}, false, err
	}
	if t.Effect == EffectNone {
		// Late duplicate win after the round closed.
		bal, err := s.Ledger.Balance(ev.UserCode)
		if err != nil {
			return Result{}, false, err
		}
		return Result{Balance: bal, Duplicate: true}, false, nil
	}

	committed := false
	var trxID string
	if amount.IsPositive() {
		trxID, err = s.Ledger.Credit(w.UserCode, amount, w.BalanceTypeOrDefault(), balance.Meta{
			Provider: ev.Provider,
			RoundID:  ev.RoundID,
			Note:     fmt.Sprintf("win round %s game %s", ev.RoundID, ev.GameID),
		})
		if err != nil {
			return Result{}, false, err
		}
		committed = true
		if err := s.Actions.AttachInternalTx(rec.ID, trxID); err != nil {
			s.Log.Error().Err(err).Str("external_tx", rec.ExternalTxID).Msg("failed to attach internal tx")
		}
	}

	// Each win credits individually; only the closing one (per the
	// provider's round-finished predicate) runs closeout bookkeeping.
	if ev.Finished {
		now := s.now()
		closed, err := s.Wagers.CloseIfOpen(w.ID, models.WagerGameOver, now)
		if err != nil {
			return Result{}, committed, err
		}
		if closed {
			committed = true
			if err := s.recordHistory(w, ev.RoundID, now); err != nil {
				s.Log.Error().Err(err).Str("round", ev.RoundID).
					Msg("failed to record bet history; recovery will not see this round")
			}
		}
	}

	bal, err := s.Ledger.Balance(ev.UserCode)
	if err != nil {
		return Result{}, committed, err
	}
	return Result{Balance: bal, InternalTxID: trxID}, committed, nil
}

// recordHistory sums the round's credited wins, writes the permanent record
// and hands it to the closeout engine. Payout already reached the balance
// in-line, so history starts PaidOut = true; closeout owns the hooks.
func (s *Settler) recordHistory(w *models.ActiveWager, roundID string, now time.Time) error {
	fresh, err := s.Wagers.FindByRound(roundID)
	if err != nil {
		return err
	}
	if fresh == nil {
		return fmt.Errorf("settle: wager for round %s vanished", roundID)
	}

	var payout decimal.Decimal
	if err := s.DB.Model(&models.ActionRecord{}).
		Where("round_id = ? AND kind = ? AND internal_tx_id <> ''", roundID, models.ActionWin).
		Select("COALESCE(SUM(amount), 0)").Scan(&payout).Error; err != nil {
		return err
	}

	h := models.NewBetHistory(fresh, payout, now)
	h.PaidOut = true
	if err := s.DB.Create(h).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}

	if s.Closer != nil {
		if _, err := s.Closer.CloseOut(h, now); err != nil {
			s.Log.Error().Err(err).Str("round", roundID).Msg("closeout failed; recovery sweep will retry")
		}
	}
	return nil
}

func (s *Settler) applyRefund(rec *models.ActionRecord, ev Event, w *models.ActiveWager, state State) (Result, bool, error) {
	t, err := Lookup(state, EventRefund)
	if err != nil {
		return Result{}, false, err
	}
	if t.Effect == EffectNone {
		bal, err := s.Ledger.Balance(ev.UserCode)
		if err != nil {
			return Result{}, false, err
		}
		return Result{Balance: bal, Duplicate: true}, false, nil
	}

	// Providers don't guarantee ordering: a refund may arrive before (or
	// without) its bet. Never credit back a bet that was never debited.
	var betAction *models.ActionRecord
	if ev.BetTxID != "" {
		betAction, err = s.Actions.FindByExternalTx(ev.BetTxID)
	} else {
		betAction, err = s.Actions.FindBetForRound(ev.RoundID)
	}
	if err != nil {
		return Result{}, false, err
	}
	if betAction == nil || betAction.Kind != models.ActionBet || betAction.InternalTxID == "" {
		bal, err := s.Ledger.Balance(ev.UserCode)
		if err != nil {
			return Result{}, false, err
		}
		return Result{Balance: bal}, false, nil
	}

	// One refund per underlying bet: the first one already restored the
	// balance.
	prior, err := s.Actions.FindRefundOfBet(betAction.ExternalTxID, rec.ID)
	if err != nil {
		return Result{}, false, err
	}
	if prior != nil {
		return Result{}, false, ErrAlreadyRefunded
	}
	if rec.BetTxID == "" {
		if err := s.DB.Model(rec).Update("bet_tx_id", betAction.ExternalTxID).Error; err != nil {
			return Result{}, false, err
		}
	}

	trxID, err := s.Ledger.Credit(betAction.UserCode, betAction.Amount, "main", balance.Meta{
		Provider: ev.Provider,
		RoundID:  ev.RoundID,
		BetTxID:  betAction.ExternalTxID,
		Note:     "refund of bet " + betAction.ExternalTxID,
	})
	if err != nil {
		return Result{}, false, err
	}
	// The refund credit is committed; failures below keep the record.
	if err := s.Actions.AttachInternalTx(rec.ID, trxID); err != nil {
		s.Log.Error().Err(err).Str("external_tx", rec.ExternalTxID).Msg("failed to attach internal tx")
	}

	if w != nil {
		now := s.now()
		closed, err := s.Wagers.CloseIfOpen(w.ID, models.WagerRefunded, now)
		if err != nil {
			return Result{}, true, err
		}
		if closed {
			fresh, err := s.Wagers.FindByRound(ev.RoundID)
			if err == nil && fresh != nil {
				h := models.NewBetHistory(fresh, decimal.Zero, now)
				h.PaidOut = true // the refund credit above is the payout
				if err := s.DB.Create(h).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
					s.Log.Error().Err(err).Str("round", ev.RoundID).Msg("failed to record refund history")
				} else if s.Closer != nil {
					if _, err := s.Closer.CloseOut(h, now); err != nil {
						s.Log.Error().Err(err).Str("round", ev.RoundID).Msg("closeout failed; recovery sweep will retry")
					}
				}
			}
		}
	}

	bal, err := s.Ledger.Balance(betAction.UserCode)
	if err != nil {
		return Result{}, true, err
	}
	return Result{Balance: bal, InternalTxID: trxID}, true, nil
}

// applyRollback compensates one or more prior actions after a provider-side
// cancellation. It only reverses actions whose balance mutation is known to
// have committed (internal tx attached); unknown or unprocessed references
// are skipped. Rollback never closes the round.
func (s *Settler) applyRollback(rec *models.ActionRecord, ev Event) (Result, bool, error) {
	refs := ev.RefTxIDs
	if len(refs) == 0 && ev.BetTxID != "" {
		refs = []string{ev.BetTxID}
	}
	if len(refs) == 0 {
		return Result{}, false, ErrMissingReference
	}

	// A mid-loop failure after earlier refs were compensated must keep the
	// record; erasing it would re-compensate those refs on retry.
	committed := false
	var lastTrx string
	for _, ref := range refs {
		prior, err := s.Actions.FindByExternalTx(ref)
		if err != nil {
			return Result{}, committed, err
		}
		if prior == nil || prior.InternalTxID == "" {
			continue
		}

		meta := balance.Meta{
			Provider:      ev.Provider,
			RoundID:       prior.RoundID,
			BetTxID:       prior.ExternalTxID,
			Note:          "rollback of " + prior.Kind + " " + prior.ExternalTxID,
			AllowNegative: true,
		}
		var trxID string
		switch prior.Kind {
		case models.ActionWin:
			// Forced correction: the credited win is clawed back even if
			// it drives the balance negative.
			trxID, err = s.Ledger.Debit(prior.UserCode, prior.Amount, "main", meta)
		case models.ActionBet:
			trxID, err = s.Ledger.Credit(prior.UserCode, prior.Amount, "main", meta)
		default:
			continue
		}
		if err != nil {
			return Result{}, committed, err
		}
		committed = true
		lastTrx = trxID
	}

	if lastTrx != "" {
		if err := s.Actions.AttachInternalTx(rec.ID, lastTrx); err != nil {
			s.Log.Error().Err(err).Str("external_tx", rec.ExternalTxID).Msg("failed to attach internal tx")
		}
	}

	bal, err := s.Ledger.Balance(ev.UserCode)
	if err != nil {
		return Result{}, committed, err
	}
	return Result{Balance: bal, InternalTxID: lastTrx}, committed, nil
}
