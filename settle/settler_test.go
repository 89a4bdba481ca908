package settle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wagerd/balance"
	"wagerd/fx"
	"wagerd/models"
)

// stubLedger counts mutations so the tests can assert exactly-once
// semantics across duplicate and retried deliveries.
type stubLedger struct {
	balance decimal.Decimal
	debits  int
	credits int

	debitErr    error // consumed by the next Debit
	balanceErrs int   // fail this many Balance calls
}

func (l *stubLedger) Debit(userCode string, amount decimal.Decimal, balanceType string, meta balance.Meta) (string, error) {
	if l.debitErr != nil {
		err := l.debitErr
		l.debitErr = nil
		return "", err
	}
	l.debits++
	l.balance = l.balance.Sub(amount)
	return fmt.Sprintf("debit-%d", l.debits), nil
}

func (l *stubLedger) Credit(userCode string, amount decimal.Decimal, balanceType string, meta balance.Meta) (string, error) {
	l.credits++
	l.balance = l.balance.Add(amount)
	return fmt.Sprintf("credit-%d", l.credits), nil
}

func (l *stubLedger) Balance(userCode string) (decimal.Decimal, error) {
	if l.balanceErrs > 0 {
		l.balanceErrs--
		return decimal.Zero, errors.New("balance read failed")
	}
	return l.balance, nil
}

type memActions struct {
	byTx   map[string]*models.ActionRecord
	nextID uint
}

func newMemActions() *memActions {
	return &memActions{byTx: make(map[string]*models.ActionRecord)}
}

func (m *memActions) Touch(rec *models.ActionRecord) (*models.ActionRecord, bool, error) {
	if existing, ok := m.byTx[rec.ExternalTxID]; ok {
		existing.Attempts++
		return existing, true, nil
	}
	m.nextID++
	rec.ID = m.nextID
	rec.Attempts = 1
	m.byTx[rec.ExternalTxID] = rec
	return rec, false, nil
}

func (m *memActions) AttachInternalTx(id uint, trxID string) error {
	for _, r := range m.byTx {
		if r.ID == id {
			r.InternalTxID = trxID
		}
	}
	return nil
}

func (m *memActions) Delete(id uint) error {
	for tx, r := range m.byTx {
		if r.ID == id {
			delete(m.byTx, tx)
		}
	}
	return nil
}

func (m *memActions) FindByExternalTx(externalTxID string) (*models.ActionRecord, error) {
	if r, ok := m.byTx[externalTxID]; ok {
		return r, nil
	}
	return nil, nil
}

func (m *memActions) FindBetForRound(roundID string) (*models.ActionRecord, error) {
	for _, r := range m.byTx {
		if r.RoundID == roundID && r.Kind == models.ActionBet {
			return r, nil
		}
	}
	return nil, nil
}

func (m *memActions) FindRefundOfBet(betTxID string, excludeID uint) (*models.ActionRecord, error) {
	for _, r := range m.byTx {
		if r.BetTxID == betTxID && r.Kind == models.ActionRefund && r.ID != excludeID {
			return r, nil
		}
	}
	return nil, nil
}

type memWagers struct {
	byRound map[string]*models.ActiveWager
	nextID  uint
}

func newMemWagers() *memWagers {
	return &memWagers{byRound: make(map[string]*models.ActiveWager)}
}

func (m *memWagers) GetOrCreate(w *models.ActiveWager) (*models.ActiveWager, bool, error) {
	if existing, ok := m.byRound[w.ExternalRoundID]; ok {
		return existing, false, nil
	}
	m.nextID++
	w.ID = m.nextID
	m.byRound[w.ExternalRoundID] = w
	return w, true, nil
}

func (m *memWagers) FindByRound(roundID string) (*models.ActiveWager, error) {
	if w, ok := m.byRound[roundID]; ok {
		return w, nil
	}
	return nil, nil
}

func (m *memWagers) AddAmount(id uint, delta decimal.Decimal) (bool, error) {
	for _, w := range m.byRound {
		if w.ID == id && w.Open() {
			w.Amount = w.Amount.Add(delta)
			return true, nil
		}
	}
	return false, nil
}

func (m *memWagers) CloseIfOpen(id uint, status string, now time.Time) (bool, error) {
	for _, w := range m.byRound {
		if w.ID == id && w.Open() {
			closed := now
			w.ClosedOut = &closed
			w.Status = status
			return true, nil
		}
	}
	return false, nil
}

func newTestSettler(led *stubLedger, actions *memActions, wagers *memWagers) *Settler {
	return &Settler{
		Actions: actions,
		Wagers:  wagers,
		Ledger:  led,
		FX:      fx.New("USD", nil),
		Log:     zerolog.Nop(),
	}
}

func betEvent(txID, roundID string) Event {
	return Event{
		Kind:         models.ActionBet,
		ExternalTxID: txID,
		Provider:     "seamless",
		RoundID:      roundID,
		UserCode:     "alice",
		GameID:       "slots-7",
		Amount:       decimal.NewFromInt(10),
		Currency:     "USD",
	}
}

func TestApplyDuplicateBetDebitsOnce(t *testing.T) {
	led := &stubLedger{balance: decimal.NewFromInt(100)}
	s := newTestSettler(led, newMemActions(), newMemWagers())
	ev := betEvent("T1", "R1")

	first, err := s.Apply(context.Background(), ev)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if first.Duplicate {
		t.Error("first delivery flagged as duplicate")
	}

	second, err := s.Apply(context.Background(), ev)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if !second.Duplicate {
		t.Error("second delivery not flagged as duplicate")
	}
	if led.debits != 1 {
		t.Errorf("debits = %d, want 1", led.debits)
	}
	if !led.balance.Equal(decimal.NewFromInt(90)) {
		t.Errorf("balance = %s, want 90", led.balance)
	}
}

func TestApplyRetryAfterPostDebitFailureDoesNotDebitAgain(t *testing.T) {
	led := &stubLedger{balance: decimal.NewFromInt(100), balanceErrs: 1}
	actions := newMemActions()
	s := newTestSettler(led, actions, newMemWagers())
	ev := betEvent("T1", "R1")

	// The pass fails after the debit committed.
	if _, err := s.Apply(context.Background(), ev); err == nil {
		t.Fatal("first delivery should fail on the balance read")
	}
	if led.debits != 1 {
		t.Fatalf("debits after failed pass = %d, want 1", led.debits)
	}
	if _, ok := actions.byTx["T1"]; !ok {
		t.Fatal("action record erased although the debit committed")
	}

	// The provider's retry must replay, not re-debit.
	res, err := s.Apply(context.Background(), ev)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !res.Duplicate {
		t.Error("retry not flagged as duplicate")
	}
	if led.debits != 1 {
		t.Errorf("debits after retry = %d, want 1", led.debits)
	}
	if !led.balance.Equal(decimal.NewFromInt(90)) {
		t.Errorf("balance = %s, want 90 (debited exactly once)", led.balance)
	}
}

func TestApplyRetryAfterPreEffectFailureStartsClean(t *testing.T) {
	led := &stubLedger{balance: decimal.NewFromInt(100), debitErr: balance.ErrInsufficientFunds}
	actions := newMemActions()
	s := newTestSettler(led, actions, newMemWagers())
	ev := betEvent("T1", "R1")

	if _, err := s.Apply(context.Background(), ev); !errors.Is(err, balance.ErrInsufficientFunds) {
		t.Fatalf("first delivery: got %v, want insufficient funds", err)
	}
	if len(actions.byTx) != 0 {
		t.Fatal("failed pre-effect pass left an action record behind")
	}

	// Nothing committed, so the retry must process fresh.
	res, err := s.Apply(context.Background(), ev)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.Duplicate {
		t.Error("clean retry flagged as duplicate")
	}
	if led.debits != 1 {
		t.Errorf("debits = %d, want 1", led.debits)
	}
}

func TestApplyDuplicateWinCreditsOnce(t *testing.T) {
	led := &stubLedger{balance: decimal.NewFromInt(100)}
	s := newTestSettler(led, newMemActions(), newMemWagers())

	if _, err := s.Apply(context.Background(), betEvent("T1", "R1")); err != nil {
		t.Fatalf("bet: %v", err)
	}

	win := Event{
		Kind:         models.ActionWin,
		ExternalTxID: "T2",
		Provider:     "seamless",
		RoundID:      "R1",
		UserCode:     "alice",
		GameID:       "slots-7",
		Amount:       decimal.NewFromInt(25),
		Currency:     "USD",
		Finished:     false,
	}
	if _, err := s.Apply(context.Background(), win); err != nil {
		t.Fatalf("win: %v", err)
	}
	res, err := s.Apply(context.Background(), win)
	if err != nil {
		t.Fatalf("duplicate win: %v", err)
	}
	if !res.Duplicate {
		t.Error("duplicate win not flagged")
	}
	if led.credits != 1 {
		t.Errorf("credits = %d, want 1", led.credits)
	}
	if !led.balance.Equal(decimal.NewFromInt(115)) {
		t.Errorf("balance = %s, want 115", led.balance)
	}
}

func TestApplyRollbackRetryAfterMidLoopFailure(t *testing.T) {
	led := &stubLedger{balance: decimal.NewFromInt(100)}
	actions := newMemActions()
	s := newTestSettler(led, actions, newMemWagers())

	if _, err := s.Apply(context.Background(), betEvent("T1", "R1")); err != nil {
		t.Fatalf("bet: %v", err)
	}

	rollback := Event{
		Kind:         models.ActionRollback,
		ExternalTxID: "T9",
		Provider:     "seamless",
		UserCode:     "alice",
		RefTxIDs:     []string{"T1"},
	}
	led.balanceErrs = 1 // fail the trailing balance read after the credit
	if _, err := s.Apply(context.Background(), rollback); err == nil {
		t.Fatal("rollback should fail on the balance read")
	}
	if led.credits != 1 {
		t.Fatalf("credits after failed rollback = %d, want 1", led.credits)
	}
	if _, ok := actions.byTx["T9"]; !ok {
		t.Fatal("rollback record erased although the compensation committed")
	}

	res, err := s.Apply(context.Background(), rollback)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !res.Duplicate {
		t.Error("retried rollback not flagged as duplicate")
	}
	if led.credits != 1 {
		t.Errorf("credits after retry = %d, want 1 (no re-compensation)", led.credits)
	}
}
