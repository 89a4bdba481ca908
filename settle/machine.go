package settle

import "errors"

// State is the per-round settlement state, derived from the active wager
// row: no wager yet is waiting, an open wager is playing, a closed wager is
// in one of the two terminal states.
type State string

const (
	StateWaiting  State = "waiting"
	StatePlaying  State = "playing"
	StateGameOver State = "game_over"
	StateRefunded State = "refunded"
)

// EventKind is the subset of provider actions the state machine governs.
// Balance reads have no transition; rollback is a compensating pass over
// prior actions and never moves the round state.
type EventKind string

const (
	EventBet    EventKind = "bet"
	EventWin    EventKind = "win"
	EventRefund EventKind = "refund"
)

// Effect names the side effect a legal transition requires.
type Effect int

const (
	EffectNone Effect = iota
	EffectDebit
	EffectAccumulate
	EffectRefund
	EffectSettle
)

type Transition struct {
	Next   State
	Effect Effect
}

var ErrIllegalTransition = errors.New("settle: illegal transition")

// transitions is the explicit (state, event) table. Anything absent is an
// illegal transition and must produce no side effect.
var transitions = map[State]map[EventKind]Transition{
	StateWaiting: {
		EventBet:    {Next: StatePlaying, Effect: EffectDebit},
		EventRefund: {Next: StateRefunded, Effect: EffectRefund},
	},
	StatePlaying: {
		EventBet:    {Next: StatePlaying, Effect: EffectAccumulate},
		EventWin:    {Next: StateGameOver, Effect: EffectSettle},
		EventRefund: {Next: StateRefunded, Effect: EffectRefund},
	},
	StateGameOver: {
		// Late duplicate win from a multi-win provider.
		EventWin: {Next: StateGameOver, Effect: EffectNone},
	},
	StateRefunded: {
		// Duplicate refund.
		EventRefund: {Next: StateRefunded, Effect: EffectNone},
	},
}

// Lookup returns the transition for (state, event) or ErrIllegalTransition.
func Lookup(state State, event EventKind) (Transition, error) {
	if row, ok := transitions[state]; ok {
		if t, ok := row[event]; ok {
			return t, nil
		}
	}
	return Transition{}, ErrIllegalTransition
}
