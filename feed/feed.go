// Package feed publishes recent settled bets to live consumers. The buffer
// is a bounded, time-windowed queue owned by this publisher: items are
// evicted by age and by capacity, never accumulated as ambient state.
package feed

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	UserCode   string          `json:"user_code"`
	GameID     string          `json:"game_id"`
	Provider   string          `json:"provider"`
	BetAmount  decimal.Decimal `json:"bet_amount"`
	Payout     decimal.Decimal `json:"payout"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Outcome    string          `json:"outcome"`
	SettledAt  time.Time       `json:"settled_at"`
	// Hidden items stay out of the public snapshot.
	Hidden bool `json:"-"`
}

type Publisher struct {
	mu     sync.Mutex
	items  []Item
	maxLen int
	maxAge time.Duration

	ch chan Item

	now func() time.Time
}

func NewPublisher(maxLen int, maxAge time.Duration) *Publisher {
	return &Publisher{
		maxLen: maxLen,
		maxAge: maxAge,
		ch:     make(chan Item, maxLen),
		now:    time.Now,
	}
}

// Push appends one settled bet and evicts anything aged out or over
// capacity.
func (p *Publisher) Push(item Item) {
	p.mu.Lock()
	p.items = append(p.items, item)
	p.evictLocked(p.now())
	p.mu.Unlock()

	if !item.Hidden {
		// Non-blocking fan-out; drop when listeners are slow.
		select {
		case p.ch <- item:
		default:
		}
	}
}

// Recent returns the visible items, newest first.
func (p *Publisher) Recent() []Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evictLocked(p.now())

	out := make([]Item, 0, len(p.items))
	for i := len(p.items) - 1; i >= 0; i-- {
		if !p.items[i].Hidden {
			out = append(out, p.items[i])
		}
	}
	return out
}

// Listen returns a channel of live items plus a cancel function.
func (p *Publisher) Listen(ctx context.Context) (<-chan Item, context.CancelFunc) {
	listenerCtx, cancel := context.WithCancel(ctx)
	out := make(chan Item, cap(p.ch))

	go func() {
		defer close(out)
		for {
			select {
			case <-listenerCtx.Done():
				return
			case item, ok := <-p.ch:
				if !ok {
					return
				}
				select {
				case out <- item:
				case <-listenerCtx.Done():
					return
				}
			}
		}
	}()

	return out, cancel
}

func (p *Publisher) evictLocked(now time.Time) {
	if p.maxAge > 0 {
		cutoff := now.Add(-p.maxAge)
		first := 0
		for first < len(p.items) && p.items[first].SettledAt.Before(cutoff) {
			first++
		}
		p.items = p.items[first:]
	}
	if p.maxLen > 0 && len(p.items) > p.maxLen {
		p.items = p.items[len(p.items)-p.maxLen:]
	}
}
