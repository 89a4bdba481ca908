package feed

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPushEvictsByCapacity(t *testing.T) {
	p := NewPublisher(3, time.Hour)
	base := time.Now()
	for i := 0; i < 5; i++ {
		p.Push(Item{GameID: "g", UserCode: "u", SettledAt: base.Add(time.Duration(i) * time.Second)})
	}

	recent := p.Recent()
	if len(recent) != 3 {
		t.Fatalf("got %d items, want 3", len(recent))
	}
	// Newest first.
	if !recent[0].SettledAt.After(recent[1].SettledAt) {
		t.Error("items not ordered newest first")
	}
}

func TestPushEvictsByAge(t *testing.T) {
	p := NewPublisher(100, 10*time.Minute)
	now := time.Now()
	p.now = func() time.Time { return now }

	p.Push(Item{UserCode: "old", SettledAt: now.Add(-time.Hour)})
	p.Push(Item{UserCode: "fresh", SettledAt: now.Add(-time.Minute)})

	recent := p.Recent()
	if len(recent) != 1 {
		t.Fatalf("got %d items, want 1", len(recent))
	}
	if recent[0].UserCode != "fresh" {
		t.Errorf("kept %s, want fresh", recent[0].UserCode)
	}
}

func TestRecentHidesHiddenItems(t *testing.T) {
	p := NewPublisher(10, time.Hour)
	now := time.Now()
	p.Push(Item{UserCode: "public", SettledAt: now})
	p.Push(Item{UserCode: "ghost", SettledAt: now, Hidden: true})

	recent := p.Recent()
	if len(recent) != 1 || recent[0].UserCode != "public" {
		t.Errorf("Recent() = %+v, want only the public item", recent)
	}
}

func TestListenReceivesPushes(t *testing.T) {
	p := NewPublisher(10, time.Hour)
	ch, cancel := p.Listen(context.Background())
	defer cancel()

	want := Item{UserCode: "u", Payout: decimal.NewFromInt(25), SettledAt: time.Now()}
	p.Push(want)

	select {
	case got := <-ch:
		if got.UserCode != "u" || !got.Payout.Equal(want.Payout) {
			t.Errorf("got %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("no item received")
	}
}
