package hooks

import (
	"errors"
	"testing"

	"wagerd/models"
)

type fakeHook struct {
	name string
	err  error
	runs int
}

func (f *fakeHook) Name() string { return f.name }
func (f *fakeHook) Run(h *models.BetHistory) error {
	f.runs++
	return f.err
}

func TestRunAllSettleAll(t *testing.T) {
	boom := errors.New("boom")
	first := &fakeHook{name: "first", err: boom}
	second := &fakeHook{name: "second"}
	third := &fakeHook{name: "third", err: boom}

	failed := RunAll([]PostBet{first, second, third}, &models.BetHistory{})

	// Every hook ran despite the failures.
	for _, h := range []*fakeHook{first, second, third} {
		if h.runs != 1 {
			t.Errorf("hook %s ran %d times, want 1", h.name, h.runs)
		}
	}
	if len(failed) != 2 {
		t.Fatalf("got %d failures, want 2", len(failed))
	}
	if !errors.Is(failed["first"], boom) || !errors.Is(failed["third"], boom) {
		t.Errorf("failure map = %v, want first and third", failed)
	}
	if _, ok := failed["second"]; ok {
		t.Error("clean hook reported as failed")
	}
}

func TestRunAllEmpty(t *testing.T) {
	if failed := RunAll(nil, &models.BetHistory{}); len(failed) != 0 {
		t.Errorf("got %v, want empty map", failed)
	}
}
