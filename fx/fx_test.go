package fx

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestToSettlementIdentity(t *testing.T) {
	c := New("USD", nil)
	amount := decimal.NewFromFloat(12.34)

	got, err := c.ToSettlement(amount, "usd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(amount) {
		t.Errorf("got %s, want %s", got, amount)
	}
}

func TestToSettlementConverts(t *testing.T) {
	c := New("USD", map[string]decimal.Decimal{
		"EUR": decimal.NewFromFloat(1.08),
	})

	got, err := c.ToSettlement(decimal.NewFromInt(100), "EUR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(108)) {
		t.Errorf("got %s, want 108", got)
	}
}

func TestToSettlementUnknownCurrency(t *testing.T) {
	c := New("USD", nil)
	if _, err := c.ToSettlement(decimal.NewFromInt(10), "XXX"); err == nil {
		t.Fatal("want error for unsupported currency")
	}
}

func TestNewFromEnv(t *testing.T) {
	c := NewFromEnv("USD", "EUR:1.08, JPY:0.0067, bogus, BAD:-1, ZZZ:abc")

	if _, err := c.ToSettlement(decimal.NewFromInt(1), "EUR"); err != nil {
		t.Errorf("EUR should be supported: %v", err)
	}
	if _, err := c.ToSettlement(decimal.NewFromInt(1), "JPY"); err != nil {
		t.Errorf("JPY should be supported: %v", err)
	}
	if _, err := c.ToSettlement(decimal.NewFromInt(1), "BAD"); err == nil {
		t.Error("negative rate should be skipped")
	}
	if _, err := c.ToSettlement(decimal.NewFromInt(1), "ZZZ"); err == nil {
		t.Error("malformed rate should be skipped")
	}
}
