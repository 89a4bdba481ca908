package fx

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Converter turns provider-currency amounts into the platform settlement
// currency. Rates are "units of settlement currency per one unit of the
// foreign currency"; the settlement currency itself always converts 1:1.
type Converter struct {
	settlement string
	rates      map[string]decimal.Decimal
}

func New(settlement string, rates map[string]decimal.Decimal) *Converter {
	normalized := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		normalized[strings.ToUpper(code)] = rate
	}
	return &Converter{settlement: strings.ToUpper(settlement), rates: normalized}
}

// NewFromEnv parses a rate table of the form "EUR:1.08,JPY:0.0067".
// Malformed pairs are skipped.
func NewFromEnv(settlement, table string) *Converter {
	rates := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(table, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, rateStr, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(rateStr))
		if err != nil || !rate.IsPositive() {
			continue
		}
		rates[strings.ToUpper(strings.TrimSpace(code))] = rate
	}
	return New(settlement, rates)
}

func (c *Converter) Settlement() string {
	return c.settlement
}

// ToSettlement converts amount from the given currency. An unknown currency
// is a hard error for the event; no partial conversion is attempted.
func (c *Converter) ToSettlement(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == c.settlement {
		return amount, nil
	}
	rate, ok := c.rates[code]
	if !ok {
		return decimal.Zero, fmt.Errorf("fx: currency %s not supported", currency)
	}
	return amount.Mul(rate).Round(2), nil
}
