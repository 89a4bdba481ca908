package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Getenv-backed accessors. Values are read on demand so tests can override
// them with t.Setenv.

func String(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func Int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func Bool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func Duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func Decimal(key string, fallback decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return fallback
	}
	return d
}

// SettlementCurrency is the platform currency every provider amount is
// converted into before it touches the balance ledger.
func SettlementCurrency() string {
	return String("SETTLEMENT_CURRENCY", "USD")
}

// ProviderSecret signs inbound provider callbacks.
func ProviderSecret() string {
	return os.Getenv("PROVIDER_CALLBACK_SECRET")
}
