// Package seamless is the inbound callback surface for third-party game
// providers. One signed POST carries an action discriminator selecting
// balance|bet|win|refund|rollback; each kind parses into its own validated
// request shape and anything that doesn't parse is rejected before it
// reaches the settlement core.
package seamless

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"wagerd/balance"
	"wagerd/helpers"
	"wagerd/models"
	"wagerd/settle"
)

// Settler is wired in main.
var Settler *settle.Settler

const providerName = "seamless"

// GatewayHandler dispatches one provider callback. Business failures are
// reported in the response body with HTTP 200; the provider drives its
// retries off error_code, not transport status.
func GatewayHandler(c *fiber.Ctx) error {
	values, err := url.ParseQuery(string(c.Body()))
	if err != nil {
		return helpers.ProviderError(c, helpers.ProviderErrInternal, "malformed payload")
	}

	ev, err := ParseEvent(values)
	if err != nil {
		return helpers.ProviderError(c, helpers.ProviderErrInternal, err.Error())
	}
	ev.Payload = c.Body()

	res, err := Settler.Apply(c.Context(), ev)
	if err != nil {
		return providerFailure(c, err)
	}
	return helpers.ProviderSuccess(c, res.Balance, res.InternalTxID)
}

func providerFailure(c *fiber.Ctx, err error) error {
	code := helpers.ProviderErrInternal
	if errors.Is(err, balance.ErrInsufficientFunds) {
		code = helpers.ProviderErrInsufficientFunds
	}
	return helpers.ProviderError(c, code, err.Error())
}

// ParseEvent validates the tagged union: one request shape per action kind.
func ParseEvent(values url.Values) (settle.Event, error) {
	ev := settle.Event{
		Kind:         strings.ToLower(strings.TrimSpace(values.Get("action"))),
		ExternalTxID: strings.TrimSpace(values.Get("txn_id")),
		Provider:     providerName,
		RoundID:      strings.TrimSpace(values.Get("round_id")),
		SessionID:    strings.TrimSpace(values.Get("session_id")),
		UserCode:     strings.TrimSpace(values.Get("member_id")),
		GameID:       strings.TrimSpace(values.Get("game_id")),
		Currency:     strings.ToUpper(strings.TrimSpace(values.Get("currency"))),
	}

	if ev.UserCode == "" {
		return settle.Event{}, errors.New("member_id is required")
	}

	switch ev.Kind {
	case models.ActionBalance:
		return ev, nil

	case models.ActionBet:
		if err := requireFields(ev.ExternalTxID, ev.RoundID, ev.GameID, ev.Currency); err != nil {
			return settle.Event{}, err
		}
		amount, err := parseAmount(values.Get("amount"))
		if err != nil {
			return settle.Event{}, err
		}
		if !amount.IsPositive() {
			return settle.Event{}, errors.New("bet amount must be positive")
		}
		ev.Amount = amount
		return ev, nil

	case models.ActionWin:
		if err := requireFields(ev.ExternalTxID, ev.RoundID, ev.GameID, ev.Currency); err != nil {
			return settle.Event{}, err
		}
		amount, err := parseAmount(values.Get("amount"))
		if err != nil {
			return settle.Event{}, err
		}
		ev.Amount = amount
		// Absent flag means a single-shot provider: every win closes the
		// round.
		ev.Finished = parseFinished(values.Get("finished"))
		return ev, nil

	case models.ActionRefund:
		if err := requireFields(ev.ExternalTxID, ev.RoundID); err != nil {
			return settle.Event{}, err
		}
		ev.BetTxID = strings.TrimSpace(values.Get("bet_txn_id"))
		ev.Currency = defaultCurrency(ev.Currency)
		return ev, nil

	case models.ActionRollback:
		if ev.ExternalTxID == "" {
			return settle.Event{}, errors.New("txn_id is required")
		}
		for _, ref := range strings.Split(values.Get("ref_txn_ids"), ",") {
			if ref = strings.TrimSpace(ref); ref != "" {
				ev.RefTxIDs = append(ev.RefTxIDs, ref)
			}
		}
		if len(ev.RefTxIDs) == 0 {
			return settle.Event{}, errors.New("ref_txn_ids is required")
		}
		ev.Currency = defaultCurrency(ev.Currency)
		return ev, nil
	}

	return settle.Event{}, errors.New("unknown action " + ev.Kind)
}

func requireFields(fields ...string) error {
	for _, f := range fields {
		if f == "" {
			return errors.New("missing required parameters")
		}
	}
	return nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, errors.New("invalid amount")
	}
	if amount.IsNegative() {
		return decimal.Zero, errors.New("invalid amount")
	}
	return amount, nil
}

func parseFinished(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "1", "true", "yes":
		return true
	default:
		return false
	}
}

func defaultCurrency(currency string) string {
	if currency == "" && Settler != nil {
		return Settler.FX.Settlement()
	}
	return currency
}
