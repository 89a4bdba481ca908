package helpers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Provider error codes. The enum is deliberately small: the provider only
// distinguishes "don't retry" (insufficient funds) from "may retry"
// (internal error). Success carries an empty code.
const (
	ProviderErrInsufficientFunds = "insufficient_funds"
	ProviderErrInternal          = "internal_error"
)

// ProviderSuccess answers a settled callback. The provider contract is
// HTTP 200 always; retry semantics live in the body, not the status.
func ProviderSuccess(c *fiber.Ctx, balance decimal.Decimal, trxID string) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"balance":           balance,
		"transaction_id":    trxID,
		"error_code":        "",
		"error_description": "",
	})
}

// ProviderError answers a rejected callback, still with HTTP 200.
func ProviderError(c *fiber.Ctx, code, description string) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"balance":           nil,
		"transaction_id":    "",
		"error_code":        code,
		"error_description": description,
	})
}

func JSONSuccess(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func JSONError(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": message,
		"data":    nil,
	})
}
