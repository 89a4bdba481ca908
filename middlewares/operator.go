package middlewares

import (
	"crypto/subtle"
	"os"

	"github.com/gofiber/fiber/v2"
)

// OperatorAuth guards the operator-facing account endpoints with a shared
// key from the environment.
func OperatorAuth() fiber.Handler {
	expected := os.Getenv("OPERATOR_KEY")
	return func(c *fiber.Ctx) error {
		provided := c.Get("X-Operator-Key")
		if expected == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "INVALID_OPERATOR_KEY",
			})
		}
		return c.Next()
	}
}
