package middlewares

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"wagerd/database"
	"wagerd/helpers"
	"wagerd/models"
)

func UserAuthMiddleware(c *fiber.Ctx) error {
	sid := c.Get("X-Session-Token")
	if sid == "" {
		return helpers.JSONError(c, "SESSION_TOKEN_REQUIRED")
	}

	var session models.Session
	if err := database.DB.Preload("User").
		Where("sid = ? AND expires_at > ?", sid, time.Now()).
		First(&session).Error; err != nil {
		return helpers.JSONError(c, "INVALID_OR_EXPIRED_SESSION")
	}
	if !session.User.IsActive {
		return helpers.JSONError(c, "USER_INACTIVE")
	}

	c.Locals("user", session.User)
	return c.Next()
}
