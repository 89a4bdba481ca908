package user

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"wagerd/database"
	"wagerd/helpers"
	"wagerd/models"
)

type CreateSessionRequest struct {
	UserCode string `json:"user_code"`
}

func CreateSession(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}

	var user models.User
	if err := database.DB.
		Where("user_code = ? AND is_active = true", strings.ToLower(strings.TrimSpace(req.UserCode))).
		First(&user).Error; err != nil {
		return helpers.JSONError(c, "USER_NOT_FOUND")
	}

	session := models.Session{
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	if err := database.DB.Create(&session).Error; err != nil {
		return helpers.JSONError(c, "FAILED_TO_CREATE_SESSION")
	}

	return helpers.JSONSuccess(c, "Session created", fiber.Map{
		"session_token": session.SID,
		"expires_at":    session.ExpiresAt,
	})
}
