package user

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"wagerd/database"
	"wagerd/helpers"
	"wagerd/models"
)

type RegisterUserRequest struct {
	UserCode      string `json:"user_code"`
	Country       string `json:"country"`
	Currency      string `json:"currency"`
	AffiliateCode string `json:"affiliate_code"`
}

func RegisterUser(c *fiber.Ctx) error {
	var req RegisterUserRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}

	userCode := strings.ToLower(strings.TrimSpace(req.UserCode))
	if userCode == "" {
		return helpers.JSONError(c, "USER_CODE_REQUIRED")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return helpers.JSONError(c, "CURRENCY_REQUIRED")
	}

	var existing models.User
	if err := database.DB.Where("user_code = ?", userCode).First(&existing).Error; err == nil {
		return helpers.JSONError(c, "USER_ALREADY_EXISTS")
	}

	user := models.User{
		UserCode:      userCode,
		Country:       strings.ToUpper(strings.TrimSpace(req.Country)),
		Currency:      currency,
		Balance:       decimal.Zero,
		IsActive:      true,
		AffiliateCode: strings.TrimSpace(req.AffiliateCode),
	}
	if err := database.DB.Create(&user).Error; err != nil {
		return helpers.JSONError(c, "FAILED_TO_REGISTER_USER")
	}

	return helpers.JSONSuccess(c, "User registered successfully", fiber.Map{
		"user_code": user.UserCode,
		"country":   user.Country,
		"currency":  user.Currency,
	})
}
