package leaderboard

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"wagerd/helpers"
	boards "wagerd/leaderboard"
	"wagerd/models"
)

// Aggregator is wired in main.
var Aggregator *boards.Aggregator

// BoardsHandler returns the current windows for a game, ranked by the
// requested field (payout by default).
func BoardsHandler(c *fiber.Ctx) error {
	gameID := c.Params("game")
	if gameID == "" {
		return helpers.JSONError(c, "GAME_REQUIRED")
	}

	field := strings.ToLower(c.Query("field", models.RankByPayout))
	if field != models.RankByPayout && field != models.RankByMultiplier {
		return helpers.JSONError(c, "INVALID_RANKING_FIELD")
	}

	windows, err := Aggregator.Boards(gameID, field)
	if err != nil {
		return helpers.JSONError(c, "FAILED_TO_LOAD_LEADERBOARD")
	}
	return helpers.JSONSuccess(c, "Leaderboard", windows)
}
