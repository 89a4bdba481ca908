package routes

import (
	"wagerd/controllers/callback/slots/seamless"
	feedctl "wagerd/controllers/feed"
	lbctl "wagerd/controllers/leaderboard"
	"wagerd/controllers/user"
	"wagerd/middlewares"

	"github.com/gofiber/fiber/v2"
)

func Setup(app *fiber.App) {
	operator := app.Group("/operator/user", middlewares.OperatorAuth())
	operator.Post("/register", user.RegisterUser)
	operator.Post("/session", user.CreateSession)

	userroutes := app.Group("/user", middlewares.UserAuthMiddleware)
	userroutes.Post("/balance", user.CheckUserBalance)

	// provider callbacks
	gateway := app.Group("/seamless/slot/api", middlewares.ProviderAuth())
	gateway.Post("/gateway", seamless.GatewayHandler)

	app.Get("/feed/recent", feedctl.RecentHandler)
	app.Get("/feed/live", feedctl.LiveHandler)
	app.Get("/leaderboard/:game", lbctl.BoardsHandler)
}
