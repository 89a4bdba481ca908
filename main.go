package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"wagerd/balance"
	"wagerd/closeout"
	"wagerd/config"
	"wagerd/controllers/callback/slots/seamless"
	feedctl "wagerd/controllers/feed"
	lbctl "wagerd/controllers/leaderboard"
	"wagerd/database"
	"wagerd/feed"
	"wagerd/fx"
	"wagerd/hooks"
	"wagerd/jobs"
	"wagerd/leaderboard"
	"wagerd/ledger"
	"wagerd/logging"
	"wagerd/routes"
	"wagerd/settle"
	"wagerd/wager"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "error loading .env file:", err)
		os.Exit(1)
	}

	log := logging.Setup()

	database.Connect()
	database.ConnectRedis()

	converter := fx.NewFromEnv(config.SettlementCurrency(), os.Getenv("FX_RATES"))
	ledgerStore := ledger.NewStore(database.DB)
	wagerStore := wager.NewStore(database.DB)
	balanceLedger := balance.NewGormLedger(database.DB)

	publisher := feed.NewPublisher(
		config.Int("FEED_MAX_ITEMS", 100),
		config.Duration("FEED_MAX_AGE", 15*time.Minute),
	)
	aggregator := &leaderboard.Aggregator{
		DB:          database.DB,
		Redis:       database.Redis,
		Log:         logging.Component("leaderboard"),
		Floor:       config.Decimal("LEADERBOARD_WAGER_FLOOR", decimal.NewFromInt(1)),
		CutoffFloor: config.Decimal("LEADERBOARD_CUTOFF_FLOOR", decimal.NewFromInt(10)),
		Cooldown:    config.Duration("LEADERBOARD_COOLDOWN", 30*time.Second),
		CutoffTTL:   config.Duration("LEADERBOARD_CUTOFF_TTL", time.Hour),
	}

	engine := &closeout.Engine{
		DB:     database.DB,
		Wagers: wagerStore,
		Ledger: balanceLedger,
		Redis:  database.Redis,
		Log:    logging.Component("closeout"),
		Hooks: []hooks.PostBet{
			&hooks.StatsHook{DB: database.DB},
			&hooks.LeaderboardHook{Aggregator: aggregator},
			&hooks.AffiliateHook{
				DB:             database.DB,
				CommissionRate: config.Decimal("AFFILIATE_COMMISSION_RATE", decimal.NewFromFloat(0.005)),
			},
			&hooks.RewardsHook{
				DB:            database.DB,
				PointsPerUnit: config.Decimal("REWARD_POINTS_PER_UNIT", decimal.NewFromFloat(0.01)),
			},
			&hooks.FeedHook{Publisher: publisher},
		},
		Cooldown: config.Duration("CLOSEOUT_COOLDOWN", 10*time.Second),
	}

	seamless.Settler = &settle.Settler{
		Actions:    ledgerStore,
		Wagers:     wagerStore,
		Ledger:     balanceLedger,
		FX:         converter,
		Closer:     engine,
		DB:         database.DB,
		Redis:      database.Redis,
		BetLockTTL: config.Duration("BET_LOCK_TTL", 5*time.Second),
		Log:        logging.Component("settle"),
	}
	feedctl.Publisher = publisher
	lbctl.Aggregator = aggregator

	app := fiber.New(fiber.Config{
		ReadTimeout:  config.Duration("HTTP_READ_TIMEOUT", 10*time.Second),
		WriteTimeout: config.Duration("HTTP_WRITE_TIMEOUT", 10*time.Second),
	})
	routes.Setup(app)
	scheduler := jobs.StartScheduler(engine)

	host := config.String("HOST", "127.0.0.1")
	port := config.String("PORT", "3000")
	addr := fmt.Sprintf("%s:%s", host, port)
	log.Info().Str("addr", addr).Msg("server running")

	go func() {
		if err := app.Listen(addr); err != nil {
			log.Panic().Err(err).Msg("failed to start server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Info().Msg("gracefully shutting down")
	scheduler.Stop()
	if err := app.Shutdown(); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited cleanly")
}
