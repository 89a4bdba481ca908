package database

import (
	"fmt"
	"os"

	"wagerd/config"
	"wagerd/logging"
	"wagerd/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Connect() {
	log := logging.Component("database")

	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	user := os.Getenv("DB_USER")
	pass := os.Getenv("DB_PASSWORD")
	name := os.Getenv("DB_NAME")
	sslmode := os.Getenv("DB_SSLMODE")

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, user, pass, name, port, sslmode,
	)

	// TranslateError turns postgres unique violations into
	// gorm.ErrDuplicatedKey, which the action ledger and wager store rely
	// on for their insert-or-fetch semantics.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	DB = db
	log.Info().Str("host", host).Str("db", name).Msg("connected to database")

	if config.Bool("DB_AUTO_MIGRATE", false) {
		if err := DB.AutoMigrate(
			&models.User{},
			&models.UserTransaction{},
			&models.Session{},
			&models.ActionRecord{},
			&models.ActiveWager{},
			&models.BetHistory{},
			&models.LeaderboardEntry{},
			&models.UserStats{},
			&models.AffiliateEarning{},
		); err != nil {
			log.Fatal().Err(err).Msg("failed to auto-migrate database")
		}
		log.Info().Msg("auto migration completed")
	}
}
