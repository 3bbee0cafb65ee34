// Command migrate_data copies the router tables from the SQLite file at DB_PATH
// into the Postgres database at DATABASE_URL.
package main

import (
	"context"

	"whatsapp-router/internal/config"
	"whatsapp-router/internal/database"
	"whatsapp-router/internal/logger"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.LoadConfig()
	logger.InitLogger(cfg.LogLevel, cfg.LogFormat)

	// 1. Connect to SQLite (Source)
	srcDialector, err := database.Dialector("sqlite", cfg.DBPath, "")
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid SQLite source")
	}
	src, err := database.OpenDialector(srcDialector)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to SQLite")
	}

	// 2. Connect to PostgreSQL (Destination)
	dstDialector, err := database.Dialector("postgres", "", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid Postgres destination")
	}
	dst, err := database.OpenDialector(dstDialector)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Postgres")
	}
	if err := database.Migrate(dst); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate Postgres schema")
	}

	counts, err := database.CopyAll(context.Background(), src, dst)
	if err != nil {
		log.Fatal().Err(err).Interface("copied", counts).Msg("Data migration failed")
	}
	log.Info().Interface("copied", counts).Msg("Migration completed")
}
