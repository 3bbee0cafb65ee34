// Command sync_sequences moves the Postgres projects.id sequence past the
// highest copied id. Run it after migrate_data.
package main

import (
	"whatsapp-router/internal/config"
	"whatsapp-router/internal/database"
	"whatsapp-router/internal/logger"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.LoadConfig()
	logger.InitLogger(cfg.LogLevel, cfg.LogFormat)

	dialector, err := database.Dialector("postgres", "", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid Postgres database")
	}
	db, err := database.OpenDialector(dialector)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Postgres")
	}

	// Only projects has a serial id; the other tables are keyed by uuid or wamid.
	tables := []string{"projects"}

	for _, table := range tables {
		query := "SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), coalesce(max(id), 0) + 1, false) FROM " + table
		if err := db.Exec(query).Error; err != nil {
			log.Error().Err(err).Str("table", table).Msg("Error syncing sequence")
			continue
		}
		log.Info().Str("table", table).Msg("Sequence synced")
	}
}
