package store

import (
	pgstore "github.com/dwarvesf/faucet-swap-backend/internal/store/postgres"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/config"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/logger"
)

// NewPostgresStore exits the process when the database is unreachable.
func NewPostgresStore(appConfig *config.AppConfig, logger *logger.Logger) DBRepo {
	db, err := pgstore.Connect(appConfig.Postgres)
	if err != nil {
		logger.Fatal("failed to open database connection", map[string]string{
			"error": err.Error(),
		})
	}

	logger.Info("database connected", map[string]string{
		"host": appConfig.Postgres.Host,
		"name": appConfig.Postgres.Name,
	})
	return NewRepo(db)
}
