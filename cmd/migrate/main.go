package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/gorm"

	pgstore "github.com/dwarvesf/faucet-swap-backend/internal/store/postgres"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/config"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/logger"
)

func runMigrations(db *gorm.DB, logger *logger.Logger, down bool) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	migrationPath := fmt.Sprintf("file://%s", filepath.Join("migrations", "schema"))
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(migrationPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Migrations completed successfully", map[string]string{
		"version": fmt.Sprint(version),
		"dirty":   fmt.Sprint(dirty),
	})
	return nil
}

func main() {
	appConfig := config.New()
	logger := logger.New(appConfig.Environment)
	defer logger.Sync()

	db, err := pgstore.Connect(appConfig.Postgres)
	if err != nil {
		logger.Fatal("[main][Connect] failed to open database connection", map[string]string{
			"error": err.Error(),
		})
	}

	down := len(os.Args) > 1 && os.Args[1] == "down"
	if err := runMigrations(db, logger, down); err != nil {
		logger.Error("[main][runMigrations] failed to run migrations", map[string]string{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}
