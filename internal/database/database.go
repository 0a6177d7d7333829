package database

import (
	"fmt"
	"time"

	"catalog-migration-service/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the Postgres connection pool used for job history and product mappings
func Connect(databaseURL, environment string) (*gorm.DB, error) {
	logLevel := logger.Silent
	if environment == "development" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Migrate creates or updates the migration tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.MigrationJob{},
		&models.MigrationLog{},
		&models.ProductMapping{},
	)
}
