package database

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/viberl/BlindTasting-sub000/config"
	"github.com/viberl/BlindTasting-sub000/metrics"
	"github.com/viberl/BlindTasting-sub000/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the Postgres connection and migrates the models
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.Verbose {
		level = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table used by the service
func Migrate(db *gorm.DB) error {
	start := time.Now()
	defer metrics.RecordDBOperation("migrate", "all", start)

	if err := db.AutoMigrate(models.Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	slog.Info("database migrated", "tables", len(models.Models()))
	return nil
}
