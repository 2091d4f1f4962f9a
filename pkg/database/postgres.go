// pkg/database/postgres.go
package database

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"learnhub/internal/config"
)

func dsn(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.Host,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.Port,
	)
}

// NewPostgresDB opens the database. SQL is logged only in debug mode.
func NewPostgresDB(cfg config.DatabaseConfig, mode string) (*gorm.DB, error) {
	level := gormlogger.Warn
	if mode == "debug" {
		level = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn(cfg)), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect to postgres")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql db")
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Migrate creates or updates the tables for the given models.
func Migrate(db *gorm.DB, models ...interface{}) error {
	return errors.Wrap(db.AutoMigrate(models...), "migrate database")
}
