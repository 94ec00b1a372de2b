/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package db opens the optional feed history database.
package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/friendsincode/petfeeder/internal/config"
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrDisabled is returned when no database backend is configured.
var ErrDisabled = errors.New("feed history database disabled")

// Connect establishes a gorm DB connection for the configured backend and
// registers the telemetry callbacks.
func Connect(cfg *config.Config, logger zerolog.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg.DBBackend, cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	level := gormlogger.Warn
	if cfg.Environment == "development" {
		level = gormlogger.Info
	}

	database, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBBackend, err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := RegisterCallbacks(database); err != nil {
		return nil, fmt.Errorf("register db callbacks: %w", err)
	}

	logger.Info().Str("backend", string(cfg.DBBackend)).Msg("feed history database connected")
	return database, nil
}

func dialectorFor(backend config.DatabaseBackend, dsn string) (gorm.Dialector, error) {
	switch backend {
	case config.DatabasePostgres:
		return postgres.Open(dsn), nil
	case config.DatabaseMySQL:
		return mysql.Open(dsn), nil
	case config.DatabaseSQLite:
		return sqlite.Open(dsn), nil
	case config.DatabaseNone:
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown database backend: %s", backend)
	}
}

// Close releases database resources.
func Close(database *gorm.DB) error {
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
