/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"errors"
	"time"

	"github.com/friendsincode/petfeeder/internal/telemetry"
	"gorm.io/gorm"
)

const startTimeKey = "telemetry:start_time"

// RegisterCallbacks hooks query timing and error metrics into every CRUD
// operation.
func RegisterCallbacks(database *gorm.DB) error {
	cb := database.Callback()

	if err := cb.Query().Before("gorm:query").Register("telemetry:before_query", beforeCallback); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("telemetry:after_query", afterCallback("query")); err != nil {
		return err
	}
	if err := cb.Create().Before("gorm:create").Register("telemetry:before_create", beforeCallback); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("telemetry:after_create", afterCallback("create")); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("telemetry:before_update", beforeCallback); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("telemetry:after_update", afterCallback("update")); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("telemetry:before_delete", beforeCallback); err != nil {
		return err
	}
	return cb.Delete().After("gorm:delete").Register("telemetry:after_delete", afterCallback("delete"))
}

func beforeCallback(tx *gorm.DB) {
	tx.InstanceSet(startTimeKey, time.Now())
}

func afterCallback(operation string) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		value, ok := tx.InstanceGet(startTimeKey)
		if !ok {
			return
		}
		start, ok := value.(time.Time)
		if !ok {
			return
		}

		table := tx.Statement.Table
		if table == "" {
			table = "unknown"
		}
		telemetry.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())

		if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			telemetry.DatabaseErrorsTotal.WithLabelValues(operation).Inc()
		}
	}
}

// UpdateConnectionMetrics samples the connection pool size.
func UpdateConnectionMetrics(database *gorm.DB) {
	sqlDB, err := database.DB()
	if err != nil {
		return
	}
	telemetry.DatabaseConnectionsActive.Set(float64(sqlDB.Stats().OpenConnections))
}
