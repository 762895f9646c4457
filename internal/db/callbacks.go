/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"errors"
	"time"

	"github.com/friendsincode/grimnir_panel/internal/telemetry"
	"gorm.io/gorm"
)

const startTimeKey = "telemetry:start_time"

// RegisterCallbacks records DB operation latency and failures for every CRUD processor.
func RegisterCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Query().Before("gorm:query").Register("telemetry:before_query", beforeCallback),
		cb.Query().After("gorm:query").Register("telemetry:after_query", afterCallback("query")),
		cb.Create().Before("gorm:create").Register("telemetry:before_create", beforeCallback),
		cb.Create().After("gorm:create").Register("telemetry:after_create", afterCallback("create")),
		cb.Update().Before("gorm:update").Register("telemetry:before_update", beforeCallback),
		cb.Update().After("gorm:update").Register("telemetry:after_update", afterCallback("update")),
		cb.Delete().Before("gorm:delete").Register("telemetry:before_delete", beforeCallback),
		cb.Delete().After("gorm:delete").Register("telemetry:after_delete", afterCallback("delete")),
		cb.Row().Before("gorm:row").Register("telemetry:before_row", beforeCallback),
		cb.Row().After("gorm:row").Register("telemetry:after_row", afterCallback("row")),
	)
}

func beforeCallback(db *gorm.DB) {
	db.InstanceSet(startTimeKey, time.Now())
}

func afterCallback(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(startTimeKey)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}

		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		telemetry.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())

		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			telemetry.DatabaseErrorsTotal.WithLabelValues(operation, "query_error").Inc()
		}
	}
}

// UpdateConnectionMetrics refreshes the connection pool gauge.
func UpdateConnectionMetrics(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	telemetry.DatabaseConnectionsActive.Set(float64(sqlDB.Stats().OpenConnections))
}
