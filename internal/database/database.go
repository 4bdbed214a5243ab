// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/raynmakr/bigfin/internal/config"

	"github.com/go-kit/kit/log"
	"github.com/lopezator/migrator"
)

// New establishes a database connection from the Database config
// section. SQLite wins when both sections are set, matching local
// development expectations.
func New(ctx context.Context, logger log.Logger, cfg config.Database) (*sql.DB, error) {
	if cfg.SQLite != nil {
		return sqliteConnection(logger, cfg.SQLite.Path).Connect(ctx)
	}
	if cfg.MySQL != nil {
		return mysqlConnection(logger, cfg.MySQL.Username, cfg.MySQL.GetPassword(), cfg.MySQL.Address, cfg.MySQL.Database).Connect(ctx)
	}
	return nil, fmt.Errorf("database: no connection configured")
}

func execsql(name, raw string) *migrator.MigrationNoTx {
	return &migrator.MigrationNoTx{
		Name: name,
		Func: func(db *sql.DB) error {
			_, err := db.Exec(raw)
			return err
		},
	}
}

// UniqueViolation returns true when the provided error matches a database
// error for duplicate entries (violating a unique table constraint).
func UniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return MySQLUniqueViolation(err) || SqliteUniqueViolation(err)
}
