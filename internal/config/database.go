// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"os"

	"github.com/raynmakr/bigfin/internal/util"
)

type Database struct {
	SQLite *SQLite
	MySQL  *MySQL
}

func (cfg Database) Validate() error {
	if cfg.SQLite == nil && cfg.MySQL == nil {
		return errors.New("missing sqlite and mysql sections")
	}
	return nil
}

type SQLite struct {
	Path string
}

type MySQL struct {
	Address  string
	Username string
	Password string
	Database string
}

func (cfg *MySQL) GetPassword() string {
	return util.Or(os.Getenv("MYSQL_PASSWORD"), cfg.Password)
}
