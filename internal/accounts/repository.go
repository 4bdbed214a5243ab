// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package accounts

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/raynmakr/bigfin/internal/database"

	"github.com/go-kit/kit/log"
)

type Repository interface {
	GetAccount(code string) (*Account, error)
	GetAccounts() ([]*Account, error)
	CreateAccount(acct *Account) error
}

func NewRepo(logger log.Logger, db *sql.DB) *SQLRepo {
	return &SQLRepo{logger: logger, db: db}
}

type SQLRepo struct {
	db     *sql.DB
	logger log.Logger
}

func (r *SQLRepo) Close() error {
	return r.db.Close()
}

func (r *SQLRepo) GetAccount(code string) (*Account, error) {
	query := `select account_code, name, account_type, parent_code, is_system from accounts where account_code = ? limit 1`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	acct := &Account{}
	var parent *string
	row := stmt.QueryRow(code)
	if err := row.Scan(&acct.Code, &acct.Name, &acct.Type, &parent, &acct.IsSystem); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if parent != nil {
		acct.ParentCode = *parent
	}
	return acct, nil
}

func (r *SQLRepo) GetAccounts() ([]*Account, error) {
	query := `select account_code, name, account_type, parent_code, is_system from accounts order by account_code asc`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		acct := &Account{}
		var parent *string
		if err := rows.Scan(&acct.Code, &acct.Name, &acct.Type, &parent, &acct.IsSystem); err != nil {
			return nil, fmt.Errorf("getAccounts scan: %v", err)
		}
		if parent != nil {
			acct.ParentCode = *parent
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

func (r *SQLRepo) CreateAccount(acct *Account) error {
	if err := acct.Validate(); err != nil {
		return err
	}

	query := `insert into accounts (account_code, name, account_type, parent_code, is_system, created_at) values (?, ?, ?, ?, ?, ?)`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(acct.Code, acct.Name, acct.Type, acct.ParentCode, acct.IsSystem, time.Now())
	if err != nil && database.UniqueViolation(err) {
		return fmt.Errorf("account %s already exists", acct.Code)
	}
	return err
}
