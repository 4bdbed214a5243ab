// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package prefund

import (
	"database/sql"
	"time"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/pkg/id"

	"github.com/go-kit/kit/log"
)

type Repository interface {
	CreateTransaction(transaction *Transaction) error
	LatestCompleted(tenantID id.Tenant, customerID id.Customer) (*Transaction, error)
	GetCustomerTransactions(tenantID id.Tenant, customerID id.Customer) ([]*Transaction, error)
	CustomersWithTransactions(tenantID id.Tenant) ([]id.Customer, error)
}

func NewRepo(logger log.Logger, db *sql.DB) *SQLRepo {
	return &SQLRepo{logger: logger, db: db}
}

type SQLRepo struct {
	logger log.Logger
	db     *sql.DB
}

func (r *SQLRepo) Close() error {
	return r.db.Close()
}

func (r *SQLRepo) CreateTransaction(transaction *Transaction) error {
	if transaction.ID == "" {
		transaction.ID = base.ID()
	}
	if transaction.Created.IsZero() {
		transaction.Created = base.Now()
	}

	query := `insert into prefund_transactions (prefund_id, tenant_id, customer_id, prefund_type, amount_cents, status, balance_after_cents, available_after_cents, created_at) values (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(transaction.ID, transaction.TenantID, transaction.CustomerID, transaction.Type, transaction.AmountCents, transaction.Status, transaction.BalanceAfterCents, transaction.AvailableAfterCents, transaction.Created.Time)
	return err
}

func (r *SQLRepo) LatestCompleted(tenantID id.Tenant, customerID id.Customer) (*Transaction, error) {
	query := `select prefund_id, customer_id, prefund_type, amount_cents, status, balance_after_cents, available_after_cents, created_at from prefund_transactions where tenant_id = ? and customer_id = ? and status = ? order by created_at desc limit 1`
	row := r.db.QueryRow(query, tenantID, customerID, Completed)

	transaction, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	transaction.TenantID = tenantID
	return transaction, nil
}

func (r *SQLRepo) GetCustomerTransactions(tenantID id.Tenant, customerID id.Customer) ([]*Transaction, error) {
	query := `select prefund_id, customer_id, prefund_type, amount_cents, status, balance_after_cents, available_after_cents, created_at from prefund_transactions where tenant_id = ? and customer_id = ? order by created_at asc`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.Query(tenantID, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		transaction, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transaction.TenantID = tenantID
		out = append(out, transaction)
	}
	return out, rows.Err()
}

func (r *SQLRepo) CustomersWithTransactions(tenantID id.Tenant) ([]id.Customer, error) {
	rows, err := r.db.Query(`select distinct customer_id from prefund_transactions where tenant_id = ?`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []id.Customer
	for rows.Next() {
		var customerID string
		if err := rows.Scan(&customerID); err != nil {
			return nil, err
		}
		out = append(out, id.Customer(customerID))
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	transaction := &Transaction{}
	var created time.Time
	if err := row.Scan(&transaction.ID, &transaction.CustomerID, &transaction.Type, &transaction.AmountCents, &transaction.Status, &transaction.BalanceAfterCents, &transaction.AvailableAfterCents, &created); err != nil {
		return nil, err
	}
	transaction.Created = base.NewTime(created)
	return transaction, nil
}
