// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-kit/kit/log"
	gomysql "github.com/go-sql-driver/mysql"
)

var (
	// mySQLErrDuplicateKey is the error code for duplicate entries
	// https://dev.mysql.com/doc/refman/8.0/en/server-error-reference.html#error_er_dup_entry
	mySQLErrDuplicateKey uint16 = 1062
)

type discardLogger struct{}

func (l discardLogger) Print(v ...interface{}) {}

func init() {
	gomysql.SetLogger(discardLogger{})
}

type mysql struct {
	dsn string

	migrations []string
	logger     log.Logger
}

func (my *mysql) Connect(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("mysql", my.dsn)
	if err != nil {
		return nil, err
	}

	// Run our migrations
	for i := range my.migrations {
		slug := my.migrations[i]
		if len(slug) > 40 {
			slug = slug[:40]
		}
		res, err := db.Exec(my.migrations[i])
		if err != nil {
			return nil, fmt.Errorf("migration #%d [%s...] had problem: %v", i, slug, err)
		}
		n, err := res.RowsAffected()
		if err == nil {
			my.logger.Log("mysql", fmt.Sprintf("migration #%d [%s...] changed %d rows", i, slug, n))
		}
	}

	// Check our DB is up and working
	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

func mysqlConnection(logger log.Logger, user, pass string, address string, database string) *mysql {
	dsn := fmt.Sprintf("%s:%s@%s/%s?%s", user, pass, address, database, "timeout=30s&tls=false&charset=utf8mb4&parseTime=true&sql_mode=ALLOW_INVALID_DATES")
	return &mysql{
		dsn:    dsn,
		logger: logger,
		migrations: []string{
			// Chart of accounts
			`create table if not exists accounts(account_code varchar(80) primary key, name varchar(100), account_type varchar(20), parent_code varchar(80), is_system boolean, created_at datetime);`,

			// Ledger
			`create table if not exists journals(journal_id varchar(40) primary key, tenant_id varchar(40), contract_id varchar(40), journal_type varchar(20), description varchar(250), is_reversal boolean, reverses_journal_id varchar(40), reversed_by_journal_id varchar(40), reversal_reason varchar(250), created_by varchar(40), created_at datetime);`,
			// created_at carries microseconds; running balance reads order on it
			`create table if not exists entries(entry_id varchar(40) primary key, journal_id varchar(40), tenant_id varchar(40), account_code varchar(80), debit_cents bigint, credit_cents bigint, balance_after_cents bigint, created_at datetime(6));`,

			// Contracts and amortization schedules
			`create table if not exists contracts(contract_id varchar(40) primary key, tenant_id varchar(40), customer_id varchar(40), status varchar(30), principal_cents bigint, apr_bps int, term_months int, payment_frequency varchar(10), first_payment_date datetime, principal_balance_cents bigint, interest_balance_cents bigint, fees_balance_cents bigint, disbursed_at datetime, paid_off_at datetime, created_at datetime);`,
			`create table if not exists schedule_items(item_id varchar(40) primary key, tenant_id varchar(40), contract_id varchar(40), sequence int, due_date datetime, payment_cents bigint, principal_cents bigint, interest_cents bigint, status varchar(20), created_at datetime);`,

			// Money movement
			`create table if not exists disbursements(disbursement_id varchar(40) primary key, tenant_id varchar(40), contract_id varchar(40), amount_cents bigint, express_fee_cents bigint, net_amount_cents bigint, source varchar(10), lender_customer_id varchar(40), status varchar(20), availability_state varchar(20), provider_ref varchar(60), rail varchar(20), idempotency_key varchar(60), failure_reason varchar(250), initiated_at datetime, completed_at datetime, failed_at datetime, hold_release_at datetime, created_at datetime, unique(provider_ref));`,
			`create table if not exists repayments(repayment_id varchar(40) primary key, tenant_id varchar(40), contract_id varchar(40), amount_cents bigint, applied_fee_cents bigint, applied_interest_cents bigint, applied_principal_cents bigint, status varchar(20), availability_state varchar(20), provider_ref varchar(60), rail varchar(20), idempotency_key varchar(60), failure_reason varchar(250), journal_id varchar(40), scheduled_for datetime, initiated_at datetime, completed_at datetime, failed_at datetime, created_at datetime, unique(provider_ref));`,

			// Funding instruments and prefund balances
			`create table if not exists funding_instruments(instrument_id varchar(40) primary key, tenant_id varchar(40), customer_id varchar(40), instrument_type varchar(20), status varchar(20), provider_ref varchar(60), supported_rails varchar(120), encrypted_account_number varchar(500), masked_account_number varchar(40), created_at datetime);`,
			`create table if not exists prefund_transactions(prefund_id varchar(40) primary key, tenant_id varchar(40), customer_id varchar(40), prefund_type varchar(30), amount_cents bigint, status varchar(20), balance_after_cents bigint, available_after_cents bigint, created_at datetime(6));`,

			// Reconciliation
			`create table if not exists reconciliation_exceptions(exception_id varchar(40) primary key, tenant_id varchar(40), run_id varchar(40), exception_type varchar(30), severity varchar(10), status varchar(20), local_record_type varchar(20), local_record_id varchar(40), provider_record_id varchar(60), local_value varchar(100), provider_value varchar(100), discrepancy_amount_cents bigint, description varchar(500), detected_at datetime, resolved_at datetime, resolution_type varchar(30));`,
			`create table if not exists reconciliation_runs(run_id varchar(40) primary key, tenant_id varchar(40), status varchar(20), period_start datetime, period_end datetime, summary text, error_message varchar(500), started_at datetime, completed_at datetime);`,

			// Idempotency replay
			`create table if not exists idempotency_records(idempotency_key varchar(60) primary key, tenant_id varchar(40), response text, status_code int, expires_at datetime, created_at datetime);`,
		},
	}
}

// MySQLUniqueViolation returns true when the provided error matches the MySQL code
// for duplicate entries (violating a unique table constraint).
func MySQLUniqueViolation(err error) bool {
	if e, ok := err.(*gomysql.MySQLError); ok {
		return e.Number == mySQLErrDuplicateKey
	}
	return false
}
