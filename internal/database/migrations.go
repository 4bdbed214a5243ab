// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package database

import (
	"github.com/lopezator/migrator"
)

// The migrations below are written for sqlite. MySQL variants replace
// datetime precision and column types in mysql.go's setup but reuse the
// same table set.
var sqliteMigrations = migrator.Migrations(
	execsql(
		"create_accounts",
		`create table if not exists accounts(account_code primary key, name, account_type, parent_code, is_system, created_at datetime);`,
	),
	execsql(
		"create_journals",
		`create table if not exists journals(journal_id primary key, tenant_id, contract_id, journal_type, description, is_reversal, reverses_journal_id, reversed_by_journal_id, reversal_reason, created_by, created_at datetime);`,
	),
	execsql(
		"create_journals__tenant_contract_idx",
		`create index journals_tenant_contract on journals (tenant_id, contract_id);`,
	),
	execsql(
		"create_entries",
		`create table if not exists entries(entry_id primary key, journal_id, tenant_id, account_code, debit_cents integer, credit_cents integer, balance_after_cents integer, created_at datetime);`,
	),
	execsql(
		"create_entries__tenant_account_idx",
		`create index entries_tenant_account on entries (tenant_id, account_code, created_at);`,
	),
	execsql(
		"create_contracts",
		`create table if not exists contracts(contract_id primary key, tenant_id, customer_id, status, principal_cents integer, apr_bps integer, term_months integer, payment_frequency, first_payment_date datetime, principal_balance_cents integer, interest_balance_cents integer, fees_balance_cents integer, disbursed_at datetime, paid_off_at datetime, created_at datetime);`,
	),
	execsql(
		"create_schedule_items",
		`create table if not exists schedule_items(item_id primary key, tenant_id, contract_id, sequence integer, due_date datetime, payment_cents integer, principal_cents integer, interest_cents integer, status, created_at datetime);`,
	),
	execsql(
		"create_disbursements",
		`create table if not exists disbursements(disbursement_id primary key, tenant_id, contract_id, amount_cents integer, express_fee_cents integer, net_amount_cents integer, source, status, availability_state, provider_ref, rail, idempotency_key, failure_reason, initiated_at datetime, completed_at datetime, failed_at datetime, hold_release_at datetime, created_at datetime);`,
	),
	execsql(
		"create_disbursements__provider_ref_idx",
		`create unique index disbursements_provider_ref on disbursements (provider_ref) where provider_ref is not null;`,
	),
	execsql(
		"create_repayments",
		`create table if not exists repayments(repayment_id primary key, tenant_id, contract_id, amount_cents integer, applied_fee_cents integer, applied_interest_cents integer, applied_principal_cents integer, status, availability_state, provider_ref, rail, idempotency_key, failure_reason, journal_id, scheduled_for datetime, initiated_at datetime, completed_at datetime, failed_at datetime, created_at datetime);`,
	),
	execsql(
		"create_repayments__provider_ref_idx",
		`create unique index repayments_provider_ref on repayments (provider_ref) where provider_ref is not null;`,
	),
	execsql(
		"create_funding_instruments",
		`create table if not exists funding_instruments(instrument_id primary key, tenant_id, customer_id, instrument_type, status, provider_ref, supported_rails, encrypted_account_number, masked_account_number, created_at datetime);`,
	),
	execsql(
		"create_prefund_transactions",
		`create table if not exists prefund_transactions(prefund_id primary key, tenant_id, customer_id, prefund_type, amount_cents integer, status, balance_after_cents integer, available_after_cents integer, created_at datetime);`,
	),
	execsql(
		"create_reconciliation_exceptions",
		`create table if not exists reconciliation_exceptions(exception_id primary key, tenant_id, run_id, exception_type, severity, status, local_record_type, local_record_id, provider_record_id, local_value, provider_value, discrepancy_amount_cents integer, description, detected_at datetime, resolved_at datetime, resolution_type);`,
	),
	execsql(
		"create_reconciliation_runs",
		`create table if not exists reconciliation_runs(run_id primary key, tenant_id, status, period_start datetime, period_end datetime, summary, error_message, started_at datetime, completed_at datetime);`,
	),
	execsql(
		"create_idempotency_records",
		`create table if not exists idempotency_records(idempotency_key primary key, tenant_id, response, status_code integer, expires_at datetime, created_at datetime);`,
	),
	execsql(
		"add_disbursements__lender_customer_id",
		`alter table disbursements add column lender_customer_id;`,
	),
)
