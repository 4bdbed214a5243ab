// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package contracts

import (
	"database/sql"
	"time"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/internal/errcode"
	"github.com/raynmakr/bigfin/pkg/id"

	"github.com/go-kit/kit/log"
)

type Repository interface {
	CreateContract(contract *Contract, schedule []*ScheduleItem) error
	GetContract(tenantID id.Tenant, contractID id.Contract) (*Contract, error)
	GetContracts(tenantID id.Tenant, limit, offset int64) ([]*Contract, error)
	GetSchedule(tenantID id.Tenant, contractID id.Contract) ([]*ScheduleItem, error)
	MarkScheduleItemPaid(tenantID id.Tenant, itemID string) error
	UpdateStatus(tenantID id.Tenant, contractID id.Contract, from, to Status) error
	AddCharge(tenantID id.Tenant, contractID id.Contract, interestCents, feeCents int64) error
	MarkDefaulted(tenantID id.Tenant, contractID id.Contract) error
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

func (r *SQLRepo) CreateContract(contract *Contract, schedule []*ScheduleItem) error {
	if err := contract.Validate(); err != nil {
		return err
	}
	if contract.ID == "" {
		contract.ID = id.Contract(base.ID())
	}
	if contract.Status == "" {
		contract.Status = PendingDisbursement
	}
	if contract.Created.IsZero() {
		contract.Created = base.Now()
	}
	contract.PrincipalBalanceCents = contract.PrincipalCents

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	query := `insert into contracts (contract_id, tenant_id, customer_id, status, principal_cents, apr_bps, term_months, payment_frequency, first_payment_date, principal_balance_cents, interest_balance_cents, fees_balance_cents, created_at) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.Exec(query, contract.ID, contract.TenantID, contract.CustomerID, contract.Status, contract.PrincipalCents, contract.APRBps, contract.TermMonths, contract.PaymentFrequency, contract.FirstPaymentDate.Time, contract.PrincipalBalanceCents, contract.InterestBalanceCents, contract.FeesBalanceCents, contract.Created.Time)
	if err != nil {
		tx.Rollback()
		return err
	}

	itemQuery := `insert into schedule_items (item_id, tenant_id, contract_id, sequence, due_date, payment_cents, principal_cents, interest_cents, status, created_at) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for i := range schedule {
		item := schedule[i]
		if item.ID == "" {
			item.ID = base.ID()
		}
		item.ContractID = contract.ID
		_, err = tx.Exec(itemQuery, item.ID, contract.TenantID, item.ContractID, item.Sequence, item.DueDate.Time, item.PaymentCents, item.PrincipalCents, item.InterestCents, item.Status, contract.Created.Time)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLRepo) GetContract(tenantID id.Tenant, contractID id.Contract) (*Contract, error) {
	query := `select contract_id, customer_id, status, principal_cents, apr_bps, term_months, payment_frequency, first_payment_date, principal_balance_cents, interest_balance_cents, fees_balance_cents, disbursed_at, paid_off_at, created_at from contracts where tenant_id = ? and contract_id = ? limit 1`
	row := r.db.QueryRow(query, tenantID, contractID)

	contract, err := scanContract(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	contract.TenantID = tenantID
	return contract, nil
}

func (r *SQLRepo) GetContracts(tenantID id.Tenant, limit, offset int64) ([]*Contract, error) {
	query := `select contract_id, customer_id, status, principal_cents, apr_bps, term_months, payment_frequency, first_payment_date, principal_balance_cents, interest_balance_cents, fees_balance_cents, disbursed_at, paid_off_at, created_at from contracts where tenant_id = ? order by created_at desc limit ? offset ?`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.Query(tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Contract
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contract.TenantID = tenantID
		out = append(out, contract)
	}
	return out, rows.Err()
}

func (r *SQLRepo) GetSchedule(tenantID id.Tenant, contractID id.Contract) ([]*ScheduleItem, error) {
	query := `select item_id, contract_id, sequence, due_date, payment_cents, principal_cents, interest_cents, status from schedule_items where tenant_id = ? and contract_id = ? order by sequence asc`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.Query(tenantID, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ScheduleItem
	for rows.Next() {
		item := &ScheduleItem{}
		var due time.Time
		if err := rows.Scan(&item.ID, &item.ContractID, &item.Sequence, &due, &item.PaymentCents, &item.PrincipalCents, &item.InterestCents, &item.Status); err != nil {
			return nil, err
		}
		item.DueDate = base.NewTime(due)
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLRepo) MarkScheduleItemPaid(tenantID id.Tenant, itemID string) error {
	res, err := r.db.Exec(`update schedule_items set status = ? where tenant_id = ? and item_id = ?`, ItemPaid, tenantID, itemID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return errcode.New(errcode.NotFound, "schedule item %s not found", itemID)
	}
	return nil
}

// UpdateStatus transitions a contract, guarded on its current status so
// concurrent writers can't race past a terminal state.
func (r *SQLRepo) UpdateStatus(tenantID id.Tenant, contractID id.Contract, from, to Status) error {
	res, err := r.db.Exec(`update contracts set status = ? where tenant_id = ? and contract_id = ? and status = ?`, to, tenantID, contractID, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return errcode.New(errcode.InvalidState, "contract %s is not %s", contractID, from)
	}
	return nil
}

// AddCharge bumps the interest and fee receivable balances after an
// accrual or fee assessment journal posts.
func (r *SQLRepo) AddCharge(tenantID id.Tenant, contractID id.Contract, interestCents, feeCents int64) error {
	res, err := r.db.Exec(`update contracts set interest_balance_cents = interest_balance_cents + ?, fees_balance_cents = fees_balance_cents + ? where tenant_id = ? and contract_id = ?`, interestCents, feeCents, tenantID, contractID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return errcode.New(errcode.NotFound, "contract %s not found", contractID)
	}
	return nil
}

// MarkDefaulted writes off a contract: status DEFAULTED and every
// receivable balance zeroed, matching the write-off journal.
func (r *SQLRepo) MarkDefaulted(tenantID id.Tenant, contractID id.Contract) error {
	res, err := r.db.Exec(`update contracts set status = ?, principal_balance_cents = 0, interest_balance_cents = 0, fees_balance_cents = 0 where tenant_id = ? and contract_id = ? and status in (?, ?)`, Defaulted, tenantID, contractID, Active, PendingDisbursement)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return errcode.New(errcode.InvalidState, "contract %s can't be defaulted", contractID)
	}
	return nil
}

// Activate flips a pending contract to ACTIVE inside the caller's
// transaction, stamping disbursed_at. Used by status ingestion so the
// contract transition commits with the settlement journal.
func Activate(tx *sql.Tx, tenantID id.Tenant, contractID id.Contract, disbursedAt time.Time) error {
	res, err := tx.Exec(`update contracts set status = ?, disbursed_at = ? where tenant_id = ? and contract_id = ? and status = ?`, Active, disbursedAt, tenantID, contractID, PendingDisbursement)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return errcode.New(errcode.InvalidState, "contract %s is not pending disbursement", contractID)
	}
	return nil
}

// ApplyRepayment decrements the receivable balances inside the caller's
// transaction and marks the contract PAID_OFF when everything reaches
// zero. Returns whether the contract paid off.
func ApplyRepayment(tx *sql.Tx, tenantID id.Tenant, contractID id.Contract, applied Applied, now time.Time) (bool, error) {
	res, err := tx.Exec(`update contracts set
fees_balance_cents = fees_balance_cents - ?,
interest_balance_cents = interest_balance_cents - ?,
principal_balance_cents = principal_balance_cents - ?
where tenant_id = ? and contract_id = ?
and fees_balance_cents >= ? and interest_balance_cents >= ? and principal_balance_cents >= ?`,
		applied.FeeCents, applied.InterestCents, applied.PrincipalCents,
		tenantID, contractID,
		applied.FeeCents, applied.InterestCents, applied.PrincipalCents)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return false, errcode.New(errcode.InvalidState, "contract %s balances don't cover the applied split", contractID)
	}

	row := tx.QueryRow(`select principal_balance_cents + interest_balance_cents + fees_balance_cents from contracts where tenant_id = ? and contract_id = ?`, tenantID, contractID)
	var outstanding int64
	if err := row.Scan(&outstanding); err != nil {
		return false, err
	}
	if outstanding > 0 {
		return false, nil
	}

	_, err = tx.Exec(`update contracts set status = ?, paid_off_at = ? where tenant_id = ? and contract_id = ? and status = ?`, PaidOff, now, tenantID, contractID, Active)
	return true, err
}

// RestoreRepayment re-adds a returned repayment's applied split to the
// receivable balances inside the caller's transaction. A contract the
// returned repayment had paid off reopens as ACTIVE.
func RestoreRepayment(tx *sql.Tx, tenantID id.Tenant, contractID id.Contract, applied Applied) error {
	res, err := tx.Exec(`update contracts set
fees_balance_cents = fees_balance_cents + ?,
interest_balance_cents = interest_balance_cents + ?,
principal_balance_cents = principal_balance_cents + ?
where tenant_id = ? and contract_id = ? and status in (?, ?)`,
		applied.FeeCents, applied.InterestCents, applied.PrincipalCents,
		tenantID, contractID, Active, PaidOff)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return errcode.New(errcode.InvalidState, "contract %s can't take the returned split", contractID)
	}

	_, err = tx.Exec(`update contracts set status = ?, paid_off_at = null where tenant_id = ? and contract_id = ? and status = ?`, Active, tenantID, contractID, PaidOff)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContract(row rowScanner) (*Contract, error) {
	contract := &Contract{}
	var firstPayment, created time.Time
	var disbursedAt, paidOffAt *time.Time
	err := row.Scan(&contract.ID, &contract.CustomerID, &contract.Status, &contract.PrincipalCents, &contract.APRBps, &contract.TermMonths, &contract.PaymentFrequency, &firstPayment, &contract.PrincipalBalanceCents, &contract.InterestBalanceCents, &contract.FeesBalanceCents, &disbursedAt, &paidOffAt, &created)
	if err != nil {
		return nil, err
	}
	contract.FirstPaymentDate = base.NewTime(firstPayment)
	contract.Created = base.NewTime(created)
	if disbursedAt != nil {
		t := base.NewTime(*disbursedAt)
		contract.DisbursedAt = &t
	}
	if paidOffAt != nil {
		t := base.NewTime(*paidOffAt)
		contract.PaidOffAt = &t
	}
	return contract, nil
}
