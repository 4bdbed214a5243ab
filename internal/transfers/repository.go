// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package transfers

import (
	"database/sql"
	"time"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/internal/errcode"
	"github.com/raynmakr/bigfin/internal/routing"
	"github.com/raynmakr/bigfin/pkg/id"

	"github.com/go-kit/kit/log"
)

// queryable is satisfied by both *sql.DB and *sql.Tx so status writes
// can run inside the orchestrator's settlement transaction.
type queryable interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

type Repository interface {
	CreateDisbursement(disbursement *Disbursement) error
	GetDisbursement(tenantID id.Tenant, disbursementID id.Disbursement) (*Disbursement, error)
	GetDisbursementByProviderRef(providerRef id.ProviderRef) (*Disbursement, error)
	GetContractDisbursements(tenantID id.Tenant, contractID id.Contract) ([]*Disbursement, error)
	GetDisbursementsInitiatedBetween(tenantID id.Tenant, start, end time.Time) ([]*Disbursement, error)
	CountCompletedDisbursements(tenantID id.Tenant, contractID id.Contract) (int64, error)
	ReleaseExpiredHolds(now time.Time) (int64, error)

	CreateRepayment(repayment *Repayment) error
	GetRepayment(tenantID id.Tenant, repaymentID id.Repayment) (*Repayment, error)
	GetRepaymentByProviderRef(providerRef id.ProviderRef) (*Repayment, error)
	GetContractRepayments(tenantID id.Tenant, contractID id.Contract) ([]*Repayment, error)
	GetRepaymentsInitiatedBetween(tenantID id.Tenant, start, end time.Time) ([]*Repayment, error)
	GetDueScheduledRepayments(now time.Time) ([]*Repayment, error)

	GetActiveTenants() ([]id.Tenant, error)
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

const disbursementColumns = `disbursement_id, tenant_id, contract_id, amount_cents, express_fee_cents, net_amount_cents, source, lender_customer_id, status, availability_state, provider_ref, rail, idempotency_key, failure_reason, initiated_at, completed_at, failed_at, hold_release_at, created_at`

func (r *SQLRepo) CreateDisbursement(disbursement *Disbursement) error {
	if disbursement.ID == "" {
		disbursement.ID = id.Disbursement(base.ID())
	}
	if disbursement.Status == "" {
		disbursement.Status = Initiated
		disbursement.Availability = AvailInitiated
	}
	if disbursement.Created.IsZero() {
		disbursement.Created = base.Now()
	}
	disbursement.NetAmountCents = disbursement.AmountCents - disbursement.ExpressFeeCents

	query := `insert into disbursements (` + disbursementColumns + `) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(
		disbursement.ID, disbursement.TenantID, disbursement.ContractID,
		disbursement.AmountCents, disbursement.ExpressFeeCents, disbursement.NetAmountCents,
		disbursement.Source, nullableString(string(disbursement.LenderCustomerID)),
		disbursement.Status, disbursement.Availability,
		nullableString(string(disbursement.ProviderRef)), nullableString(string(disbursement.Rail)),
		nullableString(disbursement.IdempotencyKey), nullableString(disbursement.FailureReason),
		nullableTime(disbursement.InitiatedAt), nullableTime(disbursement.CompletedAt),
		nullableTime(disbursement.FailedAt), nullableTime(disbursement.HoldReleaseAt),
		disbursement.Created.Time)
	return err
}

func (r *SQLRepo) GetDisbursement(tenantID id.Tenant, disbursementID id.Disbursement) (*Disbursement, error) {
	row := r.db.QueryRow(`select `+disbursementColumns+` from disbursements where tenant_id = ? and disbursement_id = ? limit 1`, tenantID, disbursementID)
	return oneDisbursement(row)
}

func (r *SQLRepo) GetDisbursementByProviderRef(providerRef id.ProviderRef) (*Disbursement, error) {
	row := r.db.QueryRow(`select `+disbursementColumns+` from disbursements where provider_ref = ? limit 1`, providerRef)
	return oneDisbursement(row)
}

func (r *SQLRepo) GetContractDisbursements(tenantID id.Tenant, contractID id.Contract) ([]*Disbursement, error) {
	rows, err := r.db.Query(`select `+disbursementColumns+` from disbursements where tenant_id = ? and contract_id = ? order by created_at desc`, tenantID, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return manyDisbursements(rows)
}

func (r *SQLRepo) GetDisbursementsInitiatedBetween(tenantID id.Tenant, start, end time.Time) ([]*Disbursement, error) {
	rows, err := r.db.Query(`select `+disbursementColumns+` from disbursements where tenant_id = ? and provider_ref is not null and initiated_at >= ? and initiated_at <= ?`, tenantID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return manyDisbursements(rows)
}

func (r *SQLRepo) CountCompletedDisbursements(tenantID id.Tenant, contractID id.Contract) (int64, error) {
	row := r.db.QueryRow(`select count(*) from disbursements where tenant_id = ? and contract_id = ? and status = ?`, tenantID, contractID, Completed)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ReleaseExpiredHolds moves HELD disbursements past their release time
// to AVAILABLE, returning how many released.
func (r *SQLRepo) ReleaseExpiredHolds(now time.Time) (int64, error) {
	res, err := r.db.Exec(`update disbursements set availability_state = ? where availability_state = ? and hold_release_at <= ?`, AvailAvailable, AvailHeld, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const repaymentColumns = `repayment_id, tenant_id, contract_id, amount_cents, applied_fee_cents, applied_interest_cents, applied_principal_cents, status, availability_state, provider_ref, rail, idempotency_key, failure_reason, journal_id, scheduled_for, initiated_at, completed_at, failed_at, created_at`

func (r *SQLRepo) CreateRepayment(repayment *Repayment) error {
	if repayment.ID == "" {
		repayment.ID = id.Repayment(base.ID())
	}
	if repayment.Status == "" {
		repayment.Status = Initiated
		repayment.Availability = AvailInitiated
	}
	if repayment.Created.IsZero() {
		repayment.Created = base.Now()
	}

	query := `insert into repayments (` + repaymentColumns + `) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(
		repayment.ID, repayment.TenantID, repayment.ContractID,
		repayment.AmountCents, repayment.AppliedFeeCents, repayment.AppliedInterestCents, repayment.AppliedPrincipalCents,
		repayment.Status, repayment.Availability,
		nullableString(string(repayment.ProviderRef)), nullableString(string(repayment.Rail)),
		nullableString(repayment.IdempotencyKey), nullableString(repayment.FailureReason),
		nullableString(string(repayment.JournalID)), nullableTime(repayment.ScheduledFor),
		nullableTime(repayment.InitiatedAt), nullableTime(repayment.CompletedAt),
		nullableTime(repayment.FailedAt), repayment.Created.Time)
	return err
}

func (r *SQLRepo) GetRepayment(tenantID id.Tenant, repaymentID id.Repayment) (*Repayment, error) {
	row := r.db.QueryRow(`select `+repaymentColumns+` from repayments where tenant_id = ? and repayment_id = ? limit 1`, tenantID, repaymentID)
	return oneRepayment(row)
}

func (r *SQLRepo) GetRepaymentByProviderRef(providerRef id.ProviderRef) (*Repayment, error) {
	row := r.db.QueryRow(`select `+repaymentColumns+` from repayments where provider_ref = ? limit 1`, providerRef)
	return oneRepayment(row)
}

func (r *SQLRepo) GetContractRepayments(tenantID id.Tenant, contractID id.Contract) ([]*Repayment, error) {
	rows, err := r.db.Query(`select `+repaymentColumns+` from repayments where tenant_id = ? and contract_id = ? order by created_at desc`, tenantID, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return manyRepayments(rows)
}

func (r *SQLRepo) GetRepaymentsInitiatedBetween(tenantID id.Tenant, start, end time.Time) ([]*Repayment, error) {
	rows, err := r.db.Query(`select `+repaymentColumns+` from repayments where tenant_id = ? and provider_ref is not null and initiated_at >= ? and initiated_at <= ?`, tenantID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return manyRepayments(rows)
}

// GetDueScheduledRepayments finds SCHEDULED repayments whose
// scheduled_for has arrived, across all tenants, for the activator.
func (r *SQLRepo) GetDueScheduledRepayments(now time.Time) ([]*Repayment, error) {
	rows, err := r.db.Query(`select `+repaymentColumns+` from repayments where status = ? and scheduled_for <= ?`, Scheduled, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return manyRepayments(rows)
}

// GetActiveTenants returns every tenant with transfer activity, used
// to fan out scheduled reconciliation runs.
func (r *SQLRepo) GetActiveTenants() ([]id.Tenant, error) {
	rows, err := r.db.Query(`select tenant_id from disbursements union select tenant_id from repayments`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []id.Tenant
	for rows.Next() {
		var tenant id.Tenant
		if err := rows.Scan(&tenant); err != nil {
			return nil, err
		}
		out = append(out, tenant)
	}
	return out, rows.Err()
}

// attachProvider stamps the provider id and rail after a successful
// provider call.
func attachProvider(q queryable, table, idColumn string, tenantID id.Tenant, recordID, providerRef string, rail routing.Rail, now time.Time) error {
	res, err := q.Exec(`update `+table+` set provider_ref = ?, rail = ?, status = ?, availability_state = ?, initiated_at = ? where tenant_id = ? and `+idColumn+` = ?`,
		providerRef, string(rail), Pending, AvailPending, now, tenantID, recordID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return errcode.New(errcode.NotFound, "%s %s not found", table, recordID)
	}
	return nil
}

// markStatus applies a status-map result, guarded so terminal records
// never regress. Returns false when the guard rejected the write.
func markStatus(q queryable, table, idColumn string, tenantID id.Tenant, recordID string, status Status, availability AvailabilityState, failureReason string, now time.Time) (bool, error) {
	var query string
	args := []interface{}{status, availability}
	switch status {
	case Completed:
		query = `update ` + table + ` set status = ?, availability_state = ?, completed_at = ? where tenant_id = ? and ` + idColumn + ` = ? and status in (?, ?, ?)`
		args = append(args, now, tenantID, recordID, Scheduled, Initiated, Pending)
	case Failed, Returned, Cancelled:
		query = `update ` + table + ` set status = ?, availability_state = ?, failed_at = ?, failure_reason = ? where tenant_id = ? and ` + idColumn + ` = ? and status in (?, ?, ?)`
		args = append(args, now, nullableString(failureReason), tenantID, recordID, Scheduled, Initiated, Pending)
	default:
		query = `update ` + table + ` set status = ?, availability_state = ? where tenant_id = ? and ` + idColumn + ` = ? and status in (?, ?, ?)`
		args = append(args, tenantID, recordID, Scheduled, Initiated, Pending)
	}
	res, err := q.Exec(query, args...)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// setHold parks a completed disbursement in HELD until the release time.
func setHold(q queryable, tenantID id.Tenant, disbursementID id.Disbursement, releaseAt time.Time) error {
	_, err := q.Exec(`update disbursements set availability_state = ?, hold_release_at = ? where tenant_id = ? and disbursement_id = ?`, AvailHeld, releaseAt, tenantID, disbursementID)
	return err
}

// setRepaymentJournal records the settlement journal a repayment posted.
func setRepaymentJournal(q queryable, tenantID id.Tenant, repaymentID id.Repayment, journalID id.Journal) error {
	_, err := q.Exec(`update repayments set journal_id = ? where tenant_id = ? and repayment_id = ?`, journalID, tenantID, repaymentID)
	return err
}

// markReturned flips a COMPLETED repayment to RETURNED; used when a
// settled payment comes back.
func markReturned(q queryable, tenantID id.Tenant, repaymentID id.Repayment, reason string, now time.Time) (bool, error) {
	res, err := q.Exec(`update repayments set status = ?, availability_state = ?, failed_at = ?, failure_reason = ? where tenant_id = ? and repayment_id = ? and status = ?`,
		Returned, AvailFailed, now, nullableString(reason), tenantID, repaymentID, Completed)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *base.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Time
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func oneDisbursement(row *sql.Row) (*Disbursement, error) {
	disbursement, err := scanDisbursement(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return disbursement, nil
}

func manyDisbursements(rows *sql.Rows) ([]*Disbursement, error) {
	var out []*Disbursement
	for rows.Next() {
		disbursement, err := scanDisbursement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, disbursement)
	}
	return out, rows.Err()
}

func scanDisbursement(row rowScanner) (*Disbursement, error) {
	d := &Disbursement{}
	var tenantID string
	var lenderCustomerID, providerRef, rail, idempotencyKey, failureReason *string
	var initiatedAt, completedAt, failedAt, holdReleaseAt *time.Time
	var created time.Time
	err := row.Scan(&d.ID, &tenantID, &d.ContractID, &d.AmountCents, &d.ExpressFeeCents, &d.NetAmountCents, &d.Source, &lenderCustomerID, &d.Status, &d.Availability, &providerRef, &rail, &idempotencyKey, &failureReason, &initiatedAt, &completedAt, &failedAt, &holdReleaseAt, &created)
	if err != nil {
		return nil, err
	}
	d.TenantID = id.Tenant(tenantID)
	if lenderCustomerID != nil {
		d.LenderCustomerID = id.Customer(*lenderCustomerID)
	}
	if providerRef != nil {
		d.ProviderRef = id.ProviderRef(*providerRef)
	}
	if rail != nil {
		d.Rail = routing.Rail(*rail)
	}
	if idempotencyKey != nil {
		d.IdempotencyKey = *idempotencyKey
	}
	if failureReason != nil {
		d.FailureReason = *failureReason
	}
	d.InitiatedAt = baseTime(initiatedAt)
	d.CompletedAt = baseTime(completedAt)
	d.FailedAt = baseTime(failedAt)
	d.HoldReleaseAt = baseTime(holdReleaseAt)
	d.Created = base.NewTime(created)
	return d, nil
}

func oneRepayment(row *sql.Row) (*Repayment, error) {
	repayment, err := scanRepayment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return repayment, nil
}

func manyRepayments(rows *sql.Rows) ([]*Repayment, error) {
	var out []*Repayment
	for rows.Next() {
		repayment, err := scanRepayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, repayment)
	}
	return out, rows.Err()
}

func scanRepayment(row rowScanner) (*Repayment, error) {
	rp := &Repayment{}
	var tenantID string
	var providerRef, rail, idempotencyKey, failureReason, journalID *string
	var scheduledFor, initiatedAt, completedAt, failedAt *time.Time
	var created time.Time
	err := row.Scan(&rp.ID, &tenantID, &rp.ContractID, &rp.AmountCents, &rp.AppliedFeeCents, &rp.AppliedInterestCents, &rp.AppliedPrincipalCents, &rp.Status, &rp.Availability, &providerRef, &rail, &idempotencyKey, &failureReason, &journalID, &scheduledFor, &initiatedAt, &completedAt, &failedAt, &created)
	if err != nil {
		return nil, err
	}
	rp.TenantID = id.Tenant(tenantID)
	if providerRef != nil {
		rp.ProviderRef = id.ProviderRef(*providerRef)
	}
	if rail != nil {
		rp.Rail = routing.Rail(*rail)
	}
	if idempotencyKey != nil {
		rp.IdempotencyKey = *idempotencyKey
	}
	if failureReason != nil {
		rp.FailureReason = *failureReason
	}
	if journalID != nil {
		rp.JournalID = id.Journal(*journalID)
	}
	rp.ScheduledFor = baseTime(scheduledFor)
	rp.InitiatedAt = baseTime(initiatedAt)
	rp.CompletedAt = baseTime(completedAt)
	rp.FailedAt = baseTime(failedAt)
	rp.Created = base.NewTime(created)
	return rp, nil
}

func baseTime(t *time.Time) *base.Time {
	if t == nil {
		return nil
	}
	v := base.NewTime(*t)
	return &v
}
