// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package reconciliation

import (
	"database/sql"
	"time"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/internal/errcode"
	"github.com/raynmakr/bigfin/pkg/id"

	"github.com/go-kit/kit/log"
	"github.com/google/uuid"
)

type Repository interface {
	CreateRun(run *Run) error
	FinishRun(tenantID id.Tenant, runID string, status RunStatus, summary, errorMessage string) error
	GetRun(tenantID id.Tenant, runID string) (*Run, error)
	GetRuns(tenantID id.Tenant, limit, offset int64) ([]*Run, error)

	CreateException(exception *Exception) error
	GetException(tenantID id.Tenant, exceptionID string) (*Exception, error)
	GetRunExceptions(tenantID id.Tenant, runID string) ([]*Exception, error)

	// GetOpenExceptions returns exceptions not yet resolved or ignored.
	GetOpenExceptions(tenantID id.Tenant) ([]*Exception, error)

	UpdateExceptionStatus(tenantID id.Tenant, exceptionID string, status ExceptionStatus) error
	ResolveException(tenantID id.Tenant, exceptionID string, resolution ResolutionType) error
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

func (r *SQLRepo) CreateRun(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = Running
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = base.Now()
	}

	query := `insert into reconciliation_runs (run_id, tenant_id, status, period_start, period_end, summary, error_message, started_at, completed_at) values (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(run.ID, run.TenantID, run.Status, run.PeriodStart.Time, run.PeriodEnd.Time, nullableString(run.Summary), nullableString(run.ErrorMessage), run.StartedAt.Time, nil)
	return err
}

func (r *SQLRepo) FinishRun(tenantID id.Tenant, runID string, status RunStatus, summary, errorMessage string) error {
	res, err := r.db.Exec(`update reconciliation_runs set status = ?, summary = ?, error_message = ?, completed_at = ? where tenant_id = ? and run_id = ? and status = ?`,
		status, nullableString(summary), nullableString(errorMessage), time.Now(), tenantID, runID, Running)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errcode.New(errcode.NotFound, "reconciliation: run %s not running", runID)
	}
	return nil
}

const runColumns = `run_id, tenant_id, status, period_start, period_end, summary, error_message, started_at, completed_at`

func (r *SQLRepo) GetRun(tenantID id.Tenant, runID string) (*Run, error) {
	row := r.db.QueryRow(`select `+runColumns+` from reconciliation_runs where tenant_id = ? and run_id = ? limit 1`, tenantID, runID)
	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return run, nil
}

func (r *SQLRepo) GetRuns(tenantID id.Tenant, limit, offset int64) ([]*Run, error) {
	rows, err := r.db.Query(`select `+runColumns+` from reconciliation_runs where tenant_id = ? order by started_at desc limit ? offset ?`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *SQLRepo) CreateException(exception *Exception) error {
	if exception.ID == "" {
		exception.ID = base.ID()
	}
	if exception.Status == "" {
		exception.Status = Open
	}
	if exception.DetectedAt.IsZero() {
		exception.DetectedAt = base.Now()
	}

	query := `insert into reconciliation_exceptions (exception_id, tenant_id, run_id, exception_type, severity, status, local_record_type, local_record_id, provider_record_id, local_value, provider_value, discrepancy_amount_cents, description, detected_at, resolved_at, resolution_type) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	var resolvedAt interface{}
	if exception.ResolvedAt != nil {
		resolvedAt = exception.ResolvedAt.Time
	}
	_, err = stmt.Exec(
		exception.ID, exception.TenantID, exception.RunID,
		exception.Type, exception.Severity, exception.Status,
		nullableString(exception.LocalRecordType), nullableString(exception.LocalRecordID), nullableString(exception.ProviderRecordID),
		nullableString(exception.LocalValue), nullableString(exception.ProviderValue),
		exception.DiscrepancyCents, exception.Description,
		exception.DetectedAt.Time, resolvedAt, nullableString(string(exception.ResolutionType)))
	return err
}

const exceptionColumns = `exception_id, tenant_id, run_id, exception_type, severity, status, local_record_type, local_record_id, provider_record_id, local_value, provider_value, discrepancy_amount_cents, description, detected_at, resolved_at, resolution_type`

func (r *SQLRepo) GetException(tenantID id.Tenant, exceptionID string) (*Exception, error) {
	row := r.db.QueryRow(`select `+exceptionColumns+` from reconciliation_exceptions where tenant_id = ? and exception_id = ? limit 1`, tenantID, exceptionID)
	exception, err := scanException(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return exception, nil
}

func (r *SQLRepo) GetRunExceptions(tenantID id.Tenant, runID string) ([]*Exception, error) {
	rows, err := r.db.Query(`select `+exceptionColumns+` from reconciliation_exceptions where tenant_id = ? and run_id = ? order by detected_at asc`, tenantID, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return manyExceptions(rows)
}

func (r *SQLRepo) GetOpenExceptions(tenantID id.Tenant) ([]*Exception, error) {
	rows, err := r.db.Query(`select `+exceptionColumns+` from reconciliation_exceptions where tenant_id = ? and status in (?, ?) order by detected_at asc`, tenantID, Open, Investigating)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return manyExceptions(rows)
}

// UpdateExceptionStatus moves an open or investigating exception into
// another operator state. Resolved and ignored are terminal.
func (r *SQLRepo) UpdateExceptionStatus(tenantID id.Tenant, exceptionID string, status ExceptionStatus) error {
	res, err := r.db.Exec(`update reconciliation_exceptions set status = ? where tenant_id = ? and exception_id = ? and status in (?, ?)`,
		status, tenantID, exceptionID, Open, Investigating)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errcode.New(errcode.NotFound, "reconciliation: exception %s not found or closed", exceptionID)
	}
	return nil
}

func (r *SQLRepo) ResolveException(tenantID id.Tenant, exceptionID string, resolution ResolutionType) error {
	res, err := r.db.Exec(`update reconciliation_exceptions set status = ?, resolution_type = ?, resolved_at = ? where tenant_id = ? and exception_id = ? and status in (?, ?)`,
		Resolved, resolution, time.Now(), tenantID, exceptionID, Open, Investigating)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errcode.New(errcode.NotFound, "reconciliation: exception %s not found or closed", exceptionID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var (
		periodStart, periodEnd, startedAt time.Time
		completedAt                       *time.Time
		summary, errorMessage             *string
	)
	if err := row.Scan(&run.ID, &run.TenantID, &run.Status, &periodStart, &periodEnd, &summary, &errorMessage, &startedAt, &completedAt); err != nil {
		return nil, err
	}
	run.PeriodStart = base.NewTime(periodStart)
	run.PeriodEnd = base.NewTime(periodEnd)
	run.StartedAt = base.NewTime(startedAt)
	if completedAt != nil {
		v := base.NewTime(*completedAt)
		run.CompletedAt = &v
	}
	if summary != nil {
		run.Summary = *summary
	}
	if errorMessage != nil {
		run.ErrorMessage = *errorMessage
	}
	return run, nil
}

func scanException(row rowScanner) (*Exception, error) {
	exception := &Exception{}
	var (
		localRecordType, localRecordID, providerRecordID *string
		localValue, providerValue, resolutionType        *string
		detectedAt                                       time.Time
		resolvedAt                                       *time.Time
	)
	err := row.Scan(
		&exception.ID, &exception.TenantID, &exception.RunID,
		&exception.Type, &exception.Severity, &exception.Status,
		&localRecordType, &localRecordID, &providerRecordID,
		&localValue, &providerValue,
		&exception.DiscrepancyCents, &exception.Description,
		&detectedAt, &resolvedAt, &resolutionType)
	if err != nil {
		return nil, err
	}
	exception.DetectedAt = base.NewTime(detectedAt)
	if resolvedAt != nil {
		v := base.NewTime(*resolvedAt)
		exception.ResolvedAt = &v
	}
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&exception.LocalRecordType, localRecordType)
	setString(&exception.LocalRecordID, localRecordID)
	setString(&exception.ProviderRecordID, providerRecordID)
	setString(&exception.LocalValue, localValue)
	setString(&exception.ProviderValue, providerValue)
	if resolutionType != nil {
		exception.ResolutionType = ResolutionType(*resolutionType)
	}
	return exception, nil
}

func manyExceptions(rows *sql.Rows) ([]*Exception, error) {
	var out []*Exception
	for rows.Next() {
		exception, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exception)
	}
	return out, rows.Err()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
