// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package instruments

import (
	"database/sql"
	"time"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/internal/errcode"
	"github.com/raynmakr/bigfin/pkg/id"

	"github.com/go-kit/kit/log"
)

type Repository interface {
	GetInstrument(tenantID id.Tenant, instrumentID id.Instrument) (*FundingInstrument, error)
	GetCustomerInstruments(tenantID id.Tenant, customerID id.Customer) ([]*FundingInstrument, error)
	CreateInstrument(instrument *FundingInstrument) error
	UpdateStatus(tenantID id.Tenant, instrumentID id.Instrument, status Status) error
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

func (r *SQLRepo) GetInstrument(tenantID id.Tenant, instrumentID id.Instrument) (*FundingInstrument, error) {
	query := `select instrument_id, customer_id, instrument_type, status, provider_ref, supported_rails, encrypted_account_number, masked_account_number, created_at from funding_instruments where tenant_id = ? and instrument_id = ? limit 1`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	row := stmt.QueryRow(tenantID, instrumentID)
	instrument, err := scanInstrument(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	instrument.TenantID = tenantID
	return instrument, nil
}

func (r *SQLRepo) GetCustomerInstruments(tenantID id.Tenant, customerID id.Customer) ([]*FundingInstrument, error) {
	query := `select instrument_id, customer_id, instrument_type, status, provider_ref, supported_rails, encrypted_account_number, masked_account_number, created_at from funding_instruments where tenant_id = ? and customer_id = ? order by created_at asc`
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

	var out []*FundingInstrument
	for rows.Next() {
		instrument, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		instrument.TenantID = tenantID
		out = append(out, instrument)
	}
	return out, rows.Err()
}

func (r *SQLRepo) CreateInstrument(instrument *FundingInstrument) error {
	if err := instrument.Validate(); err != nil {
		return errcode.Wrap(errcode.InvalidRequest, err, "instruments: validate")
	}
	if instrument.ID == "" {
		instrument.ID = id.Instrument(base.ID())
	}
	if instrument.Created.IsZero() {
		instrument.Created = base.Now()
	}

	query := `insert into funding_instruments (instrument_id, tenant_id, customer_id, instrument_type, status, provider_ref, supported_rails, encrypted_account_number, masked_account_number, created_at) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(instrument.ID, instrument.TenantID, instrument.CustomerID, instrument.Type, instrument.Status, string(instrument.ProviderRef), encodeRails(instrument.SupportedRails), instrument.EncryptedAccountNumber, instrument.MaskedAccountNumber, instrument.Created.Time)
	return err
}

func (r *SQLRepo) UpdateStatus(tenantID id.Tenant, instrumentID id.Instrument, status Status) error {
	if err := status.Validate(); err != nil {
		return errcode.Wrap(errcode.InvalidRequest, err, "instruments: status")
	}
	res, err := r.db.Exec(`update funding_instruments set status = ? where tenant_id = ? and instrument_id = ?`, status, tenantID, instrumentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return errcode.New(errcode.NotFound, "instrument %s not found", instrumentID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInstrument(row rowScanner) (*FundingInstrument, error) {
	instrument := &FundingInstrument{}
	var providerRef, rails string
	var created time.Time
	if err := row.Scan(&instrument.ID, &instrument.CustomerID, &instrument.Type, &instrument.Status, &providerRef, &rails, &instrument.EncryptedAccountNumber, &instrument.MaskedAccountNumber, &created); err != nil {
		return nil, err
	}
	instrument.ProviderRef = id.ProviderRef(providerRef)
	instrument.SupportedRails = decodeRails(rails)
	instrument.Created = base.NewTime(created)
	return instrument, nil
}
