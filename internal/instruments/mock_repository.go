// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package instruments

import (
	"github.com/raynmakr/bigfin/pkg/id"
)

type MockRepository struct {
	Instruments []*FundingInstrument
	Err         error
}

func (r *MockRepository) GetInstrument(tenantID id.Tenant, instrumentID id.Instrument) (*FundingInstrument, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	for i := range r.Instruments {
		if r.Instruments[i].ID == instrumentID {
			return r.Instruments[i], nil
		}
	}
	return nil, nil
}

func (r *MockRepository) GetCustomerInstruments(tenantID id.Tenant, customerID id.Customer) ([]*FundingInstrument, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	var out []*FundingInstrument
	for i := range r.Instruments {
		if r.Instruments[i].CustomerID == customerID {
			out = append(out, r.Instruments[i])
		}
	}
	return out, nil
}

func (r *MockRepository) CreateInstrument(instrument *FundingInstrument) error {
	if r.Err != nil {
		return r.Err
	}
	r.Instruments = append(r.Instruments, instrument)
	return nil
}

func (r *MockRepository) UpdateStatus(tenantID id.Tenant, instrumentID id.Instrument, status Status) error {
	if r.Err != nil {
		return r.Err
	}
	for i := range r.Instruments {
		if r.Instruments[i].ID == instrumentID {
			r.Instruments[i].Status = status
		}
	}
	return nil
}
