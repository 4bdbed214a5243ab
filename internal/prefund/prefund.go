// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package prefund tracks per-lender custodial balances as an append-only
// transaction trail. The most recent COMPLETED row's balances are
// authoritative; reconciliation refolds the trail to verify them.
package prefund

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/pkg/id"
)

type Type string

const (
	Deposit             Type = "DEPOSIT"
	Withdrawal          Type = "WITHDRAWAL"
	Fee                 Type = "FEE"
	DisbursementHold    Type = "DISBURSEMENT_HOLD"
	DisbursementRelease Type = "DISBURSEMENT_RELEASE"
)

func (t Type) Validate() error {
	switch t {
	case Deposit, Withdrawal, Fee, DisbursementHold, DisbursementRelease:
		return nil
	default:
		return fmt.Errorf("Type(%s) is invalid", t)
	}
}

func (t *Type) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = Type(strings.ToUpper(s))
	return t.Validate()
}

type Status string

const (
	Pending   Status = "PENDING"
	Completed Status = "COMPLETED"
	Failed    Status = "FAILED"
)

// Transaction is one row of the custodial trail. BalanceAfterCents is
// total custody; AvailableAfterCents subtracts active disbursement
// holds.
type Transaction struct {
	ID                  string      `json:"id"`
	TenantID            id.Tenant   `json:"-"`
	CustomerID          id.Customer `json:"customerId"`
	Type                Type        `json:"type"`
	AmountCents         int64       `json:"amountCents"`
	Status              Status      `json:"status"`
	BalanceAfterCents   int64       `json:"balanceAfterCents"`
	AvailableAfterCents int64       `json:"availableAfterCents"`
	Created             base.Time   `json:"created"`
}

// AvailableSign gives each transaction type's contribution to the
// available balance when folding the completed trail.
func AvailableSign(t Type) int64 {
	switch t {
	case Deposit, DisbursementRelease:
		return 1
	case Withdrawal, Fee, DisbursementHold:
		return -1
	}
	return 0
}

// balanceSign gives the contribution to total custody. Holds and
// releases only earmark funds, so custody is unchanged.
func balanceSign(t Type) int64 {
	switch t {
	case Deposit:
		return 1
	case Withdrawal, Fee:
		return -1
	}
	return 0
}

// FoldAvailable recomputes the available balance from the completed
// rows of a trail.
func FoldAvailable(transactions []*Transaction) int64 {
	var total int64
	for i := range transactions {
		if transactions[i].Status != Completed {
			continue
		}
		total += AvailableSign(transactions[i].Type) * transactions[i].AmountCents
	}
	return total
}
