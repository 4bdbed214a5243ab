// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package contracts holds originated loan contracts, their amortization
// schedules, and the repayment application waterfall.
package contracts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/internal/errcode"
	"github.com/raynmakr/bigfin/pkg/id"
)

type Status string

const (
	PendingDisbursement Status = "PENDING_DISBURSEMENT"
	Active              Status = "ACTIVE"
	PaidOff             Status = "PAID_OFF"
	Defaulted           Status = "DEFAULTED"
	Cancelled           Status = "CANCELLED"
)

func (s Status) Validate() error {
	switch s {
	case PendingDisbursement, Active, PaidOff, Defaulted, Cancelled:
		return nil
	default:
		return fmt.Errorf("Status(%s) is invalid", s)
	}
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	switch s {
	case PaidOff, Defaulted, Cancelled:
		return true
	}
	return false
}

type PaymentFrequency string

const (
	Weekly   PaymentFrequency = "WEEKLY"
	Biweekly PaymentFrequency = "BIWEEKLY"
	Monthly  PaymentFrequency = "MONTHLY"
)

func (f PaymentFrequency) Validate() error {
	switch f {
	case Weekly, Biweekly, Monthly:
		return nil
	default:
		return fmt.Errorf("PaymentFrequency(%s) is invalid", f)
	}
}

func (f *PaymentFrequency) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*f = PaymentFrequency(strings.ToUpper(s))
	return f.Validate()
}

// PeriodsPerYear gives the payment cadence used by amortization.
func (f PaymentFrequency) PeriodsPerYear() int {
	switch f {
	case Weekly:
		return 52
	case Biweekly:
		return 26
	default:
		return 12
	}
}

// Contract is an originated loan. The three balance columns are the
// denormalized receivable components the waterfall consumes; the ledger
// remains the audited source.
type Contract struct {
	ID               id.Contract      `json:"id"`
	TenantID         id.Tenant        `json:"-"`
	CustomerID       id.Customer      `json:"customerId"`
	Status           Status           `json:"status"`
	PrincipalCents   int64            `json:"principalCents"`
	APRBps           int64            `json:"aprBps"`
	TermMonths       int              `json:"termMonths"`
	PaymentFrequency PaymentFrequency `json:"paymentFrequency"`
	FirstPaymentDate base.Time        `json:"firstPaymentDate"`

	PrincipalBalanceCents int64 `json:"principalBalanceCents"`
	InterestBalanceCents  int64 `json:"interestBalanceCents"`
	FeesBalanceCents      int64 `json:"feesBalanceCents"`

	DisbursedAt *base.Time `json:"disbursedAt,omitempty"`
	PaidOffAt   *base.Time `json:"paidOffAt,omitempty"`
	Created     base.Time  `json:"created"`
}

func (c *Contract) Validate() error {
	if c.CustomerID == "" {
		return errcode.New(errcode.InvalidRequest, "missing customerId")
	}
	if c.PrincipalCents <= 0 {
		return errcode.New(errcode.InvalidRequest, "principal must be positive")
	}
	if c.APRBps < 0 {
		return errcode.New(errcode.InvalidRequest, "apr must be non-negative")
	}
	if c.TermMonths <= 0 {
		return errcode.New(errcode.InvalidRequest, "term must be positive")
	}
	if err := c.PaymentFrequency.Validate(); err != nil {
		return errcode.New(errcode.InvalidRequest, "%v", err)
	}
	return nil
}

// OutstandingCents is the sum of all receivable components.
func (c *Contract) OutstandingCents() int64 {
	return c.PrincipalBalanceCents + c.InterestBalanceCents + c.FeesBalanceCents
}

type ScheduleItemStatus string

const (
	ItemScheduled ScheduleItemStatus = "SCHEDULED"
	ItemPaid      ScheduleItemStatus = "PAID"
	ItemMissed    ScheduleItemStatus = "MISSED"
)

// ScheduleItem is one planned installment.
type ScheduleItem struct {
	ID             string             `json:"id"`
	ContractID     id.Contract        `json:"contractId"`
	Sequence       int                `json:"sequence"`
	DueDate        base.Time          `json:"dueDate"`
	PaymentCents   int64              `json:"paymentCents"`
	PrincipalCents int64              `json:"principalCents"`
	InterestCents  int64              `json:"interestCents"`
	Status         ScheduleItemStatus `json:"status"`
}

// Applied is the waterfall split of a cash receipt.
type Applied struct {
	FeeCents       int64 `json:"feeCents"`
	InterestCents  int64 `json:"interestCents"`
	PrincipalCents int64 `json:"principalCents"`
}

func (a Applied) TotalCents() int64 {
	return a.FeeCents + a.InterestCents + a.PrincipalCents
}

// ApplyWaterfall splits amountCents against the contract's current
// balances strictly in fees, interest, principal order. Amounts beyond
// the scheduled installment flow into principal as a prepayment; paying
// more than the full outstanding balance is rejected.
func ApplyWaterfall(contract *Contract, amountCents int64) (Applied, error) {
	if amountCents <= 0 {
		return Applied{}, errcode.New(errcode.InvalidRequest, "amount must be positive")
	}

	remaining := amountCents
	applied := Applied{}

	applied.FeeCents = min64(remaining, contract.FeesBalanceCents)
	remaining -= applied.FeeCents

	applied.InterestCents = min64(remaining, contract.InterestBalanceCents)
	remaining -= applied.InterestCents

	applied.PrincipalCents = min64(remaining, contract.PrincipalBalanceCents)
	remaining -= applied.PrincipalCents

	if remaining > 0 {
		return Applied{}, errcode.New(errcode.InvalidRequest, "amount %d exceeds outstanding balance %d", amountCents, contract.OutstandingCents())
	}
	return applied, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
