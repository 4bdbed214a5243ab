// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package transfers orchestrates money movement: it routes transfers
// through the payment provider with rail fallback, ingests provider
// status updates into disbursement and repayment records, and drives
// the availability state machine and settlement journals.
package transfers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/internal/routing"
	"github.com/raynmakr/bigfin/pkg/id"
)

type Status string

const (
	// Scheduled repayments wait for their scheduled_for date before the
	// activator initiates them.
	Scheduled Status = "SCHEDULED"

	Initiated Status = "INITIATED"
	Pending   Status = "PENDING"
	Completed Status = "COMPLETED"
	Failed    Status = "FAILED"
	Returned  Status = "RETURNED"
	Cancelled Status = "CANCELLED"
)

func (s Status) Validate() error {
	switch s {
	case Scheduled, Initiated, Pending, Completed, Failed, Returned, Cancelled:
		return nil
	default:
		return fmt.Errorf("Status(%s) is invalid", s)
	}
}

// Terminal reports whether a record can leave this status. COMPLETED is
// terminal except through an explicit reversal.
func (s Status) Terminal() bool {
	switch s {
	case Completed, Failed, Returned, Cancelled:
		return true
	}
	return false
}

type AvailabilityState string

const (
	AvailInitiated AvailabilityState = "INITIATED"
	AvailPending   AvailabilityState = "PENDING"
	AvailReceived  AvailabilityState = "RECEIVED"
	AvailHeld      AvailabilityState = "HELD"
	AvailAvailable AvailabilityState = "AVAILABLE"
	AvailFailed    AvailabilityState = "FAILED"
)

// Direction distinguishes money leaving the platform (disbursements)
// from money coming in (repayments).
type Direction string

const (
	Disbursing Direction = "disbursement"
	Repaying   Direction = "repayment"
)

// Disbursement shadows a provider transfer paying out loan principal.
// LenderCustomerID is set on prefund-funded payouts; it points at the
// custody trail carrying the earmark for the in-flight amount.
type Disbursement struct {
	ID               id.Disbursement   `json:"id"`
	TenantID         id.Tenant         `json:"-"`
	ContractID       id.Contract       `json:"contractId"`
	AmountCents      int64             `json:"amountCents"`
	ExpressFeeCents  int64             `json:"expressFeeCents"`
	NetAmountCents   int64             `json:"netAmountCents"`
	Source           Source            `json:"source"`
	LenderCustomerID id.Customer       `json:"lenderCustomerId,omitempty"`
	Status           Status            `json:"status"`
	Availability     AvailabilityState `json:"availabilityState"`
	ProviderRef      id.ProviderRef    `json:"providerRef,omitempty"`
	Rail             routing.Rail      `json:"rail,omitempty"`
	IdempotencyKey   string            `json:"-"`
	FailureReason    string            `json:"failureReason,omitempty"`
	InitiatedAt      *base.Time        `json:"initiatedAt,omitempty"`
	CompletedAt      *base.Time        `json:"completedAt,omitempty"`
	FailedAt         *base.Time        `json:"failedAt,omitempty"`
	HoldReleaseAt    *base.Time        `json:"holdReleaseAt,omitempty"`
	Created          base.Time         `json:"created"`
}

// Source says which cash account funds a disbursement.
type Source string

const (
	FromPrefund Source = "PREFUND"
	FromDirect  Source = "DIRECT"
)

func (s Source) Validate() error {
	switch s {
	case FromPrefund, FromDirect:
		return nil
	default:
		return fmt.Errorf("Source(%s) is invalid", s)
	}
}

func (s *Source) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	*s = Source(strings.ToUpper(str))
	return s.Validate()
}

// Repayment shadows a provider transfer collecting an installment. The
// applied_* split is fixed at initiation so settlement posts exactly
// what was agreed even if balances drift in between.
type Repayment struct {
	ID                    id.Repayment      `json:"id"`
	TenantID              id.Tenant         `json:"-"`
	ContractID            id.Contract       `json:"contractId"`
	AmountCents           int64             `json:"amountCents"`
	AppliedFeeCents       int64             `json:"appliedFeeCents"`
	AppliedInterestCents  int64             `json:"appliedInterestCents"`
	AppliedPrincipalCents int64             `json:"appliedPrincipalCents"`
	Status                Status            `json:"status"`
	Availability          AvailabilityState `json:"availabilityState"`
	ProviderRef           id.ProviderRef    `json:"providerRef,omitempty"`
	Rail                  routing.Rail      `json:"rail,omitempty"`
	IdempotencyKey        string            `json:"-"`
	FailureReason         string            `json:"failureReason,omitempty"`
	JournalID             id.Journal        `json:"journalId,omitempty"`
	ScheduledFor          *base.Time        `json:"scheduledFor,omitempty"`
	InitiatedAt           *base.Time        `json:"initiatedAt,omitempty"`
	CompletedAt           *base.Time        `json:"completedAt,omitempty"`
	FailedAt              *base.Time        `json:"failedAt,omitempty"`
	Created               base.Time         `json:"created"`
}

// TransferResult is what initiation returns to callers.
type TransferResult struct {
	ProviderRef      id.ProviderRef `json:"providerRef"`
	Rail             routing.Rail   `json:"rail"`
	Status           string         `json:"status"`
	FeeCents         int64          `json:"feeCents"`
	EstimatedArrival time.Time      `json:"estimatedArrival"`
}

// statusMapping translates provider vocabulary into the domain status
// and availability for each direction.
func statusMapping(providerStatus string, direction Direction) (Status, AvailabilityState, bool) {
	switch strings.ToLower(providerStatus) {
	case "created", "pending", "processing":
		return Pending, AvailPending, true
	case "completed":
		return Completed, AvailAvailable, true
	case "failed":
		return Failed, AvailFailed, true
	case "returned", "reversed":
		if direction == Repaying {
			return Returned, AvailFailed, true
		}
		return Failed, AvailFailed, true
	case "canceled", "cancelled":
		if direction == Repaying {
			return Cancelled, AvailFailed, true
		}
		return Failed, AvailFailed, true
	}
	return "", "", false
}

// railPaymentMethods maps a rail to the provider payment-method types
// used for each side of the transfer. An empty source list means the
// provider sources the transfer itself (credit push rails).
var railPaymentMethods = map[routing.Rail]struct {
	source      []string
	destination []string
}{
	routing.RTP:        {source: nil, destination: []string{"rtp-credit"}},
	routing.FedNow:     {source: nil, destination: []string{"fednow-credit"}},
	routing.PushToCard: {source: nil, destination: []string{"push-to-card"}},
	routing.SameDayACH: {source: []string{"ach-debit-fund", "ach-debit-collect"}, destination: []string{"ach-credit-same-day"}},
	routing.ACH:        {source: []string{"ach-debit-fund", "ach-debit-collect"}, destination: []string{"ach-credit-standard"}},
}
