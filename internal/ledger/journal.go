// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package ledger implements the double-entry ledger engine: balanced
// journal posting, running account balances, reversal-only mutability
// and trial balance reporting.
package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/internal/errcode"
	"github.com/raynmakr/bigfin/pkg/id"
)

type JournalType string

const (
	Disbursement    JournalType = "DISBURSEMENT"
	Repayment       JournalType = "REPAYMENT"
	FeeAssessment   JournalType = "FEE_ASSESSMENT"
	InterestAccrual JournalType = "INTEREST_ACCRUAL"
	Adjustment      JournalType = "ADJUSTMENT"
	Reversal        JournalType = "REVERSAL"
)

func (t JournalType) Validate() error {
	switch t {
	case Disbursement, Repayment, FeeAssessment, InterestAccrual, Adjustment, Reversal:
		return nil
	default:
		return fmt.Errorf("JournalType(%s) is invalid", t)
	}
}

func (t *JournalType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = JournalType(strings.ToUpper(s))
	return t.Validate()
}

// EntryInput is one requested line item. Exactly one of DebitCents or
// CreditCents must be positive.
type EntryInput struct {
	AccountCode string `json:"accountCode"`
	DebitCents  int64  `json:"debitCents"`
	CreditCents int64  `json:"creditCents"`
}

// JournalRequest is the input to posting a journal.
type JournalRequest struct {
	Type        JournalType  `json:"type"`
	Description string       `json:"description"`
	ContractID  id.Contract  `json:"contractId,omitempty"`
	CreatedBy   string       `json:"createdBy,omitempty"`
	Entries     []EntryInput `json:"entries"`

	// Reversal bookkeeping, set only by ReverseJournal.
	isReversal        bool
	reversesJournalID id.Journal
	reversalReason    string
}

// AccountCodes returns the distinct account codes touched by the request.
func (r JournalRequest) AccountCodes() []string {
	seen := make(map[string]bool)
	var out []string
	for i := range r.Entries {
		if code := r.Entries[i].AccountCode; !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}
	return out
}

// Validate checks structural invariants which hold before any storage
// lookups: one-sided entries, non-negative amounts, and exact
// debit/credit equality.
func (r JournalRequest) Validate() error {
	if err := r.Type.Validate(); err != nil {
		return errcode.New(errcode.InvalidRequest, "%v", err)
	}
	if len(r.Entries) == 0 {
		return errcode.New(errcode.InvalidRequest, "journal requires at least one entry")
	}

	var debits, credits int64
	for i := range r.Entries {
		e := r.Entries[i]
		if e.DebitCents < 0 || e.CreditCents < 0 {
			return errcode.New(errcode.InvalidRequest, "entry %d: negative amount", i)
		}
		if (e.DebitCents == 0) == (e.CreditCents == 0) {
			return errcode.New(errcode.InvalidRequest, "entry %d: exactly one of debit or credit must be set", i)
		}
		if e.AccountCode == "" {
			return errcode.New(errcode.InvalidRequest, "entry %d: missing account code", i)
		}
		debits += e.DebitCents
		credits += e.CreditCents
	}
	if debits != credits {
		return errcode.New(errcode.InvalidRequest, "journal unbalanced: debits=%d credits=%d", debits, credits)
	}
	return nil
}

// Entry is a persisted line item within a journal.
type Entry struct {
	EntryID           string     `json:"entryId"`
	JournalID         id.Journal `json:"journalId"`
	AccountCode       string     `json:"accountCode"`
	DebitCents        int64      `json:"debitCents"`
	CreditCents       int64      `json:"creditCents"`
	BalanceAfterCents int64      `json:"balanceAfterCents"`
	Created           base.Time  `json:"created"`
}

// Journal is an append-only unit of posting. After creation the only
// permitted mutation is setting ReversedByJournalID exactly once.
type Journal struct {
	ID                  id.Journal  `json:"id"`
	TenantID            id.Tenant   `json:"-"`
	ContractID          id.Contract `json:"contractId,omitempty"`
	Type                JournalType `json:"type"`
	Description         string      `json:"description"`
	IsReversal          bool        `json:"isReversal"`
	ReversesJournalID   id.Journal  `json:"reversesJournalId,omitempty"`
	ReversedByJournalID id.Journal  `json:"reversedByJournalId,omitempty"`
	ReversalReason      string      `json:"reversalReason,omitempty"`
	CreatedBy           string      `json:"createdBy,omitempty"`
	Created             base.Time   `json:"created"`

	Entries []*Entry `json:"entries"`
}

// AccountCodes returns the distinct account codes touched by the journal.
func (j *Journal) AccountCodes() []string {
	seen := make(map[string]bool)
	var out []string
	for i := range j.Entries {
		if code := j.Entries[i].AccountCode; !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}
	return out
}

// ContractBalances is the journal-derived view of a contract's
// outstanding receivable components.
type ContractBalances struct {
	PrincipalCents int64 `json:"principalCents"`
	InterestCents  int64 `json:"interestCents"`
	FeesCents      int64 `json:"feesCents"`
	TotalCents     int64 `json:"totalCents"`
}

// TrialBalance reports per-account debit/credit totals across a tenant.
type TrialBalance struct {
	Accounts     []TrialBalanceAccount `json:"accounts"`
	TotalDebits  int64                 `json:"totalDebits"`
	TotalCredits int64                 `json:"totalCredits"`
	IsBalanced   bool                  `json:"isBalanced"`
}

type TrialBalanceAccount struct {
	AccountCode string `json:"accountCode"`
	DebitCents  int64  `json:"debitCents"`
	CreditCents int64  `json:"creditCents"`
	NetCents    int64  `json:"netCents"`
}
