// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package ledger

import (
	"fmt"
	"strings"

	"github.com/raynmakr/bigfin/internal/accounts"
	"github.com/raynmakr/bigfin/pkg/id"
)

// DisbursementSource says which cash account funds a disbursement.
type DisbursementSource string

const (
	FromPrefund DisbursementSource = "PREFUND"
	FromDirect  DisbursementSource = "DIRECT"
)

// The helpers below build the journal requests for every posting the
// core performs. They all pass through CreateJournal, so the balance
// invariants hold identically for templated and ad-hoc journals.

// DisbursementJournal debits loan principal and credits the funding
// source; a positive express fee adds a fee revenue leg.
func DisbursementJournal(contractID id.Contract, source DisbursementSource, principalCents, expressFeeCents int64, actor string) JournalRequest {
	fundingAccount := accounts.CashOperating
	if source == FromPrefund {
		fundingAccount = accounts.PrefundBalances
	}

	req := JournalRequest{
		Type:        Disbursement,
		Description: fmt.Sprintf("Disbursement for contract %s", contractID),
		ContractID:  contractID,
		CreatedBy:   actor,
		Entries: []EntryInput{
			{AccountCode: accounts.LoansPrincipal, DebitCents: principalCents},
			{AccountCode: fundingAccount, CreditCents: principalCents},
		},
	}
	if expressFeeCents > 0 {
		req.Entries = append(req.Entries,
			EntryInput{AccountCode: accounts.CashOperating, DebitCents: expressFeeCents},
			EntryInput{AccountCode: accounts.RevenueFeesExpress, CreditCents: expressFeeCents},
		)
	}
	return req
}

// RepaymentJournal debits operating cash for the full receipt and
// credits each receivable component of the waterfall split. Zero
// components omit their entry.
func RepaymentJournal(contractID id.Contract, feeCents, interestCents, principalCents int64, actor string) JournalRequest {
	total := feeCents + interestCents + principalCents
	req := JournalRequest{
		Type:        Repayment,
		Description: fmt.Sprintf("Repayment for contract %s", contractID),
		ContractID:  contractID,
		CreatedBy:   actor,
		Entries: []EntryInput{
			{AccountCode: accounts.CashOperating, DebitCents: total},
		},
	}
	if feeCents > 0 {
		req.Entries = append(req.Entries, EntryInput{AccountCode: accounts.LoansFees, CreditCents: feeCents})
	}
	if interestCents > 0 {
		req.Entries = append(req.Entries, EntryInput{AccountCode: accounts.LoansInterest, CreditCents: interestCents})
	}
	if principalCents > 0 {
		req.Entries = append(req.Entries, EntryInput{AccountCode: accounts.LoansPrincipal, CreditCents: principalCents})
	}
	return req
}

// FeeKind selects the revenue account a fee assessment credits.
type FeeKind string

const (
	LateFee    FeeKind = "late"
	NSFFee     FeeKind = "nsf"
	ExpressFee FeeKind = "express"
)

func (k FeeKind) revenueAccount() string {
	switch k {
	case NSFFee:
		return accounts.RevenueFeesNSF
	case ExpressFee:
		return accounts.RevenueFeesExpress
	default:
		return accounts.RevenueFeesLate
	}
}

func (k FeeKind) Validate() error {
	switch k {
	case LateFee, NSFFee, ExpressFee:
		return nil
	default:
		return fmt.Errorf("FeeKind(%s) is invalid", k)
	}
}

// FeeAssessmentJournal adds a fee to a contract's receivable.
func FeeAssessmentJournal(contractID id.Contract, kind FeeKind, amountCents int64, actor string) JournalRequest {
	return JournalRequest{
		Type:        FeeAssessment,
		Description: fmt.Sprintf("%s fee assessed on contract %s", strings.ToUpper(string(kind)), contractID),
		ContractID:  contractID,
		CreatedBy:   actor,
		Entries: []EntryInput{
			{AccountCode: accounts.LoansFees, DebitCents: amountCents},
			{AccountCode: kind.revenueAccount(), CreditCents: amountCents},
		},
	}
}

// InterestAccrualJournal recognizes accrued interest on a contract.
func InterestAccrualJournal(contractID id.Contract, amountCents int64, actor string) JournalRequest {
	return JournalRequest{
		Type:        InterestAccrual,
		Description: fmt.Sprintf("Interest accrual on contract %s", contractID),
		ContractID:  contractID,
		CreatedBy:   actor,
		Entries: []EntryInput{
			{AccountCode: accounts.LoansInterest, DebitCents: amountCents},
			{AccountCode: accounts.RevenueInterest, CreditCents: amountCents},
		},
	}
}

// PrefundDepositJournal records a lender deposit into their custodial
// balance: cash in, liability up. These journals are contract-free.
func PrefundDepositJournal(customerID id.Customer, amountCents int64, actor string) JournalRequest {
	return JournalRequest{
		Type:        Adjustment,
		Description: fmt.Sprintf("Prefund deposit for customer %s", customerID),
		CreatedBy:   actor,
		Entries: []EntryInput{
			{AccountCode: accounts.CashPrefund, DebitCents: amountCents},
			{AccountCode: accounts.PrefundBalances, CreditCents: amountCents},
		},
	}
}

// PrefundWithdrawalJournal reverses a deposit's legs.
func PrefundWithdrawalJournal(customerID id.Customer, amountCents int64, actor string) JournalRequest {
	return JournalRequest{
		Type:        Adjustment,
		Description: fmt.Sprintf("Prefund withdrawal for customer %s", customerID),
		CreatedBy:   actor,
		Entries: []EntryInput{
			{AccountCode: accounts.PrefundBalances, DebitCents: amountCents},
			{AccountCode: accounts.CashPrefund, CreditCents: amountCents},
		},
	}
}

// WriteOffJournal expenses a defaulted contract's outstanding
// receivable components.
func WriteOffJournal(contractID id.Contract, principalCents, interestCents, feeCents int64, actor string) JournalRequest {
	total := principalCents + interestCents + feeCents
	req := JournalRequest{
		Type:        Adjustment,
		Description: fmt.Sprintf("Write-off of contract %s", contractID),
		ContractID:  contractID,
		CreatedBy:   actor,
		Entries: []EntryInput{
			{AccountCode: accounts.ExpensesBadDebt, DebitCents: total},
		},
	}
	if principalCents > 0 {
		req.Entries = append(req.Entries, EntryInput{AccountCode: accounts.LoansPrincipal, CreditCents: principalCents})
	}
	if interestCents > 0 {
		req.Entries = append(req.Entries, EntryInput{AccountCode: accounts.LoansInterest, CreditCents: interestCents})
	}
	if feeCents > 0 {
		req.Entries = append(req.Entries, EntryInput{AccountCode: accounts.LoansFees, CreditCents: feeCents})
	}
	return req
}
