// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package accounts holds the chart of accounts: an immutable registry of
// ledger accounts with a colon separated code hierarchy and a normal
// balance side per account type.
package accounts

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Well known account codes posted by the transaction templates.
const (
	CashOperating      = "Cash:Operating"
	CashPrefund        = "Cash:Prefund"
	LoansPrincipal     = "Loans:Principal"
	LoansInterest      = "Loans:Interest"
	LoansFees          = "Loans:Fees"
	PrefundBalances    = "Liabilities:Prefund_Balances"
	RevenueInterest    = "Revenue:Interest_Income"
	RevenueFeesExpress = "Revenue:Fees:Express"
	RevenueFeesLate    = "Revenue:Fees:Late"
	RevenueFeesNSF     = "Revenue:Fees:NSF"
	ExpensesBadDebt    = "Expenses:Bad_Debt"
)

type AccountType string

const (
	Asset     AccountType = "ASSET"
	Liability AccountType = "LIABILITY"
	Equity    AccountType = "EQUITY"
	Revenue   AccountType = "REVENUE"
	Expense   AccountType = "EXPENSE"
)

func (t AccountType) Validate() error {
	switch t {
	case Asset, Liability, Equity, Revenue, Expense:
		return nil
	default:
		return fmt.Errorf("AccountType(%s) is invalid", t)
	}
}

func (t *AccountType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = AccountType(strings.ToUpper(s))
	return t.Validate()
}

// NormalSide is the side which increases an account's balance.
type NormalSide string

const (
	Debit  NormalSide = "debit"
	Credit NormalSide = "credit"
)

// NormalSide returns debit for assets and expenses, credit otherwise.
func (t AccountType) NormalSide() NormalSide {
	switch t {
	case Asset, Expense:
		return Debit
	default:
		return Credit
	}
}

// Account is an immutable registry record. Codes are globally unique and
// use a colon separated hierarchy (e.g. Revenue:Fees:Express).
type Account struct {
	Code       string      `json:"code"`
	Name       string      `json:"name"`
	Type       AccountType `json:"type"`
	ParentCode string      `json:"parentCode,omitempty"`
	IsSystem   bool        `json:"isSystem"`
}

func (a *Account) Validate() error {
	if a == nil {
		return fmt.Errorf("nil Account")
	}
	if a.Code == "" {
		return fmt.Errorf("account: missing code")
	}
	if err := a.Type.Validate(); err != nil {
		return err
	}
	if parent := parentOf(a.Code); parent != a.ParentCode {
		return fmt.Errorf("account %s: parent code %q doesn't match hierarchy (expected %q)", a.Code, a.ParentCode, parent)
	}
	return nil
}

func parentOf(code string) string {
	if idx := strings.LastIndex(code, ":"); idx > 0 {
		return code[:idx]
	}
	return ""
}
