// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package accounts

import (
	"fmt"
)

var systemChart = []*Account{
	{Code: "Cash", Name: "Cash", Type: Asset, IsSystem: true},
	{Code: CashOperating, Name: "Operating Cash", Type: Asset, ParentCode: "Cash", IsSystem: true},
	{Code: CashPrefund, Name: "Prefund Custodial Cash", Type: Asset, ParentCode: "Cash", IsSystem: true},
	{Code: "Loans", Name: "Loans Receivable", Type: Asset, IsSystem: true},
	{Code: LoansPrincipal, Name: "Loan Principal Receivable", Type: Asset, ParentCode: "Loans", IsSystem: true},
	{Code: LoansInterest, Name: "Loan Interest Receivable", Type: Asset, ParentCode: "Loans", IsSystem: true},
	{Code: LoansFees, Name: "Loan Fees Receivable", Type: Asset, ParentCode: "Loans", IsSystem: true},
	{Code: "Liabilities", Name: "Liabilities", Type: Liability, IsSystem: true},
	{Code: PrefundBalances, Name: "Lender Prefund Balances", Type: Liability, ParentCode: "Liabilities", IsSystem: true},
	{Code: "Revenue", Name: "Revenue", Type: Revenue, IsSystem: true},
	{Code: RevenueInterest, Name: "Interest Income", Type: Revenue, ParentCode: "Revenue", IsSystem: true},
	{Code: "Revenue:Fees", Name: "Fee Revenue", Type: Revenue, ParentCode: "Revenue", IsSystem: true},
	{Code: RevenueFeesExpress, Name: "Express Fee Revenue", Type: Revenue, ParentCode: "Revenue:Fees", IsSystem: true},
	{Code: RevenueFeesLate, Name: "Late Fee Revenue", Type: Revenue, ParentCode: "Revenue:Fees", IsSystem: true},
	{Code: RevenueFeesNSF, Name: "NSF Fee Revenue", Type: Revenue, ParentCode: "Revenue:Fees", IsSystem: true},
	{Code: "Expenses", Name: "Expenses", Type: Expense, IsSystem: true},
	{Code: ExpensesBadDebt, Name: "Bad Debt Expense", Type: Expense, ParentCode: "Expenses", IsSystem: true},
}

// SeedSystemChart inserts the system chart of accounts, skipping codes
// which already exist. Safe to call on every startup.
func SeedSystemChart(repo Repository) error {
	for i := range systemChart {
		existing, err := repo.GetAccount(systemChart[i].Code)
		if err != nil {
			return fmt.Errorf("seed: lookup %s: %v", systemChart[i].Code, err)
		}
		if existing != nil {
			continue
		}
		if err := repo.CreateAccount(systemChart[i]); err != nil {
			return fmt.Errorf("seed: create %s: %v", systemChart[i].Code, err)
		}
	}
	return nil
}
