// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package prefund

import (
	"fmt"

	"github.com/raynmakr/bigfin/internal/accounts"
	"github.com/raynmakr/bigfin/internal/errcode"
	"github.com/raynmakr/bigfin/internal/ledger"
	"github.com/raynmakr/bigfin/pkg/id"

	"github.com/go-kit/kit/log"
)

// Service moves money in and out of lender custody. Every movement
// appends a trail row; deposits, withdrawals and fees also post ledger
// journals so custody cash and the lender liability stay in sync.
type Service struct {
	logger log.Logger
	repo   Repository
	ledger *ledger.Engine
}

func NewService(logger log.Logger, repo Repository, ledgerEngine *ledger.Engine) *Service {
	return &Service{
		logger: logger,
		repo:   repo,
		ledger: ledgerEngine,
	}
}

// AvailableBalance reads the authoritative available balance, or zero
// with ok=false when the customer has no completed history.
func (s *Service) AvailableBalance(tenantID id.Tenant, customerID id.Customer) (int64, bool, error) {
	latest, err := s.repo.LatestCompleted(tenantID, customerID)
	if err != nil {
		return 0, false, errcode.Wrap(errcode.InternalError, err, "prefund: latest balance")
	}
	if latest == nil {
		return 0, false, nil
	}
	return latest.AvailableAfterCents, true, nil
}

func (s *Service) Deposit(tenantID id.Tenant, customerID id.Customer, amountCents int64) (*Transaction, error) {
	if _, err := s.ledger.CreateJournal(tenantID, ledger.PrefundDepositJournal(customerID, amountCents, "prefund")); err != nil {
		return nil, err
	}
	return s.append(tenantID, customerID, Deposit, amountCents)
}

func (s *Service) Withdraw(tenantID id.Tenant, customerID id.Customer, amountCents int64) (*Transaction, error) {
	if err := s.requireAvailable(tenantID, customerID, amountCents); err != nil {
		return nil, err
	}
	if _, err := s.ledger.CreateJournal(tenantID, ledger.PrefundWithdrawalJournal(customerID, amountCents, "prefund")); err != nil {
		return nil, err
	}
	return s.append(tenantID, customerID, Withdrawal, amountCents)
}

// Hold earmarks funds for an in-flight disbursement without moving
// custody cash.
func (s *Service) Hold(tenantID id.Tenant, customerID id.Customer, amountCents int64) (*Transaction, error) {
	if err := s.requireAvailable(tenantID, customerID, amountCents); err != nil {
		return nil, err
	}
	return s.append(tenantID, customerID, DisbursementHold, amountCents)
}

// Release returns an earmark to the available balance, e.g. when the
// held disbursement failed.
func (s *Service) Release(tenantID id.Tenant, customerID id.Customer, amountCents int64) (*Transaction, error) {
	return s.append(tenantID, customerID, DisbursementRelease, amountCents)
}

// ChargeFee debits the lender's custody balance for a platform fee.
func (s *Service) ChargeFee(tenantID id.Tenant, customerID id.Customer, amountCents int64) (*Transaction, error) {
	if err := s.requireAvailable(tenantID, customerID, amountCents); err != nil {
		return nil, err
	}
	_, err := s.ledger.CreateJournal(tenantID, ledger.JournalRequest{
		Type:        ledger.Adjustment,
		Description: fmt.Sprintf("Prefund fee for customer %s", customerID),
		CreatedBy:   "prefund",
		Entries: []ledger.EntryInput{
			{AccountCode: accounts.PrefundBalances, DebitCents: amountCents},
			{AccountCode: accounts.RevenueFeesExpress, CreditCents: amountCents},
		},
	})
	if err != nil {
		return nil, err
	}
	return s.append(tenantID, customerID, Fee, amountCents)
}

func (s *Service) requireAvailable(tenantID id.Tenant, customerID id.Customer, amountCents int64) error {
	if amountCents <= 0 {
		return errcode.New(errcode.InvalidRequest, "amount must be positive")
	}
	available, _, err := s.AvailableBalance(tenantID, customerID)
	if err != nil {
		return err
	}
	if available < amountCents {
		return errcode.New(errcode.InsufficientFunds, "available %d is less than %d", available, amountCents)
	}
	return nil
}

// append writes the trail row carrying the post-movement balances.
func (s *Service) append(tenantID id.Tenant, customerID id.Customer, typ Type, amountCents int64) (*Transaction, error) {
	if amountCents <= 0 {
		return nil, errcode.New(errcode.InvalidRequest, "amount must be positive")
	}

	var balance, available int64
	latest, err := s.repo.LatestCompleted(tenantID, customerID)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, err, "prefund: latest balance")
	}
	if latest != nil {
		balance = latest.BalanceAfterCents
		available = latest.AvailableAfterCents
	}

	transaction := &Transaction{
		TenantID:            tenantID,
		CustomerID:          customerID,
		Type:                typ,
		AmountCents:         amountCents,
		Status:              Completed,
		BalanceAfterCents:   balance + balanceSign(typ)*amountCents,
		AvailableAfterCents: available + AvailableSign(typ)*amountCents,
	}
	if err := s.repo.CreateTransaction(transaction); err != nil {
		return nil, errcode.Wrap(errcode.InternalError, err, "prefund: append %s", typ)
	}
	return transaction, nil
}
