// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package contracts

import (
	"fmt"

	"github.com/raynmakr/bigfin/internal/errcode"
	"github.com/raynmakr/bigfin/internal/ledger"
	"github.com/raynmakr/bigfin/pkg/id"

	"github.com/go-kit/kit/log"
)

// Service performs contract servicing operations that post through the
// ledger: fee assessments, interest accrual, write-offs, cancellation.
// Disbursement and repayment settlement live with the transfer
// orchestrator.
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

// Originate creates a contract with its amortization schedule.
func (s *Service) Originate(contract *Contract) (*Contract, []*ScheduleItem, error) {
	schedule, err := BuildSchedule(contract)
	if err != nil {
		return nil, nil, err
	}
	if err := s.repo.CreateContract(contract, schedule); err != nil {
		return nil, nil, errcode.Wrap(errcode.InternalError, err, "contracts: create")
	}
	s.logger.Log("contracts", fmt.Sprintf("originated contract=%s principal=%d installments=%d", contract.ID, contract.PrincipalCents, len(schedule)))
	return contract, schedule, nil
}

// AssessFee charges a servicing fee: ledger journal plus the contract's
// fee receivable balance.
func (s *Service) AssessFee(tenantID id.Tenant, contractID id.Contract, kind ledger.FeeKind, amountCents int64, actor string) error {
	if amountCents <= 0 {
		return errcode.New(errcode.InvalidRequest, "amount must be positive")
	}
	if err := kind.Validate(); err != nil {
		return errcode.New(errcode.InvalidRequest, "%v", err)
	}
	contract, err := s.requireServiceable(tenantID, contractID)
	if err != nil {
		return err
	}

	if _, err := s.ledger.CreateJournal(tenantID, ledger.FeeAssessmentJournal(contract.ID, kind, amountCents, actor)); err != nil {
		return err
	}
	return s.repo.AddCharge(tenantID, contractID, 0, amountCents)
}

// AccrueInterest recognizes interest receivable on an active contract.
func (s *Service) AccrueInterest(tenantID id.Tenant, contractID id.Contract, amountCents int64, actor string) error {
	if amountCents <= 0 {
		return errcode.New(errcode.InvalidRequest, "amount must be positive")
	}
	contract, err := s.requireServiceable(tenantID, contractID)
	if err != nil {
		return err
	}

	if _, err := s.ledger.CreateJournal(tenantID, ledger.InterestAccrualJournal(contract.ID, amountCents, actor)); err != nil {
		return err
	}
	return s.repo.AddCharge(tenantID, contractID, amountCents, 0)
}

// WriteOff defaults a contract and expenses its outstanding receivable.
func (s *Service) WriteOff(tenantID id.Tenant, contractID id.Contract, actor string) error {
	contract, err := s.requireServiceable(tenantID, contractID)
	if err != nil {
		return err
	}
	if contract.OutstandingCents() == 0 {
		return errcode.New(errcode.InvalidState, "contract %s has nothing outstanding", contractID)
	}

	if _, err := s.ledger.CreateJournal(tenantID, ledger.WriteOffJournal(contract.ID, contract.PrincipalBalanceCents, contract.InterestBalanceCents, contract.FeesBalanceCents, actor)); err != nil {
		return err
	}
	return s.repo.MarkDefaulted(tenantID, contractID)
}

// Cancel voids a contract that was never disbursed.
func (s *Service) Cancel(tenantID id.Tenant, contractID id.Contract) error {
	return s.repo.UpdateStatus(tenantID, contractID, PendingDisbursement, Cancelled)
}

func (s *Service) requireServiceable(tenantID id.Tenant, contractID id.Contract) (*Contract, error) {
	contract, err := s.repo.GetContract(tenantID, contractID)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, err, "contracts: lookup %s", contractID)
	}
	if contract == nil {
		return nil, errcode.New(errcode.NotFound, "contract %s not found", contractID)
	}
	if contract.Status.Terminal() {
		return nil, errcode.New(errcode.InvalidState, "contract %s is %s", contractID, contract.Status)
	}
	return contract, nil
}
