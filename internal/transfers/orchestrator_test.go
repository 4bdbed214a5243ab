// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package transfers

import (
	"strings"
	"testing"
	"time"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/internal/accounts"
	"github.com/raynmakr/bigfin/internal/config"
	"github.com/raynmakr/bigfin/internal/contracts"
	"github.com/raynmakr/bigfin/internal/database"
	"github.com/raynmakr/bigfin/internal/errcode"
	"github.com/raynmakr/bigfin/internal/instruments"
	"github.com/raynmakr/bigfin/internal/ledger"
	"github.com/raynmakr/bigfin/internal/prefund"
	"github.com/raynmakr/bigfin/internal/provider"
	"github.com/raynmakr/bigfin/internal/routing"
	"github.com/raynmakr/bigfin/pkg/id"

	"github.com/go-kit/kit/log"
)

type testHarness struct {
	db *database.TestSQLiteDB

	ledger         *ledger.Engine
	contractRepo   *contracts.SQLRepo
	instrumentRepo *instruments.SQLRepo
	prefundService *prefund.Service
	repo           *SQLRepo
	sandbox        *provider.SandboxClient
	orchestrator   *Orchestrator
}

func setupHarness(t *testing.T, availability config.Availability) *testHarness {
	t.Helper()

	db := database.CreateTestSqliteDB(t)
	logger := log.NewNopLogger()

	accountRepo := accounts.NewRepo(logger, db.DB)
	if err := accounts.SeedSystemChart(accountRepo); err != nil {
		t.Fatal(err)
	}
	ledgerEngine := ledger.NewEngine(logger, db.DB, accountRepo)

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}

	h := &testHarness{
		db:             db,
		ledger:         ledgerEngine,
		contractRepo:   contracts.NewRepo(logger, db.DB),
		instrumentRepo: instruments.NewRepo(logger, db.DB),
		prefundService: prefund.NewService(logger, prefund.NewRepo(logger, db.DB), ledgerEngine),
		repo:           NewRepo(logger, db.DB),
		sandbox:        provider.NewSandboxClient(),
	}
	h.orchestrator = NewOrchestrator(logger, availability, h.repo, h.contractRepo, h.instrumentRepo, h.prefundService, routing.NewEngine(logger, loc), h.sandbox, ledgerEngine, nil)
	return h
}

func (h *testHarness) createContract(t *testing.T, tenantID id.Tenant, principalCents int64) *contracts.Contract {
	t.Helper()

	contract := &contracts.Contract{
		TenantID:         tenantID,
		CustomerID:       id.Customer(base.ID()),
		PrincipalCents:   principalCents,
		APRBps:           1200,
		TermMonths:       12,
		PaymentFrequency: contracts.Monthly,
		FirstPaymentDate: base.NewTime(time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)),
	}
	schedule, err := contracts.BuildSchedule(contract)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.contractRepo.CreateContract(contract, schedule); err != nil {
		t.Fatal(err)
	}
	return contract
}

func (h *testHarness) createInstrument(t *testing.T, tenantID id.Tenant, customerID id.Customer, status instruments.Status) *instruments.FundingInstrument {
	t.Helper()

	instrument := &instruments.FundingInstrument{
		TenantID:    tenantID,
		CustomerID:  customerID,
		Type:        instruments.BankAccount,
		Status:      status,
		ProviderRef: id.ProviderRef("acct-" + base.ID()),
	}
	if err := h.instrumentRepo.CreateInstrument(instrument); err != nil {
		t.Fatal(err)
	}
	return instrument
}

func (h *testHarness) activateContract(t *testing.T, tenantID id.Tenant, contract *contracts.Contract, destination *instruments.FundingInstrument) *Disbursement {
	t.Helper()

	disbursement, result, err := h.orchestrator.InitiateDisbursement(tenantID, DisbursementRequest{
		ContractID:              contract.ID,
		DestinationInstrumentID: destination.ID,
		Speed:                   routing.Standard,
		Source:                  FromDirect,
	})
	if err != nil {
		t.Fatal(err)
	}
	h.sandbox.Complete(string(result.ProviderRef))
	if err := h.orchestrator.ProcessStatusUpdate(StatusUpdate{ProviderRef: result.ProviderRef, ProviderStatus: "completed"}); err != nil {
		t.Fatal(err)
	}
	return disbursement
}

func TestOrchestrator__DisbursementStandard(t *testing.T) {
	h := setupHarness(t, config.Availability{})
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	contract := h.createContract(t, tenantID, 100000)
	destination := h.createInstrument(t, tenantID, contract.CustomerID, instruments.Verified)

	disbursement, result, err := h.orchestrator.InitiateDisbursement(tenantID, DisbursementRequest{
		ContractID:              contract.ID,
		DestinationInstrumentID: destination.ID,
		Speed:                   routing.Standard,
		Source:                  FromDirect,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Rail != routing.ACH {
		t.Errorf("rail=%s", result.Rail)
	}
	if result.FeeCents != 0 {
		t.Errorf("feeCents=%d", result.FeeCents)
	}
	if disbursement.Status != Pending || disbursement.Availability != AvailPending {
		t.Errorf("status=%s availability=%s", disbursement.Status, disbursement.Availability)
	}
	if disbursement.ProviderRef == "" || disbursement.Rail != routing.ACH {
		t.Errorf("providerRef=%s rail=%s", disbursement.ProviderRef, disbursement.Rail)
	}
}

func TestRepository__GetActiveTenants(t *testing.T) {
	h := setupHarness(t, config.Availability{})
	defer h.db.Close()

	if tenants, err := h.repo.GetActiveTenants(); err != nil {
		t.Fatal(err)
	} else if len(tenants) != 0 {
		t.Errorf("got %v", tenants)
	}

	tenantID := id.Tenant(base.ID())
	contract := h.createContract(t, tenantID, 100000)
	destination := h.createInstrument(t, tenantID, contract.CustomerID, instruments.Verified)
	if _, _, err := h.orchestrator.InitiateDisbursement(tenantID, DisbursementRequest{
		ContractID:              contract.ID,
		DestinationInstrumentID: destination.ID,
		Speed:                   routing.Standard,
		Source:                  FromDirect,
	}); err != nil {
		t.Fatal(err)
	}

	tenants, err := h.repo.GetActiveTenants()
	if err != nil {
		t.Fatal(err)
	}
	if len(tenants) != 1 || tenants[0] != tenantID {
		t.Errorf("got %v", tenants)
	}
}

func TestOrchestrator__DisbursementFallback(t *testing.T) {
	h := setupHarness(t, config.Availability{})
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	contract := h.createContract(t, tenantID, 100000)
	destination := h.createInstrument(t, tenantID, contract.CustomerID, instruments.Verified)

	// a verified bank account tries rtp -> fednow -> ach
	h.sandbox.FailPaymentMethodType("rtp-credit")
	h.sandbox.FailPaymentMethodType("fednow-credit")

	disbursement, result, err := h.orchestrator.InitiateDisbursement(tenantID, DisbursementRequest{
		ContractID:              contract.ID,
		DestinationInstrumentID: destination.ID,
		Speed:                   routing.Instant,
		Source:                  FromDirect,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Rail != routing.ACH {
		t.Errorf("rail=%s", result.Rail)
	}
	if result.FeeCents != 499 {
		t.Errorf("feeCents=%d", result.FeeCents)
	}
	if disbursement.Rail != routing.ACH || disbursement.Status != Pending {
		t.Errorf("rail=%s status=%s", disbursement.Rail, disbursement.Status)
	}
}

func TestOrchestrator__DisbursementAllRailsFail(t *testing.T) {
	h := setupHarness(t, config.Availability{})
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	contract := h.createContract(t, tenantID, 100000)
	destination := h.createInstrument(t, tenantID, contract.CustomerID, instruments.Verified)

	for _, pmType := range []string{"rtp-credit", "fednow-credit", "push-to-card", "ach-credit-same-day", "ach-credit-standard"} {
		h.sandbox.FailPaymentMethodType(pmType)
	}

	disbursement, _, err := h.orchestrator.InitiateDisbursement(tenantID, DisbursementRequest{
		ContractID:              contract.ID,
		DestinationInstrumentID: destination.ID,
		Speed:                   routing.Instant,
		Source:                  FromDirect,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if errcode.CodeOf(err) != errcode.ProviderError {
		t.Errorf("code=%s", errcode.CodeOf(err))
	}
	for _, rail := range []string{"rtp", "fednow", "ach"} {
		if !strings.Contains(err.Error(), rail) {
			t.Errorf("error missing rail %s: %v", rail, err)
		}
	}

	stored, err := h.repo.GetDisbursement(tenantID, disbursement.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != Failed || stored.Availability != AvailFailed {
		t.Errorf("status=%s availability=%s", stored.Status, stored.Availability)
	}
}

func TestOrchestrator__DisbursementSettlement(t *testing.T) {
	h := setupHarness(t, config.Availability{})
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	contract := h.createContract(t, tenantID, 100000)
	destination := h.createInstrument(t, tenantID, contract.CustomerID, instruments.Verified)

	disbursement, result, err := h.orchestrator.InitiateDisbursement(tenantID, DisbursementRequest{
		ContractID:              contract.ID,
		DestinationInstrumentID: destination.ID,
		Speed:                   routing.Standard,
		Source:                  FromDirect,
	})
	if err != nil {
		t.Fatal(err)
	}

	h.sandbox.Complete(string(result.ProviderRef))
	if err := h.orchestrator.ProcessStatusUpdate(StatusUpdate{ProviderRef: result.ProviderRef, ProviderStatus: "completed"}); err != nil {
		t.Fatal(err)
	}

	stored, err := h.repo.GetDisbursement(tenantID, disbursement.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != Completed || stored.Availability != AvailAvailable {
		t.Errorf("status=%s availability=%s", stored.Status, stored.Availability)
	}
	if stored.CompletedAt == nil {
		t.Error("expected completedAt")
	}

	activated, err := h.contractRepo.GetContract(tenantID, contract.ID)
	if err != nil {
		t.Fatal(err)
	}
	if activated.Status != contracts.Active {
		t.Errorf("contract status=%s", activated.Status)
	}
	if activated.DisbursedAt == nil {
		t.Error("expected disbursedAt")
	}

	balances, err := h.ledger.GetContractBalances(tenantID, contract.ID)
	if err != nil {
		t.Fatal(err)
	}
	if balances.PrincipalCents != 100000 {
		t.Errorf("ledger principal=%d", balances.PrincipalCents)
	}

	// redelivery of the same status is a no-op
	if err := h.orchestrator.ProcessStatusUpdate(StatusUpdate{ProviderRef: result.ProviderRef, ProviderStatus: "completed"}); err != nil {
		t.Fatal(err)
	}
	journals, err := h.ledger.GetContractJournals(tenantID, contract.ID, ledger.JournalFilter{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(journals) != 1 {
		t.Errorf("got %d journals", len(journals))
	}
}

func TestOrchestrator__DisbursementHold(t *testing.T) {
	h := setupHarness(t, config.Availability{
		HoldAmountOverCents: 50000,
		HoldDuration:        24 * time.Hour,
	})
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	contract := h.createContract(t, tenantID, 100000)
	destination := h.createInstrument(t, tenantID, contract.CustomerID, instruments.Verified)

	disbursement, result, err := h.orchestrator.InitiateDisbursement(tenantID, DisbursementRequest{
		ContractID:              contract.ID,
		DestinationInstrumentID: destination.ID,
		Speed:                   routing.Standard,
		Source:                  FromDirect,
	})
	if err != nil {
		t.Fatal(err)
	}

	h.sandbox.Complete(string(result.ProviderRef))
	if err := h.orchestrator.ProcessStatusUpdate(StatusUpdate{ProviderRef: result.ProviderRef, ProviderStatus: "completed"}); err != nil {
		t.Fatal(err)
	}

	stored, err := h.repo.GetDisbursement(tenantID, disbursement.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != Completed || stored.Availability != AvailHeld {
		t.Errorf("status=%s availability=%s", stored.Status, stored.Availability)
	}
	if stored.HoldReleaseAt == nil {
		t.Fatal("expected holdReleaseAt")
	}

	released, err := h.orchestrator.ReleaseHolds(stored.HoldReleaseAt.Time.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if released != 1 {
		t.Errorf("released=%d", released)
	}

	stored, _ = h.repo.GetDisbursement(tenantID, disbursement.ID)
	if stored.Availability != AvailAvailable {
		t.Errorf("availability=%s", stored.Availability)
	}
}

func TestOrchestrator__PrefundWaiver(t *testing.T) {
	h := setupHarness(t, config.Availability{})
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	lenderID := id.Customer(base.ID())
	if _, err := h.prefundService.Deposit(tenantID, lenderID, 200000); err != nil {
		t.Fatal(err)
	}

	contract := h.createContract(t, tenantID, 150000)
	destination := h.createInstrument(t, tenantID, contract.CustomerID, instruments.Verified)

	disbursement, result, err := h.orchestrator.InitiateDisbursement(tenantID, DisbursementRequest{
		ContractID:              contract.ID,
		DestinationInstrumentID: destination.ID,
		Speed:                   routing.Instant,
		Source:                  FromPrefund,
		LenderCustomerID:        lenderID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.FeeCents != 0 {
		t.Errorf("feeCents=%d", result.FeeCents)
	}
	if disbursement.LenderCustomerID != lenderID {
		t.Errorf("lenderCustomerId=%s", disbursement.LenderCustomerID)
	}

	// initiation earmarked the principal
	available, _, err := h.prefundService.AvailableBalance(tenantID, lenderID)
	if err != nil || available != 50000 {
		t.Fatalf("available=%d err=%v", available, err)
	}

	// settlement consumes the earmark; the funds stay deployed
	h.sandbox.Complete(string(result.ProviderRef))
	if err := h.orchestrator.ProcessStatusUpdate(StatusUpdate{ProviderRef: result.ProviderRef, ProviderStatus: "completed"}); err != nil {
		t.Fatal(err)
	}
	if available, _, _ = h.prefundService.AvailableBalance(tenantID, lenderID); available != 50000 {
		t.Errorf("available=%d after settlement", available)
	}
}

func TestOrchestrator__PrefundEarmarkReleasedOnFailure(t *testing.T) {
	h := setupHarness(t, config.Availability{})
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	lenderID := id.Customer(base.ID())
	if _, err := h.prefundService.Deposit(tenantID, lenderID, 200000); err != nil {
		t.Fatal(err)
	}

	contract := h.createContract(t, tenantID, 150000)
	destination := h.createInstrument(t, tenantID, contract.CustomerID, instruments.Verified)

	_, result, err := h.orchestrator.InitiateDisbursement(tenantID, DisbursementRequest{
		ContractID:              contract.ID,
		DestinationInstrumentID: destination.ID,
		Speed:                   routing.Standard,
		Source:                  FromPrefund,
		LenderCustomerID:        lenderID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if available, _, _ := h.prefundService.AvailableBalance(tenantID, lenderID); available != 50000 {
		t.Fatalf("available=%d", available)
	}

	h.sandbox.Fail(string(result.ProviderRef))
	if err := h.orchestrator.ProcessStatusUpdate(StatusUpdate{ProviderRef: result.ProviderRef, ProviderStatus: "failed"}); err != nil {
		t.Fatal(err)
	}
	if available, _, _ := h.prefundService.AvailableBalance(tenantID, lenderID); available != 200000 {
		t.Errorf("available=%d after failure", available)
	}

	// redelivered failure doesn't release twice
	if err := h.orchestrator.ProcessStatusUpdate(StatusUpdate{ProviderRef: result.ProviderRef, ProviderStatus: "failed"}); err != nil {
		t.Fatal(err)
	}
	if available, _, _ := h.prefundService.AvailableBalance(tenantID, lenderID); available != 200000 {
		t.Errorf("available=%d after redelivery", available)
	}
}

func TestOrchestrator__PrefundRejectsUnderfunded(t *testing.T) {
	h := setupHarness(t, config.Availability{})
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	lenderID := id.Customer(base.ID())
	if _, err := h.prefundService.Deposit(tenantID, lenderID, 100000); err != nil {
		t.Fatal(err)
	}

	contract := h.createContract(t, tenantID, 150000)
	destination := h.createInstrument(t, tenantID, contract.CustomerID, instruments.Verified)

	_, _, err := h.orchestrator.InitiateDisbursement(tenantID, DisbursementRequest{
		ContractID:              contract.ID,
		DestinationInstrumentID: destination.ID,
		Speed:                   routing.Standard,
		Source:                  FromPrefund,
		LenderCustomerID:        lenderID,
	})
	if errcode.CodeOf(err) != errcode.InsufficientFunds {
		t.Errorf("got %v", err)
	}

	_, _, err = h.orchestrator.InitiateDisbursement(tenantID, DisbursementRequest{
		ContractID:              contract.ID,
		DestinationInstrumentID: destination.ID,
		Speed:                   routing.Standard,
		Source:                  FromPrefund,
	})
	if errcode.CodeOf(err) != errcode.InvalidRequest {
		t.Errorf("got %v", err)
	}
}

func TestOrchestrator__RepaymentSettlement(t *testing.T) {
	h := setupHarness(t, config.Availability{})
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	contract := h.createContract(t, tenantID, 100000)
	borrower := h.createInstrument(t, tenantID, contract.CustomerID, instruments.Verified)
	h.activateContract(t, tenantID, contract, borrower)

	// accrue interest and a late fee so the waterfall has layers
	if err := h.contractRepo.AddCharge(tenantID, contract.ID, 2000, 1500); err != nil {
		t.Fatal(err)
	}

	repayment, result, err := h.orchestrator.InitiateRepayment(tenantID, RepaymentRequest{
		ContractID:         contract.ID,
		AmountCents:        13500,
		SourceInstrumentID: borrower.ID,
		Speed:              routing.Standard,
	})
	if err != nil {
		t.Fatal(err)
	}
	if repayment.AppliedFeeCents != 1500 || repayment.AppliedInterestCents != 2000 || repayment.AppliedPrincipalCents != 10000 {
		t.Errorf("applied=%d/%d/%d", repayment.AppliedFeeCents, repayment.AppliedInterestCents, repayment.AppliedPrincipalCents)
	}

	h.sandbox.Complete(string(result.ProviderRef))
	if err := h.orchestrator.ProcessStatusUpdate(StatusUpdate{ProviderRef: result.ProviderRef, ProviderStatus: "completed"}); err != nil {
		t.Fatal(err)
	}

	stored, err := h.repo.GetRepayment(tenantID, repayment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != Completed || stored.JournalID == "" {
		t.Errorf("status=%s journalID=%s", stored.Status, stored.JournalID)
	}

	updated, err := h.contractRepo.GetContract(tenantID, contract.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.PrincipalBalanceCents != 90000 || updated.InterestBalanceCents != 0 || updated.FeesBalanceCents != 0 {
		t.Errorf("balances=%d/%d/%d", updated.PrincipalBalanceCents, updated.InterestBalanceCents, updated.FeesBalanceCents)
	}
}

func TestOrchestrator__RepaymentReturnedAfterSettlement(t *testing.T) {
	h := setupHarness(t, config.Availability{})
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	contract := h.createContract(t, tenantID, 100000)
	borrower := h.createInstrument(t, tenantID, contract.CustomerID, instruments.Verified)
	h.activateContract(t, tenantID, contract, borrower)

	repayment, result, err := h.orchestrator.InitiateRepayment(tenantID, RepaymentRequest{
		ContractID:         contract.ID,
		AmountCents:        10000,
		SourceInstrumentID: borrower.ID,
		Speed:              routing.Standard,
	})
	if err != nil {
		t.Fatal(err)
	}

	h.sandbox.Complete(string(result.ProviderRef))
	if err := h.orchestrator.ProcessStatusUpdate(StatusUpdate{ProviderRef: result.ProviderRef, ProviderStatus: "completed"}); err != nil {
		t.Fatal(err)
	}
	if err := h.orchestrator.ProcessStatusUpdate(StatusUpdate{ProviderRef: result.ProviderRef, ProviderStatus: "returned"}); err != nil {
		t.Fatal(err)
	}

	stored, err := h.repo.GetRepayment(tenantID, repayment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != Returned {
		t.Errorf("status=%s", stored.Status)
	}

	// the settlement journal was reversed, netting the receipt to zero
	journal, err := h.ledger.GetJournal(tenantID, stored.JournalID)
	if err != nil {
		t.Fatal(err)
	}
	if journal.ReversedByJournalID == "" {
		t.Error("expected settlement journal reversed")
	}
	balance, err := h.ledger.AccountBalance(tenantID, accounts.CashOperating)
	if err != nil {
		t.Fatal(err)
	}
	// direct disbursement debited principal against operating cash;
	// repayment and its reversal cancel out
	if balance != -100000 {
		t.Errorf("operating cash=%d", balance)
	}

	// the contract got its receivable balance back
	updated, err := h.contractRepo.GetContract(tenantID, contract.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.PrincipalBalanceCents != 100000 {
		t.Errorf("principal balance=%d", updated.PrincipalBalanceCents)
	}
	if updated.Status != contracts.Active {
		t.Errorf("status=%s", updated.Status)
	}
}

func TestOrchestrator__ReturnReopensPaidOffContract(t *testing.T) {
	h := setupHarness(t, config.Availability{})
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	contract := h.createContract(t, tenantID, 100000)
	borrower := h.createInstrument(t, tenantID, contract.CustomerID, instruments.Verified)
	h.activateContract(t, tenantID, contract, borrower)

	_, result, err := h.orchestrator.InitiateRepayment(tenantID, RepaymentRequest{
		ContractID:         contract.ID,
		AmountCents:        100000,
		SourceInstrumentID: borrower.ID,
		Speed:              routing.Standard,
	})
	if err != nil {
		t.Fatal(err)
	}

	h.sandbox.Complete(string(result.ProviderRef))
	if err := h.orchestrator.ProcessStatusUpdate(StatusUpdate{ProviderRef: result.ProviderRef, ProviderStatus: "completed"}); err != nil {
		t.Fatal(err)
	}
	paidOff, err := h.contractRepo.GetContract(tenantID, contract.ID)
	if err != nil {
		t.Fatal(err)
	}
	if paidOff.Status != contracts.PaidOff {
		t.Fatalf("status=%s", paidOff.Status)
	}

	if err := h.orchestrator.ProcessStatusUpdate(StatusUpdate{ProviderRef: result.ProviderRef, ProviderStatus: "returned"}); err != nil {
		t.Fatal(err)
	}

	reopened, err := h.contractRepo.GetContract(tenantID, contract.ID)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Status != contracts.Active {
		t.Errorf("status=%s", reopened.Status)
	}
	if reopened.PaidOffAt != nil {
		t.Errorf("paidOffAt=%v", reopened.PaidOffAt)
	}
	if reopened.PrincipalBalanceCents != 100000 {
		t.Errorf("principal balance=%d", reopened.PrincipalBalanceCents)
	}
}

func TestOrchestrator__ScheduledRepayment(t *testing.T) {
	h := setupHarness(t, config.Availability{})
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	contract := h.createContract(t, tenantID, 100000)
	borrower := h.createInstrument(t, tenantID, contract.CustomerID, instruments.Verified)
	h.activateContract(t, tenantID, contract, borrower)

	due := time.Now().Add(-time.Hour)
	repayment, result, err := h.orchestrator.InitiateRepayment(tenantID, RepaymentRequest{
		ContractID:         contract.ID,
		AmountCents:        10000,
		SourceInstrumentID: borrower.ID,
		Speed:              routing.Standard,
		ScheduledFor:       &due,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result != nil {
		t.Error("scheduled repayments should not call the provider")
	}
	if repayment.Status != Scheduled {
		t.Errorf("status=%s", repayment.Status)
	}

	activated, err := h.orchestrator.ActivateDueRepayments(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if activated != 1 {
		t.Errorf("activated=%d", activated)
	}

	stored, _ := h.repo.GetRepayment(tenantID, repayment.ID)
	if stored.Status != Initiated {
		t.Errorf("status=%s", stored.Status)
	}
}

func TestOrchestrator__InvalidStates(t *testing.T) {
	h := setupHarness(t, config.Availability{})
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	contract := h.createContract(t, tenantID, 100000)
	destination := h.createInstrument(t, tenantID, contract.CustomerID, instruments.Verified)

	// repaying a contract that was never disbursed
	_, _, err := h.orchestrator.InitiateRepayment(tenantID, RepaymentRequest{
		ContractID:         contract.ID,
		AmountCents:        10000,
		SourceInstrumentID: destination.ID,
		Speed:              routing.Standard,
	})
	if errcode.CodeOf(err) != errcode.InvalidState {
		t.Errorf("code=%s", errcode.CodeOf(err))
	}

	// disbursing through a removed instrument
	removed := h.createInstrument(t, tenantID, contract.CustomerID, instruments.Removed)
	_, _, err = h.orchestrator.InitiateDisbursement(tenantID, DisbursementRequest{
		ContractID:              contract.ID,
		DestinationInstrumentID: removed.ID,
		Speed:                   routing.Standard,
		Source:                  FromDirect,
	})
	if errcode.CodeOf(err) != errcode.InstrumentInvalid {
		t.Errorf("code=%s", errcode.CodeOf(err))
	}

	// unknown contract
	_, _, err = h.orchestrator.InitiateDisbursement(tenantID, DisbursementRequest{
		ContractID:              "missing",
		DestinationInstrumentID: destination.ID,
		Speed:                   routing.Standard,
		Source:                  FromDirect,
	})
	if errcode.CodeOf(err) != errcode.NotFound {
		t.Errorf("code=%s", errcode.CodeOf(err))
	}

	// another tenant cannot see the contract
	_, _, err = h.orchestrator.InitiateDisbursement(id.Tenant(base.ID()), DisbursementRequest{
		ContractID:              contract.ID,
		DestinationInstrumentID: destination.ID,
		Speed:                   routing.Standard,
		Source:                  FromDirect,
	})
	if errcode.CodeOf(err) != errcode.NotFound {
		t.Errorf("code=%s", errcode.CodeOf(err))
	}
}

func TestOrchestrator__UnknownStatusUpdateIgnored(t *testing.T) {
	h := setupHarness(t, config.Availability{})
	defer h.db.Close()

	// unknown transfer references are acknowledged, not errors
	if err := h.orchestrator.ProcessStatusUpdate(StatusUpdate{ProviderRef: "missing", ProviderStatus: "completed"}); err != nil {
		t.Fatal(err)
	}
}
