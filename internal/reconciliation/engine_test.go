// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/internal/accounts"
	"github.com/raynmakr/bigfin/internal/config"
	"github.com/raynmakr/bigfin/internal/contracts"
	"github.com/raynmakr/bigfin/internal/database"
	"github.com/raynmakr/bigfin/internal/instruments"
	"github.com/raynmakr/bigfin/internal/ledger"
	"github.com/raynmakr/bigfin/internal/prefund"
	"github.com/raynmakr/bigfin/internal/provider"
	"github.com/raynmakr/bigfin/internal/routing"
	"github.com/raynmakr/bigfin/internal/transfers"
	"github.com/raynmakr/bigfin/pkg/id"

	"github.com/go-kit/kit/log"
)

type recordingAlerter struct {
	subjects []string
}

func (a *recordingAlerter) Critical(subject, body string) error {
	a.subjects = append(a.subjects, subject)
	return nil
}

type testHarness struct {
	db *database.TestSQLiteDB

	ledger         *ledger.Engine
	contractRepo   *contracts.SQLRepo
	instrumentRepo *instruments.SQLRepo
	prefundRepo    *prefund.SQLRepo
	transferRepo   *transfers.SQLRepo
	sandbox        *provider.SandboxClient
	orchestrator   *transfers.Orchestrator
	repo           *SQLRepo
	alerter        *recordingAlerter
	engine         *Engine
}

func setupHarness(t *testing.T) *testHarness {
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
		prefundRepo:    prefund.NewRepo(logger, db.DB),
		transferRepo:   transfers.NewRepo(logger, db.DB),
		sandbox:        provider.NewSandboxClient(),
		repo:           NewRepo(logger, db.DB),
		alerter:        &recordingAlerter{},
	}
	prefundService := prefund.NewService(logger, h.prefundRepo, ledgerEngine)
	h.orchestrator = transfers.NewOrchestrator(logger, config.Availability{}, h.transferRepo, h.contractRepo, h.instrumentRepo, prefundService, routing.NewEngine(logger, loc), h.sandbox, ledgerEngine, nil)
	h.engine = NewEngine(logger, reconciliationConfig(), h.repo, h.transferRepo, h.prefundRepo, ledgerEngine, h.sandbox, h.orchestrator, h.alerter)
	return h
}

func reconciliationConfig() config.Reconciliation {
	return config.Reconciliation{
		Schedule:                  []string{"06:00"},
		HighThresholdCents:        10000,
		CriticalThresholdCents:    100000,
		AutoResolve:               true,
		AutoResolveThresholdCents: 100,
	}
}

// initiateDisbursement creates a PENDING_DISBURSEMENT contract and
// pushes its payout through the sandbox.
func (h *testHarness) initiateDisbursement(t *testing.T, tenantID id.Tenant, principalCents int64) (*contracts.Contract, id.ProviderRef) {
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

	instrument := &instruments.FundingInstrument{
		TenantID:    tenantID,
		CustomerID:  contract.CustomerID,
		Type:        instruments.BankAccount,
		Status:      instruments.Verified,
		ProviderRef: id.ProviderRef("acct-" + base.ID()),
	}
	if err := h.instrumentRepo.CreateInstrument(instrument); err != nil {
		t.Fatal(err)
	}

	_, result, err := h.orchestrator.InitiateDisbursement(tenantID, transfers.DisbursementRequest{
		ContractID:              contract.ID,
		DestinationInstrumentID: instrument.ID,
		Speed:                   routing.Standard,
		Source:                  transfers.FromDirect,
	})
	if err != nil {
		t.Fatal(err)
	}
	return contract, result.ProviderRef
}

func TestEngine__CleanRun(t *testing.T) {
	h := setupHarness(t)
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	_, providerRef := h.initiateDisbursement(t, tenantID, 100000)

	h.sandbox.Complete(string(providerRef))
	if err := h.orchestrator.ProcessStatusUpdate(transfers.StatusUpdate{ProviderRef: providerRef, ProviderStatus: "completed"}); err != nil {
		t.Fatal(err)
	}

	run, err := h.engine.Run(tenantID, RunRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != RunCompleted {
		t.Errorf("status=%s", run.Status)
	}

	exceptions, err := h.repo.GetRunExceptions(tenantID, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(exceptions) != 0 {
		t.Errorf("got %d exceptions: %+v", len(exceptions), exceptions)
	}
}

func TestEngine__AutoResolvesSettledTransfer(t *testing.T) {
	h := setupHarness(t)
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	contract, providerRef := h.initiateDisbursement(t, tenantID, 100000)

	// provider settled but the webhook never arrived
	h.sandbox.Complete(string(providerRef))

	run, err := h.engine.Run(tenantID, RunRequest{})
	if err != nil {
		t.Fatal(err)
	}

	exceptions, err := h.repo.GetRunExceptions(tenantID, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(exceptions) != 1 {
		t.Fatalf("got %d exceptions", len(exceptions))
	}
	exception := exceptions[0]
	if exception.Type != TransferStatus || exception.Severity != High {
		t.Errorf("type=%s severity=%s", exception.Type, exception.Severity)
	}
	if exception.Status != Resolved || exception.ResolutionType != AutoCorrected {
		t.Errorf("status=%s resolution=%s", exception.Status, exception.ResolutionType)
	}
	if exception.ResolvedAt == nil {
		t.Error("expected resolvedAt")
	}

	// the fix settled the transfer for real: contract active, journal posted
	disbursement, err := h.transferRepo.GetDisbursementByProviderRef(providerRef)
	if err != nil {
		t.Fatal(err)
	}
	if disbursement.Status != transfers.Completed {
		t.Errorf("status=%s", disbursement.Status)
	}
	updated, _ := h.contractRepo.GetContract(tenantID, contract.ID)
	if updated.Status != contracts.Active {
		t.Errorf("contract status=%s", updated.Status)
	}

	if len(h.alerter.subjects) != 0 {
		t.Errorf("unexpected alerts: %v", h.alerter.subjects)
	}
}

func TestEngine__DryRunSkipsAutoResolution(t *testing.T) {
	h := setupHarness(t)
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	_, providerRef := h.initiateDisbursement(t, tenantID, 100000)
	h.sandbox.Complete(string(providerRef))

	run, err := h.engine.Run(tenantID, RunRequest{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}

	exceptions, err := h.repo.GetRunExceptions(tenantID, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(exceptions) != 1 {
		t.Fatalf("got %d exceptions", len(exceptions))
	}
	if exceptions[0].Type != TransferStatus || exceptions[0].Status != Open {
		t.Errorf("type=%s status=%s", exceptions[0].Type, exceptions[0].Status)
	}

	// nothing was written back to the record
	disbursement, err := h.transferRepo.GetDisbursementByProviderRef(providerRef)
	if err != nil {
		t.Fatal(err)
	}
	if disbursement.Status != transfers.Pending {
		t.Errorf("status=%s", disbursement.Status)
	}
}

func TestEngine__TypesFilter(t *testing.T) {
	h := setupHarness(t)
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())

	// seed both an orphanable disbursement and a corrupt ledger entry
	_, _ = h.initiateDisbursement(t, tenantID, 5000)
	if _, err := h.db.DB.Exec(`insert into entries (entry_id, journal_id, tenant_id, account_code, debit_cents, credit_cents, balance_after_cents, created_at) values (?, ?, ?, ?, ?, ?, ?, ?)`,
		base.ID(), base.ID(), tenantID, accounts.CashOperating, 12345, 0, 12345, time.Now()); err != nil {
		t.Fatal(err)
	}

	logger := log.NewNopLogger()
	engine := NewEngine(logger, reconciliationConfig(), h.repo, h.transferRepo, h.prefundRepo, h.ledger, provider.NewSandboxClient(), h.orchestrator, h.alerter)
	engine.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	run, err := engine.Run(tenantID, RunRequest{Types: []string{"ledger"}})
	if err != nil {
		t.Fatal(err)
	}
	exceptions, _ := h.repo.GetRunExceptions(tenantID, run.ID)
	if len(exceptions) != 1 || exceptions[0].Type != LedgerImbalance {
		t.Fatalf("exceptions=%+v", exceptions)
	}

	run, err = engine.Run(tenantID, RunRequest{Types: []string{"disbursements"}})
	if err != nil {
		t.Fatal(err)
	}
	exceptions, _ = h.repo.GetRunExceptions(tenantID, run.ID)
	if len(exceptions) != 1 || exceptions[0].Type != TransferOrphaned {
		t.Fatalf("exceptions=%+v", exceptions)
	}
}

func TestEngine__RunRequestValidation(t *testing.T) {
	h := setupHarness(t)
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())

	if _, err := h.engine.Run(tenantID, RunRequest{Types: []string{"everything"}}); err == nil {
		t.Error("expected error for unknown type")
	}

	now := time.Now()
	start, end := now.Add(time.Hour), now
	if _, err := h.engine.Run(tenantID, RunRequest{PeriodStart: &start, PeriodEnd: &end}); err == nil {
		t.Error("expected error for inverted period")
	}

	runs, err := h.repo.GetRuns(tenantID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("rejected requests persisted %d runs", len(runs))
	}
}

func TestEngine__CriticalStatusMismatchAlerts(t *testing.T) {
	h := setupHarness(t)
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	_, providerRef := h.initiateDisbursement(t, tenantID, 100000)

	// we think it settled; the provider says it failed
	if err := h.orchestrator.ProcessStatusUpdate(transfers.StatusUpdate{ProviderRef: providerRef, ProviderStatus: "completed"}); err != nil {
		t.Fatal(err)
	}
	h.sandbox.Fail(string(providerRef))

	run, err := h.engine.Run(tenantID, RunRequest{})
	if err != nil {
		t.Fatal(err)
	}

	exceptions, err := h.repo.GetRunExceptions(tenantID, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(exceptions) != 1 {
		t.Fatalf("got %d exceptions", len(exceptions))
	}
	exception := exceptions[0]
	if exception.Type != TransferStatus || exception.Severity != Critical || exception.Status != Open {
		t.Errorf("type=%s severity=%s status=%s", exception.Type, exception.Severity, exception.Status)
	}
	if len(h.alerter.subjects) != 1 {
		t.Errorf("alerts=%v", h.alerter.subjects)
	}
}

func TestEngine__OrphanedTransfer(t *testing.T) {
	h := setupHarness(t)
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	_, _ = h.initiateDisbursement(t, tenantID, 5000)

	// reconcile against a provider that has no record of the transfer
	logger := log.NewNopLogger()
	engine := NewEngine(logger, reconciliationConfig(), h.repo, h.transferRepo, h.prefundRepo, h.ledger, provider.NewSandboxClient(), h.orchestrator, h.alerter)

	// young records are left alone; the listing may lag
	run, err := engine.Run(tenantID, RunRequest{})
	if err != nil {
		t.Fatal(err)
	}
	exceptions, _ := h.repo.GetRunExceptions(tenantID, run.ID)
	if len(exceptions) != 0 {
		t.Fatalf("got %d exceptions: %+v", len(exceptions), exceptions)
	}

	// a day later the record is an orphan
	engine.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	run, err = engine.Run(tenantID, RunRequest{})
	if err != nil {
		t.Fatal(err)
	}
	exceptions, err = h.repo.GetRunExceptions(tenantID, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(exceptions) != 1 {
		t.Fatalf("got %d exceptions", len(exceptions))
	}
	if exceptions[0].Type != TransferOrphaned || exceptions[0].Severity != Medium {
		t.Errorf("type=%s severity=%s", exceptions[0].Type, exceptions[0].Severity)
	}
	if exceptions[0].LocalRecordType != "disbursement" || exceptions[0].DiscrepancyCents != 5000 {
		t.Errorf("recordType=%s discrepancy=%d", exceptions[0].LocalRecordType, exceptions[0].DiscrepancyCents)
	}
}

func TestEngine__RerunProducesSameExceptions(t *testing.T) {
	h := setupHarness(t)
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	_, _ = h.initiateDisbursement(t, tenantID, 5000)

	// two runs against a provider with no record of the transfer
	logger := log.NewNopLogger()
	engine := NewEngine(logger, reconciliationConfig(), h.repo, h.transferRepo, h.prefundRepo, h.ledger, provider.NewSandboxClient(), h.orchestrator, h.alerter)
	engine.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	first, err := engine.Run(tenantID, RunRequest{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := engine.Run(tenantID, RunRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Fatal("expected distinct runs")
	}

	firstExceptions, _ := h.repo.GetRunExceptions(tenantID, first.ID)
	secondExceptions, _ := h.repo.GetRunExceptions(tenantID, second.ID)
	if len(firstExceptions) != 1 || len(secondExceptions) != 1 {
		t.Fatalf("got %d and %d exceptions", len(firstExceptions), len(secondExceptions))
	}

	a, b := firstExceptions[0], secondExceptions[0]
	if a.ID == b.ID {
		t.Error("exception ids should differ between runs")
	}
	if a.Type != b.Type || a.Severity != b.Severity || a.Status != b.Status {
		t.Errorf("first=%s/%s/%s second=%s/%s/%s", a.Type, a.Severity, a.Status, b.Type, b.Severity, b.Status)
	}
	if a.LocalRecordID != b.LocalRecordID || a.DiscrepancyCents != b.DiscrepancyCents {
		t.Errorf("first=%s/%d second=%s/%d", a.LocalRecordID, a.DiscrepancyCents, b.LocalRecordID, b.DiscrepancyCents)
	}
}

func TestEngine__MissingTransfer(t *testing.T) {
	h := setupHarness(t)
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())

	// provider transfers without our record metadata belong to other
	// systems and are never flagged
	if _, err := h.sandbox.CreateTransfer(context.Background(), provider.CreateTransferRequest{
		SourcePaymentMethodID:      "pm-x-ach-debit-fund",
		DestinationPaymentMethodID: "pm-x-ach-credit-standard",
		AmountCents:                9900,
		Currency:                   "USD",
	}); err != nil {
		t.Fatal(err)
	}
	run, err := h.engine.Run(tenantID, RunRequest{})
	if err != nil {
		t.Fatal(err)
	}
	exceptions, _ := h.repo.GetRunExceptions(tenantID, run.ID)
	if len(exceptions) != 0 {
		t.Fatalf("got %d exceptions: %+v", len(exceptions), exceptions)
	}

	// the provider knows a disbursement we never recorded
	transfer, err := h.sandbox.CreateTransfer(context.Background(), provider.CreateTransferRequest{
		SourcePaymentMethodID:      "pm-x-ach-debit-fund",
		DestinationPaymentMethodID: "pm-x-ach-credit-standard",
		AmountCents:                250000,
		Currency:                   "USD",
		Metadata:                   map[string]string{"type": "disbursement"},
	})
	if err != nil {
		t.Fatal(err)
	}

	run, err = h.engine.Run(tenantID, RunRequest{})
	if err != nil {
		t.Fatal(err)
	}
	exceptions, _ = h.repo.GetRunExceptions(tenantID, run.ID)
	if len(exceptions) != 1 {
		t.Fatalf("got %d exceptions", len(exceptions))
	}
	if exceptions[0].Type != TransferMissing || exceptions[0].ProviderRecordID != transfer.ID {
		t.Errorf("type=%s providerRecordId=%s", exceptions[0].Type, exceptions[0].ProviderRecordID)
	}
	// 250,000 cents sits in the critical band
	if exceptions[0].Severity != Critical {
		t.Errorf("severity=%s", exceptions[0].Severity)
	}
}

func TestEngine__PrefundMismatch(t *testing.T) {
	h := setupHarness(t)
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	customerID := id.Customer(base.ID())
	prefundService := prefund.NewService(log.NewNopLogger(), h.prefundRepo, h.ledger)
	if _, err := prefundService.Deposit(tenantID, customerID, 50000); err != nil {
		t.Fatal(err)
	}

	// corrupt the snapshot so the fold disagrees
	if _, err := h.db.DB.Exec(`update prefund_transactions set available_after_cents = 60000 where tenant_id = ? and customer_id = ?`, tenantID, customerID); err != nil {
		t.Fatal(err)
	}

	run, err := h.engine.Run(tenantID, RunRequest{})
	if err != nil {
		t.Fatal(err)
	}
	exceptions, _ := h.repo.GetRunExceptions(tenantID, run.ID)
	if len(exceptions) != 1 {
		t.Fatalf("got %d exceptions", len(exceptions))
	}
	if exceptions[0].Type != PrefundMismatch || exceptions[0].DiscrepancyCents != 10000 {
		t.Errorf("type=%s discrepancy=%d", exceptions[0].Type, exceptions[0].DiscrepancyCents)
	}
}

func TestEngine__LedgerImbalance(t *testing.T) {
	h := setupHarness(t)
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())

	// a lone entry row cannot come from the engine; fake the corruption
	_, err := h.db.DB.Exec(`insert into entries (entry_id, journal_id, tenant_id, account_code, debit_cents, credit_cents, balance_after_cents, created_at) values (?, ?, ?, ?, ?, ?, ?, ?)`,
		base.ID(), base.ID(), tenantID, accounts.CashOperating, 12345, 0, 12345, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	run, err := h.engine.Run(tenantID, RunRequest{})
	if err != nil {
		t.Fatal(err)
	}
	exceptions, _ := h.repo.GetRunExceptions(tenantID, run.ID)
	if len(exceptions) != 1 {
		t.Fatalf("got %d exceptions", len(exceptions))
	}
	if exceptions[0].Type != LedgerImbalance || exceptions[0].Severity != Critical {
		t.Errorf("type=%s severity=%s", exceptions[0].Type, exceptions[0].Severity)
	}
	if len(h.alerter.subjects) != 1 {
		t.Errorf("alerts=%v", h.alerter.subjects)
	}
}

func TestEngine__ManualResolution(t *testing.T) {
	h := setupHarness(t)
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	exception := &Exception{
		TenantID:         tenantID,
		RunID:            "run-1",
		Type:             AmountMismatch,
		Severity:         Medium,
		DiscrepancyCents: 5000,
		Description:      "test",
	}
	if err := h.repo.CreateException(exception); err != nil {
		t.Fatal(err)
	}

	if err := h.repo.ResolveException(tenantID, exception.ID, Manual); err != nil {
		t.Fatal(err)
	}
	resolved, err := h.repo.GetException(tenantID, exception.ID)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Status != Resolved || resolved.ResolutionType != Manual || resolved.ResolvedAt == nil {
		t.Errorf("status=%s resolution=%s", resolved.Status, resolved.ResolutionType)
	}

	// double resolution fails
	if err := h.repo.ResolveException(tenantID, exception.ID, Manual); err == nil {
		t.Error("expected error")
	}
}

func TestEngine__ExceptionStatusTransitions(t *testing.T) {
	h := setupHarness(t)
	defer h.db.Close()

	tenantID := id.Tenant(base.ID())
	exception := &Exception{
		TenantID:      tenantID,
		RunID:         "run-1",
		Type:          TransferStatus,
		Severity:      High,
		LocalValue:    "pending",
		ProviderValue: "failed",
		Description:   "test",
	}
	if err := h.repo.CreateException(exception); err != nil {
		t.Fatal(err)
	}

	// an exception under investigation still lists as unresolved
	if err := h.repo.UpdateExceptionStatus(tenantID, exception.ID, Investigating); err != nil {
		t.Fatal(err)
	}
	open, err := h.repo.GetOpenExceptions(tenantID)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 || open[0].Status != Investigating {
		t.Fatalf("open=%#v", open)
	}

	// and can still be resolved
	if err := h.repo.ResolveException(tenantID, exception.ID, Manual); err != nil {
		t.Fatal(err)
	}
	if err := h.repo.UpdateExceptionStatus(tenantID, exception.ID, Ignored); err == nil {
		t.Error("resolved exceptions cannot change status")
	}

	second := &Exception{
		TenantID:    tenantID,
		RunID:       "run-1",
		Type:        PrefundMismatch,
		Severity:    Medium,
		Description: "test",
	}
	if err := h.repo.CreateException(second); err != nil {
		t.Fatal(err)
	}
	if err := h.repo.UpdateExceptionStatus(tenantID, second.ID, Ignored); err != nil {
		t.Fatal(err)
	}
	ignored, err := h.repo.GetException(tenantID, second.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ignored.Status != Ignored || ignored.ResolvedAt != nil {
		t.Errorf("status=%s resolvedAt=%v", ignored.Status, ignored.ResolvedAt)
	}

	// ignored exceptions leave the queue and cannot be resolved
	open, err = h.repo.GetOpenExceptions(tenantID)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 0 {
		t.Errorf("open=%#v", open)
	}
	if err := h.repo.ResolveException(tenantID, second.ID, Manual); err == nil {
		t.Error("expected error")
	}
}

func TestSeverities(t *testing.T) {
	cfg := reconciliationConfig()

	amounts := map[int64]Severity{
		0:       Low,
		999:     Low,
		1000:    Medium,
		9999:    Medium,
		10000:   High,
		99999:   High,
		100000:  Critical,
		-250000: Critical,
	}
	for amount, want := range amounts {
		if got := severityForAmount(cfg, amount); got != want {
			t.Errorf("amount %d: got %s", amount, got)
		}
	}

	if got := severityForStatusMismatch("completed", "failed"); got != Critical {
		t.Errorf("got %s", got)
	}
	if got := severityForStatusMismatch("pending", "completed"); got != High {
		t.Errorf("got %s", got)
	}
	if got := severityForStatusMismatch("pending", "failed"); got != Medium {
		t.Errorf("got %s", got)
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]string{
		"INITIATED":  "pending",
		"SCHEDULED":  "pending",
		"processing": "pending",
		"created":    "pending",
		"COMPLETED":  "completed",
		"reversed":   "returned",
		"RETURNED":   "returned",
		"canceled":   "cancelled",
		"CANCELLED":  "cancelled",
		"failed":     "failed",
	}
	for in, want := range cases {
		if got := normalizeStatus(in); got != want {
			t.Errorf("%s: got %s", in, got)
		}
	}
}

func TestExceptionValidation(t *testing.T) {
	if err := ExceptionType("transfer_status").Validate(); err != nil {
		t.Error(err)
	}
	if err := ExceptionType("other").Validate(); err == nil {
		t.Error("expected error")
	}

	if err := ExceptionStatus("investigating").Validate(); err != nil {
		t.Error(err)
	}
	if err := ExceptionStatus("").Validate(); err == nil {
		t.Error("expected error")
	}
}

func TestAutoResolvable(t *testing.T) {
	cfg := reconciliationConfig()

	ok := &Exception{Type: TransferStatus, LocalValue: "pending", ProviderValue: "completed", DiscrepancyCents: 0}
	if !autoResolvable(cfg, ok) {
		t.Error("expected auto-resolvable")
	}

	cases := []*Exception{
		{Type: AmountMismatch, LocalValue: "pending", ProviderValue: "completed"},
		{Type: TransferStatus, LocalValue: "completed", ProviderValue: "failed"},
		{Type: TransferStatus, LocalValue: "pending", ProviderValue: "completed", DiscrepancyCents: 101},
		{Type: TransferStatus, LocalValue: "pending", ProviderValue: "failed"},
	}
	for i := range cases {
		if autoResolvable(cfg, cases[i]) {
			t.Errorf("case %d should not auto-resolve", i)
		}
	}

	cfg.AutoResolve = false
	if autoResolvable(cfg, ok) {
		t.Error("disabled auto-resolve should never fire")
	}
}
