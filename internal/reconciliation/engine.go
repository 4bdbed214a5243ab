// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package reconciliation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/internal/config"
	"github.com/raynmakr/bigfin/internal/errcode"
	"github.com/raynmakr/bigfin/internal/ledger"
	"github.com/raynmakr/bigfin/internal/prefund"
	"github.com/raynmakr/bigfin/internal/provider"
	"github.com/raynmakr/bigfin/internal/transfers"
	"github.com/raynmakr/bigfin/pkg/id"

	"github.com/go-kit/kit/log"
	kitprom "github.com/go-kit/kit/metrics/prometheus"
	stdprom "github.com/prometheus/client_golang/prometheus"
)

// reconciliationWindow is how far back each run looks.
const reconciliationWindow = 7 * 24 * time.Hour

// orphanAge is how old a local record must be before its absence from
// the provider listing becomes an exception; younger ones may only be
// listing lag.
const orphanAge = 24 * time.Hour

var (
	exceptionsFound = kitprom.NewCounterFrom(stdprom.CounterOpts{
		Name: "reconciliation_exceptions_found",
		Help: "Count of reconciliation exceptions by type and severity",
	}, []string{"type", "severity"})

	runsCompleted = kitprom.NewCounterFrom(stdprom.CounterOpts{
		Name: "reconciliation_runs_completed",
		Help: "Count of reconciliation runs by final status",
	}, []string{"status"})
)

// StatusApplier applies a provider status to the transfer it belongs
// to; the transfers orchestrator satisfies this.
type StatusApplier interface {
	ProcessStatusUpdate(update transfers.StatusUpdate) error
}

// Alerter receives critical exception notifications.
type Alerter interface {
	Critical(subject, body string) error
}

type Engine struct {
	logger log.Logger
	cfg    config.Reconciliation

	repo         Repository
	transferRepo transfers.Repository
	prefundRepo  prefund.Repository
	ledger       *ledger.Engine
	client       provider.Client

	applier StatusApplier
	alerter Alerter

	now func() time.Time
}

func NewEngine(
	logger log.Logger,
	cfg config.Reconciliation,
	repo Repository,
	transferRepo transfers.Repository,
	prefundRepo prefund.Repository,
	ledgerEngine *ledger.Engine,
	client provider.Client,
	applier StatusApplier,
	alerter Alerter,
) *Engine {
	return &Engine{
		logger:       logger,
		cfg:          cfg,
		repo:         repo,
		transferRepo: transferRepo,
		prefundRepo:  prefundRepo,
		ledger:       ledgerEngine,
		client:       client,
		applier:      applier,
		alerter:      alerter,
		now:          time.Now,
	}
}

// runSections names the sub-procedures a RunRequest may select.
var runSections = map[string]bool{
	"disbursements": true,
	"repayments":    true,
	"ledger":        true,
	"prefund":       true,
}

// RunRequest tunes one reconciliation pass. The zero value runs every
// sub-procedure over the trailing default window with writes enabled.
type RunRequest struct {
	PeriodStart *time.Time `json:"periodStart,omitempty"`
	PeriodEnd   *time.Time `json:"periodEnd,omitempty"`

	// Types limits the run to the named sub-procedures: disbursements,
	// repayments, ledger, prefund. Empty runs all four.
	Types []string `json:"types,omitempty"`

	// DryRun detects and records exceptions but never auto-resolves.
	DryRun bool `json:"dryRun,omitempty"`
}

func (req RunRequest) sections() (map[string]bool, error) {
	if len(req.Types) == 0 {
		return runSections, nil
	}
	out := make(map[string]bool)
	for i := range req.Types {
		if !runSections[req.Types[i]] {
			return nil, errcode.New(errcode.InvalidRequest, "unknown reconciliation type %q", req.Types[i])
		}
		out[req.Types[i]] = true
	}
	return out, nil
}

func (req RunRequest) period(now time.Time) (time.Time, time.Time, error) {
	end := now
	if req.PeriodEnd != nil {
		end = *req.PeriodEnd
	}
	start := end.Add(-reconciliationWindow)
	if req.PeriodStart != nil {
		start = *req.PeriodStart
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, errcode.New(errcode.InvalidRequest, "period start %s is not before end %s", start, end)
	}
	return start, end, nil
}

// Run reconciles one tenant over the requested period and persists the
// run with every exception found. Failures inside the comparison mark
// the run failed rather than returning a half-written run.
func (e *Engine) Run(tenantID id.Tenant, req RunRequest) (*Run, error) {
	sections, err := req.sections()
	if err != nil {
		return nil, err
	}
	start, end, err := req.period(e.now())
	if err != nil {
		return nil, err
	}

	run := &Run{
		TenantID:    tenantID,
		PeriodStart: base.NewTime(start),
		PeriodEnd:   base.NewTime(end),
	}
	if err := e.repo.CreateRun(run); err != nil {
		return nil, errcode.Wrap(errcode.InternalError, err, "reconciliation: create run")
	}

	exceptions, err := e.compare(tenantID, run, sections)
	if err != nil {
		e.repo.FinishRun(tenantID, run.ID, RunFailed, "", err.Error())
		runsCompleted.With("status", string(RunFailed)).Add(1)
		return nil, err
	}

	var autoResolved, critical int
	for i := range exceptions {
		exception := exceptions[i]
		if !req.DryRun && e.tryAutoResolve(exception) {
			autoResolved++
		}
		if err := e.repo.CreateException(exception); err != nil {
			e.repo.FinishRun(tenantID, run.ID, RunFailed, "", err.Error())
			runsCompleted.With("status", string(RunFailed)).Add(1)
			return nil, errcode.Wrap(errcode.InternalError, err, "reconciliation: create exception")
		}
		exceptionsFound.With("type", string(exception.Type), "severity", string(exception.Severity)).Add(1)
		if exception.Severity == Critical && exception.Status == Open {
			critical++
			e.alert(tenantID, exception)
		}
	}

	summary, _ := json.Marshal(map[string]interface{}{
		"exceptions":   len(exceptions),
		"autoResolved": autoResolved,
		"critical":     critical,
		"dryRun":       req.DryRun,
	})
	if err := e.repo.FinishRun(tenantID, run.ID, RunCompleted, string(summary), ""); err != nil {
		return nil, err
	}
	runsCompleted.With("status", string(RunCompleted)).Add(1)

	e.logger.Log("reconciliation", fmt.Sprintf("run %s finished: %d exceptions, %d auto-resolved, %d critical", run.ID, len(exceptions), autoResolved, critical))
	return e.repo.GetRun(tenantID, run.ID)
}

func (e *Engine) compare(tenantID id.Tenant, run *Run, sections map[string]bool) ([]*Exception, error) {
	var out []*Exception

	if sections["disbursements"] || sections["repayments"] {
		window := provider.Window{Start: run.PeriodStart.Time, End: run.PeriodEnd.Time}
		remote, err := e.client.ListTransfers(context.Background(), window)
		if err != nil {
			return nil, errcode.Wrap(errcode.ProviderError, err, "reconciliation: list transfers")
		}
		remoteByID := make(map[string]*provider.Transfer, len(remote))
		for i := range remote {
			remoteByID[remote[i].ID] = remote[i]
		}
		matched := make(map[string]bool)

		if sections["disbursements"] {
			disbursements, err := e.transferRepo.GetDisbursementsInitiatedBetween(tenantID, window.Start, window.End)
			if err != nil {
				return nil, err
			}
			for i := range disbursements {
				d := disbursements[i]
				out = append(out, e.compareTransfer(run, "disbursement", string(d.ID), string(d.ProviderRef), string(d.Status), d.NetAmountCents, d.InitiatedAt, remoteByID, matched)...)
			}
		}

		if sections["repayments"] {
			repayments, err := e.transferRepo.GetRepaymentsInitiatedBetween(tenantID, window.Start, window.End)
			if err != nil {
				return nil, err
			}
			for i := range repayments {
				r := repayments[i]
				out = append(out, e.compareTransfer(run, "repayment", string(r.ID), string(r.ProviderRef), string(r.Status), r.AmountCents, r.InitiatedAt, remoteByID, matched)...)
			}
		}

		missing, err := e.findMissing(run, remote, matched, sections)
		if err != nil {
			return nil, err
		}
		out = append(out, missing...)
	}

	if sections["ledger"] {
		imbalance, err := e.checkLedger(run)
		if err != nil {
			return nil, err
		}
		out = append(out, imbalance...)
	}

	if sections["prefund"] {
		mismatches, err := e.checkPrefund(run)
		if err != nil {
			return nil, err
		}
		out = append(out, mismatches...)
	}

	return out, nil
}

// compareTransfer checks one local record against the provider listing:
// presence, then status, then amount. A status disagreement hides any
// amount disagreement until an operator settles which side is right.
func (e *Engine) compareTransfer(run *Run, recordType, recordID, providerRef, localStatus string, localAmountCents int64, initiatedAt *base.Time, remoteByID map[string]*provider.Transfer, matched map[string]bool) []*Exception {
	remote, exists := remoteByID[providerRef]
	if !exists {
		if initiatedAt == nil || initiatedAt.After(e.now().Add(-orphanAge)) {
			return nil
		}
		return []*Exception{{
			TenantID:         run.TenantID,
			RunID:            run.ID,
			Type:             TransferOrphaned,
			Severity:         severityForAmount(e.cfg, localAmountCents),
			LocalRecordType:  recordType,
			LocalRecordID:    recordID,
			LocalValue:       localStatus,
			DiscrepancyCents: localAmountCents,
			Description:      fmt.Sprintf("%s %s (%s) not found at provider after %s", recordType, recordID, providerRef, orphanAge),
		}}
	}
	matched[providerRef] = true

	local, prov := normalizeStatus(localStatus), normalizeStatus(remote.Status)
	if local != prov {
		return []*Exception{{
			TenantID:         run.TenantID,
			RunID:            run.ID,
			Type:             TransferStatus,
			Severity:         severityForStatusMismatch(local, prov),
			LocalRecordType:  recordType,
			LocalRecordID:    recordID,
			ProviderRecordID: providerRef,
			LocalValue:       local,
			ProviderValue:    prov,
			DiscrepancyCents: abs(localAmountCents - remote.AmountCents),
			Description:      fmt.Sprintf("%s %s status differs: local %s, provider %s", recordType, recordID, local, prov),
		}}
	}

	if remote.AmountCents != localAmountCents {
		return []*Exception{{
			TenantID:         run.TenantID,
			RunID:            run.ID,
			Type:             AmountMismatch,
			Severity:         severityForAmount(e.cfg, localAmountCents-remote.AmountCents),
			LocalRecordType:  recordType,
			LocalRecordID:    recordID,
			ProviderRecordID: providerRef,
			LocalValue:       fmt.Sprintf("%d", localAmountCents),
			ProviderValue:    fmt.Sprintf("%d", remote.AmountCents),
			DiscrepancyCents: abs(localAmountCents - remote.AmountCents),
			Description:      fmt.Sprintf("%s %s amount differs: local %d, provider %d", recordType, recordID, localAmountCents, remote.AmountCents),
		}}
	}
	return nil
}

// findMissing flags unmatched provider transfers carrying our record
// metadata with no local record behind them. Lookups by provider
// reference cover records initiated before the window opened; entries
// with foreign or absent metadata belong to other systems.
func (e *Engine) findMissing(run *Run, remote []*provider.Transfer, matched map[string]bool, sections map[string]bool) ([]*Exception, error) {
	var out []*Exception
	for i := range remote {
		transfer := remote[i]
		recordType := transfer.Metadata["type"]
		if matched[transfer.ID] || (recordType != "disbursement" && recordType != "repayment") {
			continue
		}
		if !sections[recordType+"s"] {
			continue
		}
		disbursement, err := e.transferRepo.GetDisbursementByProviderRef(id.ProviderRef(transfer.ID))
		if err != nil {
			return nil, err
		}
		if disbursement != nil {
			continue
		}
		repayment, err := e.transferRepo.GetRepaymentByProviderRef(id.ProviderRef(transfer.ID))
		if err != nil {
			return nil, err
		}
		if repayment != nil {
			continue
		}

		out = append(out, &Exception{
			TenantID:         run.TenantID,
			RunID:            run.ID,
			Type:             TransferMissing,
			Severity:         severityForAmount(e.cfg, transfer.AmountCents),
			LocalRecordType:  recordType,
			ProviderRecordID: transfer.ID,
			ProviderValue:    normalizeStatus(transfer.Status),
			DiscrepancyCents: transfer.AmountCents,
			Description:      fmt.Sprintf("provider %s transfer %s has no local record", recordType, transfer.ID),
		})
	}
	return out, nil
}

// checkLedger verifies the tenant's trial balance. An imbalance means
// an invariant broke; always critical.
func (e *Engine) checkLedger(run *Run) ([]*Exception, error) {
	tb, err := e.ledger.GetTrialBalance(run.TenantID)
	if err != nil {
		return nil, err
	}
	if tb.TotalDebits == tb.TotalCredits {
		return nil, nil
	}
	diff := abs(tb.TotalDebits - tb.TotalCredits)
	return []*Exception{{
		TenantID:         run.TenantID,
		RunID:            run.ID,
		Type:             LedgerImbalance,
		Severity:         Critical,
		LocalRecordType:  "ledger",
		LocalValue:       fmt.Sprintf("%d", tb.TotalDebits),
		ProviderValue:    fmt.Sprintf("%d", tb.TotalCredits),
		DiscrepancyCents: diff,
		Description:      fmt.Sprintf("trial balance out of balance by %d cents", diff),
	}}, nil
}

// checkPrefund refolds each customer's prefund trail and compares it
// against the latest snapshot row's available balance.
func (e *Engine) checkPrefund(run *Run) ([]*Exception, error) {
	customers, err := e.prefundRepo.CustomersWithTransactions(run.TenantID)
	if err != nil {
		return nil, err
	}

	var out []*Exception
	for i := range customers {
		latest, err := e.prefundRepo.LatestCompleted(run.TenantID, customers[i])
		if err != nil {
			return nil, err
		}
		if latest == nil {
			continue
		}
		trail, err := e.prefundRepo.GetCustomerTransactions(run.TenantID, customers[i])
		if err != nil {
			return nil, err
		}
		folded := prefund.FoldAvailable(trail)
		if folded == latest.AvailableAfterCents {
			continue
		}
		diff := abs(latest.AvailableAfterCents - folded)
		out = append(out, &Exception{
			TenantID:         run.TenantID,
			RunID:            run.ID,
			Type:             PrefundMismatch,
			Severity:         severityForAmount(e.cfg, diff),
			LocalRecordType:  "prefund",
			LocalRecordID:    string(customers[i]),
			LocalValue:       fmt.Sprintf("%d", latest.AvailableAfterCents),
			ProviderValue:    fmt.Sprintf("%d", folded),
			DiscrepancyCents: diff,
			Description:      fmt.Sprintf("customer %s prefund trail folds to %d but snapshot says %d", customers[i], folded, latest.AvailableAfterCents),
		})
	}
	return out, nil
}

// tryAutoResolve applies the provider's settled status to a pending
// local transfer when the exception is in the safe subset, marking the
// exception resolved before it is persisted.
func (e *Engine) tryAutoResolve(exception *Exception) bool {
	if e.applier == nil || !autoResolvable(e.cfg, exception) {
		return false
	}
	err := e.applier.ProcessStatusUpdate(transfers.StatusUpdate{
		ProviderRef:    id.ProviderRef(exception.ProviderRecordID),
		ProviderStatus: "completed",
	})
	if err != nil {
		e.logger.Log("reconciliation", fmt.Sprintf("auto-resolve of %s failed: %v", exception.ProviderRecordID, err))
		return false
	}

	now := base.Now()
	exception.Status = Resolved
	exception.ResolutionType = AutoCorrected
	exception.ResolvedAt = &now
	return true
}

func (e *Engine) alert(tenantID id.Tenant, exception *Exception) {
	if e.alerter == nil {
		return
	}
	subject := fmt.Sprintf("critical reconciliation exception (%s)", exception.Type)
	body := fmt.Sprintf("tenant=%s type=%s discrepancy=%d\n%s", tenantID, exception.Type, exception.DiscrepancyCents, exception.Description)
	if err := e.alerter.Critical(subject, body); err != nil {
		e.logger.Log("reconciliation", fmt.Sprintf("error sending critical alert: %v", err))
	}
}
