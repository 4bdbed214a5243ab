// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package transfers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/raynmakr/bigfin/internal/config"
	"github.com/raynmakr/bigfin/internal/contracts"
	"github.com/raynmakr/bigfin/internal/errcode"
	"github.com/raynmakr/bigfin/internal/instruments"
	"github.com/raynmakr/bigfin/internal/ledger"
	"github.com/raynmakr/bigfin/internal/prefund"
	"github.com/raynmakr/bigfin/internal/provider"
	"github.com/raynmakr/bigfin/internal/routing"
	"github.com/raynmakr/bigfin/pkg/id"

	"github.com/go-kit/kit/log"
	kitprom "github.com/go-kit/kit/metrics/prometheus"
	stdprom "github.com/prometheus/client_golang/prometheus"
)

var (
	transfersInitiated = kitprom.NewCounterFrom(stdprom.CounterOpts{
		Name: "transfers_initiated",
		Help: "Count of transfers initiated by direction and rail",
	}, []string{"direction", "rail"})

	statusUpdatesApplied = kitprom.NewCounterFrom(stdprom.CounterOpts{
		Name: "transfer_status_updates_applied",
		Help: "Count of provider status updates applied by result",
	}, []string{"result"})
)

// EventPublisher receives serialized transfer status events. A nil
// publisher disables publication.
type EventPublisher interface {
	Publish(ctx context.Context, body []byte) error
}

// Orchestrator drives money movement end to end: routing, provider
// calls with rail fallback, idempotent initiation, and status ingestion
// with settlement posting.
type Orchestrator struct {
	logger log.Logger

	repo           Repository
	contractRepo   contracts.Repository
	instrumentRepo instruments.Repository
	prefundService *prefund.Service

	router *routing.Engine
	client provider.Client
	ledger *ledger.Engine

	events EventPublisher
	holds  holdPolicy

	now func() time.Time
}

func NewOrchestrator(
	logger log.Logger,
	availability config.Availability,
	repo Repository,
	contractRepo contracts.Repository,
	instrumentRepo instruments.Repository,
	prefundService *prefund.Service,
	router *routing.Engine,
	client provider.Client,
	ledgerEngine *ledger.Engine,
	events EventPublisher,
) *Orchestrator {
	return &Orchestrator{
		logger:         logger,
		repo:           repo,
		contractRepo:   contractRepo,
		instrumentRepo: instrumentRepo,
		prefundService: prefundService,
		router:         router,
		client:         client,
		ledger:         ledgerEngine,
		events:         events,
		holds:          holdPolicy{cfg: availability},
		now:            time.Now,
	}
}

// DisbursementRequest initiates a payout of a contract's principal.
type DisbursementRequest struct {
	ContractID              id.Contract   `json:"contractId"`
	DestinationInstrumentID id.Instrument `json:"destinationInstrumentId"`
	SourceInstrumentID      id.Instrument `json:"sourceInstrumentId,omitempty"`
	Speed                   routing.Speed `json:"speed"`
	Source                  Source        `json:"source"`

	// LenderCustomerID scopes the prefund fee waiver lookup and, for
	// PREFUND-sourced payouts, names the custody balance to earmark.
	// Empty skips the waiver and is rejected for PREFUND sources.
	LenderCustomerID id.Customer `json:"lenderCustomerId,omitempty"`

	IdempotencyKey string `json:"-"`
}

// InitiateDisbursement routes and submits a payout, trying each
// fallback rail until the provider accepts one.
func (o *Orchestrator) InitiateDisbursement(tenantID id.Tenant, req DisbursementRequest) (*Disbursement, *TransferResult, error) {
	contract, err := o.contractRepo.GetContract(tenantID, req.ContractID)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.InternalError, err, "transfers: contract lookup")
	}
	if contract == nil {
		return nil, nil, errcode.New(errcode.NotFound, "contract %s not found", req.ContractID)
	}
	if contract.Status != contracts.PendingDisbursement {
		return nil, nil, errcode.New(errcode.InvalidState, "contract %s is %s", req.ContractID, contract.Status)
	}
	if err := req.Source.Validate(); err != nil {
		return nil, nil, errcode.New(errcode.InvalidRequest, "%v", err)
	}

	source, destination, err := o.resolveInstruments(tenantID, req.SourceInstrumentID, req.DestinationInstrumentID)
	if err != nil {
		return nil, nil, err
	}

	var prefundAvailable *int64
	if req.LenderCustomerID != "" {
		available, ok, err := o.prefundService.AvailableBalance(tenantID, req.LenderCustomerID)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			prefundAvailable = &available
		}
	}

	decision, err := o.router.Route(routing.Request{
		Speed:                 req.Speed,
		Direction:             routing.Credit,
		AmountCents:           contract.PrincipalCents,
		Source:                routing.CapabilitiesFor(source),
		Destination:           routing.CapabilitiesFor(destination),
		PrefundAvailableCents: prefundAvailable,
	})
	if err != nil {
		return nil, nil, err
	}

	// Prefund-funded payouts earmark the lender's custody while the
	// transfer is in flight; the earmark stays consumed on settlement.
	if req.Source == FromPrefund {
		if req.LenderCustomerID == "" {
			return nil, nil, errcode.New(errcode.InvalidRequest, "prefund disbursements need a lenderCustomerId")
		}
		if _, err := o.prefundService.Hold(tenantID, req.LenderCustomerID, contract.PrincipalCents); err != nil {
			return nil, nil, err
		}
	}

	disbursement := &Disbursement{
		TenantID:        tenantID,
		ContractID:      contract.ID,
		AmountCents:     contract.PrincipalCents,
		ExpressFeeCents: decision.FeeCents,
		Source:          req.Source,
		IdempotencyKey:  req.IdempotencyKey,
	}
	if req.Source == FromPrefund {
		disbursement.LenderCustomerID = req.LenderCustomerID
	}
	if err := o.repo.CreateDisbursement(disbursement); err != nil {
		return nil, nil, errcode.Wrap(errcode.InternalError, err, "transfers: create disbursement")
	}

	result, err := o.submit(tenantID, Disbursing, string(disbursement.ID), disbursement.NetAmountCents, decision, source, destination, req.IdempotencyKey, map[string]string{
		"type":       string(Disbursing),
		"recordId":   string(disbursement.ID),
		"contractId": string(contract.ID),
	})
	if err != nil {
		o.releasePrefundHold(disbursement)
		return disbursement, nil, err
	}

	disbursement, _ = o.repo.GetDisbursement(tenantID, disbursement.ID)
	return disbursement, result, nil
}

// RepaymentRequest collects an installment from a borrower instrument.
type RepaymentRequest struct {
	ContractID         id.Contract   `json:"contractId"`
	AmountCents        int64         `json:"amountCents"`
	SourceInstrumentID id.Instrument `json:"sourceInstrumentId"`
	Speed              routing.Speed `json:"speed"`

	// ScheduledFor defers initiation; the activator picks the record up
	// when the date arrives.
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`

	IdempotencyKey string `json:"-"`
}

// InitiateRepayment splits the receipt through the waterfall, then
// routes and submits the collection.
func (o *Orchestrator) InitiateRepayment(tenantID id.Tenant, req RepaymentRequest) (*Repayment, *TransferResult, error) {
	contract, err := o.contractRepo.GetContract(tenantID, req.ContractID)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.InternalError, err, "transfers: contract lookup")
	}
	if contract == nil {
		return nil, nil, errcode.New(errcode.NotFound, "contract %s not found", req.ContractID)
	}
	if contract.Status != contracts.Active {
		return nil, nil, errcode.New(errcode.InvalidState, "contract %s is %s", req.ContractID, contract.Status)
	}

	applied, err := contracts.ApplyWaterfall(contract, req.AmountCents)
	if err != nil {
		return nil, nil, err
	}

	repayment := &Repayment{
		TenantID:              tenantID,
		ContractID:            contract.ID,
		AmountCents:           req.AmountCents,
		AppliedFeeCents:       applied.FeeCents,
		AppliedInterestCents:  applied.InterestCents,
		AppliedPrincipalCents: applied.PrincipalCents,
		IdempotencyKey:        req.IdempotencyKey,
	}
	if req.ScheduledFor != nil {
		repayment.Status = Scheduled
		repayment.Availability = AvailInitiated
		repayment.ScheduledFor = baseTime(req.ScheduledFor)
		if err := o.repo.CreateRepayment(repayment); err != nil {
			return nil, nil, errcode.Wrap(errcode.InternalError, err, "transfers: schedule repayment")
		}
		return repayment, nil, nil
	}

	source, _, err := o.resolveInstruments(tenantID, req.SourceInstrumentID, "")
	if err != nil {
		return nil, nil, err
	}

	decision, err := o.router.Route(routing.Request{
		Speed:       req.Speed,
		Direction:   routing.Debit,
		AmountCents: req.AmountCents,
		Source:      routing.CapabilitiesFor(source),
	})
	if err != nil {
		return nil, nil, err
	}

	if err := o.repo.CreateRepayment(repayment); err != nil {
		return nil, nil, errcode.Wrap(errcode.InternalError, err, "transfers: create repayment")
	}

	result, err := o.submit(tenantID, Repaying, string(repayment.ID), req.AmountCents, decision, source, source, req.IdempotencyKey, map[string]string{
		"type":       string(Repaying),
		"recordId":   string(repayment.ID),
		"contractId": string(contract.ID),
	})
	if err != nil {
		return repayment, nil, err
	}

	repayment, _ = o.repo.GetRepayment(tenantID, repayment.ID)
	return repayment, result, nil
}

// submit walks the primary rail and its fallbacks until the provider
// accepts a transfer, stamping the record on success or failing it with
// every attempted rail on exhaustion.
func (o *Orchestrator) submit(tenantID id.Tenant, direction Direction, recordID string, amountCents int64, decision *routing.Decision, source, destination *instruments.FundingInstrument, idempotencyKey string, metadata map[string]string) (*TransferResult, error) {
	table, idColumn := "disbursements", "disbursement_id"
	if direction == Repaying {
		table, idColumn = "repayments", "repayment_id"
	}

	// Orchestrator and provider idempotency domains stay independent.
	forwardedKey := ""
	if idempotencyKey != "" {
		forwardedKey = idempotencyKey + "-transfer"
	}

	rails := append([]routing.Rail{decision.Rail}, decision.FallbackRails...)
	var attempted []string
	var lastErr error
	seen := make(map[routing.Rail]bool)
	for _, rail := range rails {
		if seen[rail] {
			continue
		}
		seen[rail] = true
		attempted = append(attempted, string(rail))

		sourcePM, destPM, err := o.resolvePaymentMethods(rail, source, destination)
		if err != nil {
			lastErr = err
			o.logger.Log("transfers", fmt.Sprintf("rail %s: %v", rail, err))
			continue
		}

		transfer, err := o.client.CreateTransfer(context.Background(), provider.CreateTransferRequest{
			SourcePaymentMethodID:      sourcePM,
			DestinationPaymentMethodID: destPM,
			AmountCents:                amountCents,
			Currency:                   "USD",
			Description:                fmt.Sprintf("%s %s", direction, recordID),
			Metadata:                   metadata,
			IdempotencyKey:             forwardedKey,
		})
		if err != nil {
			lastErr = err
			o.logger.Log("transfers", fmt.Sprintf("rail %s rejected: %v", rail, err))
			continue
		}

		if err := o.ledger.InTransaction(nil, func(tx *sql.Tx) error {
			return attachProvider(tx, table, idColumn, tenantID, recordID, transfer.ID, rail, o.now())
		}); err != nil {
			return nil, err
		}

		transfersInitiated.With("direction", string(direction), "rail", string(rail)).Add(1)
		o.publish(statusEvent{Direction: direction, RecordID: recordID, ProviderRef: transfer.ID, Status: string(Pending)})

		return &TransferResult{
			ProviderRef:      id.ProviderRef(transfer.ID),
			Rail:             rail,
			Status:           "processing",
			FeeCents:         decision.FeeCents,
			EstimatedArrival: decision.EstimatedArrival,
		}, nil
	}

	reason := fmt.Sprintf("all rails failed: %s", strings.Join(attempted, ", "))
	if err := o.ledger.InTransaction(nil, func(tx *sql.Tx) error {
		_, err := markStatus(tx, table, idColumn, tenantID, recordID, Failed, AvailFailed, reason, o.now())
		return err
	}); err != nil {
		return nil, err
	}
	return nil, errcode.Wrap(errcode.ProviderError, lastErr, "%s", reason)
}

// resolvePaymentMethods picks the payment-method ids both sides use for
// a rail. Credit-push rails have no rail-specific source type; the
// funding debit methods serve.
func (o *Orchestrator) resolvePaymentMethods(rail routing.Rail, source, destination *instruments.FundingInstrument) (string, string, error) {
	mapping, exists := railPaymentMethods[rail]
	if !exists {
		return "", "", errcode.New(errcode.InvalidRequest, "unknown rail %s", rail)
	}
	sourceTypes := mapping.source
	if len(sourceTypes) == 0 {
		sourceTypes = []string{"ach-debit-fund", "ach-debit-collect"}
	}

	sourcePM, err := o.findPaymentMethod(source, sourceTypes)
	if err != nil {
		return "", "", err
	}
	destPM, err := o.findPaymentMethod(destination, mapping.destination)
	if err != nil {
		return "", "", err
	}
	return sourcePM, destPM, nil
}

func (o *Orchestrator) findPaymentMethod(instrument *instruments.FundingInstrument, types []string) (string, error) {
	if instrument == nil || instrument.ProviderRef == "" {
		return "", errcode.New(errcode.InstrumentInvalid, "instrument has no provider reference")
	}
	methods, err := o.client.ListPaymentMethods(context.Background(), string(instrument.ProviderRef))
	if err != nil {
		return "", err
	}
	for _, want := range types {
		for i := range methods {
			if methods[i].Type == want {
				return methods[i].ID, nil
			}
		}
	}
	return "", errcode.New(errcode.InstrumentInvalid, "no payment method of type %s", strings.Join(types, "|"))
}

func (o *Orchestrator) resolveInstruments(tenantID id.Tenant, sourceID, destinationID id.Instrument) (*instruments.FundingInstrument, *instruments.FundingInstrument, error) {
	lookup := func(instrumentID id.Instrument) (*instruments.FundingInstrument, error) {
		if instrumentID == "" {
			return nil, nil
		}
		instrument, err := o.instrumentRepo.GetInstrument(tenantID, instrumentID)
		if err != nil {
			return nil, errcode.Wrap(errcode.InternalError, err, "transfers: instrument lookup")
		}
		if instrument == nil {
			return nil, errcode.New(errcode.NotFound, "instrument %s not found", instrumentID)
		}
		if !instrument.Usable() {
			return nil, errcode.New(errcode.InstrumentInvalid, "instrument %s is %s", instrumentID, instrument.Status)
		}
		return instrument, nil
	}

	source, err := lookup(sourceID)
	if err != nil {
		return nil, nil, err
	}
	destination, err := lookup(destinationID)
	if err != nil {
		return nil, nil, err
	}
	return source, destination, nil
}

// Get returns the caller-facing view of a transfer by provider id.
func (o *Orchestrator) Get(tenantID id.Tenant, providerRef id.ProviderRef) (*TransferResult, error) {
	if disbursement, err := o.repo.GetDisbursementByProviderRef(providerRef); err != nil {
		return nil, err
	} else if disbursement != nil && disbursement.TenantID == tenantID {
		return &TransferResult{
			ProviderRef: providerRef,
			Rail:        disbursement.Rail,
			Status:      strings.ToLower(string(disbursement.Status)),
			FeeCents:    disbursement.ExpressFeeCents,
		}, nil
	}
	if repayment, err := o.repo.GetRepaymentByProviderRef(providerRef); err != nil {
		return nil, err
	} else if repayment != nil && repayment.TenantID == tenantID {
		return &TransferResult{
			ProviderRef: providerRef,
			Rail:        repayment.Rail,
			Status:      strings.ToLower(string(repayment.Status)),
		}, nil
	}
	return nil, nil
}

// Cancel asks the provider to cancel and marks the local record.
func (o *Orchestrator) Cancel(tenantID id.Tenant, providerRef id.ProviderRef) error {
	if err := o.client.Cancel(context.Background(), string(providerRef)); err != nil {
		return err
	}
	return o.ProcessStatusUpdate(StatusUpdate{ProviderRef: providerRef, ProviderStatus: "canceled"})
}

// ActivateDueRepayments flips SCHEDULED repayments whose date arrived
// to INITIATED and announces them on the event stream for collection.
func (o *Orchestrator) ActivateDueRepayments(now time.Time) (int, error) {
	due, err := o.repo.GetDueScheduledRepayments(now)
	if err != nil {
		return 0, err
	}

	var activated int
	for i := range due {
		repayment := due[i]
		err := o.ledger.InTransaction(nil, func(tx *sql.Tx) error {
			applied, err := markStatus(tx, "repayments", "repayment_id", repayment.TenantID, string(repayment.ID), Initiated, AvailInitiated, "", now)
			if err != nil {
				return err
			}
			if !applied {
				return nil
			}
			activated++
			return nil
		})
		if err != nil {
			return activated, err
		}
		o.publish(statusEvent{Direction: Repaying, RecordID: string(repayment.ID), Status: string(Initiated)})
	}
	return activated, nil
}

// ReleaseHolds moves held disbursements past their release time to
// AVAILABLE.
func (o *Orchestrator) ReleaseHolds(now time.Time) (int64, error) {
	return o.repo.ReleaseExpiredHolds(now)
}

// releasePrefundHold returns a failed prefund-funded disbursement's
// earmark to the lender's available balance. Release errors only log;
// the trail keeps the earmark until an operator corrects it.
func (o *Orchestrator) releasePrefundHold(disbursement *Disbursement) {
	if disbursement.Source != FromPrefund || disbursement.LenderCustomerID == "" {
		return
	}
	if _, err := o.prefundService.Release(disbursement.TenantID, disbursement.LenderCustomerID, disbursement.AmountCents); err != nil {
		o.logger.Log("transfers", fmt.Sprintf("error releasing prefund earmark for disbursement %s: %v", disbursement.ID, err))
	}
}

type statusEvent struct {
	Direction   Direction `json:"direction"`
	RecordID    string    `json:"recordId"`
	ProviderRef string    `json:"providerRef,omitempty"`
	Status      string    `json:"status"`
}

func (o *Orchestrator) publish(event statusEvent) {
	if o.events == nil {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := o.events.Publish(context.Background(), body); err != nil {
		o.logger.Log("transfers", fmt.Sprintf("error publishing status event: %v", err))
	}
}
