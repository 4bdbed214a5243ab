// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package transfers

import (
	"database/sql"
	"fmt"

	"github.com/raynmakr/bigfin/internal/contracts"
	"github.com/raynmakr/bigfin/internal/errcode"
	"github.com/raynmakr/bigfin/internal/ledger"
	"github.com/raynmakr/bigfin/pkg/id"
)

// StatusUpdate is a provider-reported transfer state change, regardless
// of whether it arrived by webhook or by reconciliation polling.
type StatusUpdate struct {
	ProviderRef    id.ProviderRef
	ProviderStatus string
}

// ProcessStatusUpdate applies a provider status to the record it
// references. Updates for unknown transfers or statuses already applied
// are acknowledged without effect, so webhook redelivery is safe.
func (o *Orchestrator) ProcessStatusUpdate(update StatusUpdate) error {
	disbursement, err := o.repo.GetDisbursementByProviderRef(update.ProviderRef)
	if err != nil {
		return errcode.Wrap(errcode.InternalError, err, "transfers: disbursement lookup")
	}
	if disbursement != nil {
		return o.applyDisbursementUpdate(disbursement, update.ProviderStatus)
	}

	repayment, err := o.repo.GetRepaymentByProviderRef(update.ProviderRef)
	if err != nil {
		return errcode.Wrap(errcode.InternalError, err, "transfers: repayment lookup")
	}
	if repayment != nil {
		return o.applyRepaymentUpdate(repayment, update.ProviderStatus)
	}

	o.logger.Log("transfers", fmt.Sprintf("status update for unknown transfer %s ignored", update.ProviderRef))
	statusUpdatesApplied.With("result", "unknown").Add(1)
	return nil
}

func (o *Orchestrator) applyDisbursementUpdate(disbursement *Disbursement, providerStatus string) error {
	status, availability, known := statusMapping(providerStatus, Disbursing)
	if !known {
		o.logger.Log("transfers", fmt.Sprintf("unknown provider status %q for disbursement %s", providerStatus, disbursement.ID))
		statusUpdatesApplied.With("result", "unknown").Add(1)
		return nil
	}

	if status == Completed {
		return o.settleDisbursement(disbursement)
	}
	if !CanTransition(disbursement.Availability, availability) {
		statusUpdatesApplied.With("result", "duplicate").Add(1)
		return nil
	}

	applied := false
	err := o.ledger.InTransaction(nil, func(tx *sql.Tx) error {
		var err error
		applied, err = markStatus(tx, "disbursements", "disbursement_id", disbursement.TenantID, string(disbursement.ID), status, availability, failureReason(status, providerStatus), o.now())
		return err
	})
	if err != nil {
		return err
	}
	if applied && status == Failed {
		o.releasePrefundHold(disbursement)
	}
	o.recordApplied(applied, Disbursing, string(disbursement.ID), string(disbursement.ProviderRef), status)
	return nil
}

// settleDisbursement completes the record, activates the contract, and
// posts the disbursement journal in one transaction. The hold policy
// decides whether the funds land HELD or AVAILABLE.
func (o *Orchestrator) settleDisbursement(disbursement *Disbursement) error {
	completedBefore, err := o.repo.CountCompletedDisbursements(disbursement.TenantID, disbursement.ContractID)
	if err != nil {
		return errcode.Wrap(errcode.InternalError, err, "transfers: completed count")
	}

	now := o.now()
	availability, releaseAt := o.holds.apply(disbursement.AmountCents, completedBefore == 0, now)

	journalRequest := ledger.DisbursementJournal(disbursement.ContractID, ledger.DisbursementSource(disbursement.Source), disbursement.AmountCents, disbursement.ExpressFeeCents, "orchestrator")

	applied := false
	err = o.ledger.InTransaction(journalRequest.AccountCodes(), func(tx *sql.Tx) error {
		var err error
		applied, err = markStatus(tx, "disbursements", "disbursement_id", disbursement.TenantID, string(disbursement.ID), Completed, availability, "", now)
		if err != nil || !applied {
			return err
		}
		if releaseAt != nil {
			if err := setHold(tx, disbursement.TenantID, disbursement.ID, *releaseAt); err != nil {
				return err
			}
		}
		if err := contracts.Activate(tx, disbursement.TenantID, disbursement.ContractID, now); err != nil {
			return err
		}
		_, err = o.ledger.PostJournal(tx, disbursement.TenantID, journalRequest)
		return err
	})
	if err != nil {
		return err
	}
	o.recordApplied(applied, Disbursing, string(disbursement.ID), string(disbursement.ProviderRef), Completed)
	return nil
}

func (o *Orchestrator) applyRepaymentUpdate(repayment *Repayment, providerStatus string) error {
	status, availability, known := statusMapping(providerStatus, Repaying)
	if !known {
		o.logger.Log("transfers", fmt.Sprintf("unknown provider status %q for repayment %s", providerStatus, repayment.ID))
		statusUpdatesApplied.With("result", "unknown").Add(1)
		return nil
	}

	switch status {
	case Completed:
		return o.settleRepayment(repayment)
	case Returned:
		if repayment.Status == Completed {
			return o.returnRepayment(repayment, providerStatus)
		}
	}
	if !CanTransition(repayment.Availability, availability) {
		statusUpdatesApplied.With("result", "duplicate").Add(1)
		return nil
	}

	applied := false
	err := o.ledger.InTransaction(nil, func(tx *sql.Tx) error {
		var err error
		applied, err = markStatus(tx, "repayments", "repayment_id", repayment.TenantID, string(repayment.ID), status, availability, failureReason(status, providerStatus), o.now())
		return err
	})
	if err != nil {
		return err
	}
	o.recordApplied(applied, Repaying, string(repayment.ID), string(repayment.ProviderRef), status)
	return nil
}

// settleRepayment completes the record, posts the repayment journal
// from the split fixed at initiation, and applies that split to the
// contract, flipping it to PAID_OFF when the balances reach zero.
func (o *Orchestrator) settleRepayment(repayment *Repayment) error {
	now := o.now()
	journalRequest := ledger.RepaymentJournal(repayment.ContractID, repayment.AppliedFeeCents, repayment.AppliedInterestCents, repayment.AppliedPrincipalCents, "orchestrator")

	applied := false
	err := o.ledger.InTransaction(journalRequest.AccountCodes(), func(tx *sql.Tx) error {
		var err error
		applied, err = markStatus(tx, "repayments", "repayment_id", repayment.TenantID, string(repayment.ID), Completed, AvailAvailable, "", now)
		if err != nil || !applied {
			return err
		}
		journal, err := o.ledger.PostJournal(tx, repayment.TenantID, journalRequest)
		if err != nil {
			return err
		}
		if err := setRepaymentJournal(tx, repayment.TenantID, repayment.ID, journal.ID); err != nil {
			return err
		}
		paidOff, err := contracts.ApplyRepayment(tx, repayment.TenantID, repayment.ContractID, contracts.Applied{
			FeeCents:       repayment.AppliedFeeCents,
			InterestCents:  repayment.AppliedInterestCents,
			PrincipalCents: repayment.AppliedPrincipalCents,
		}, now)
		if err != nil {
			return err
		}
		if paidOff {
			o.logger.Log("transfers", fmt.Sprintf("contract %s paid off by repayment %s", repayment.ContractID, repayment.ID))
		}
		return nil
	})
	if err != nil {
		return err
	}
	o.recordApplied(applied, Repaying, string(repayment.ID), string(repayment.ProviderRef), Completed)
	return nil
}

// returnRepayment handles a return arriving after settlement. In one
// transaction the record flips COMPLETED to RETURNED, the settlement
// journal is reversed, and the contract's receivable balances get the
// applied split back. A contract the repayment had paid off reopens.
func (o *Orchestrator) returnRepayment(repayment *Repayment, providerStatus string) error {
	now := o.now()

	var original *ledger.Journal
	var codes []string
	if repayment.JournalID != "" {
		journal, err := o.ledger.GetJournal(repayment.TenantID, repayment.JournalID)
		if err != nil {
			return err
		}
		if journal == nil {
			return errcode.New(errcode.InternalError, "transfers: settlement journal %s missing", repayment.JournalID)
		}
		original = journal
		codes = original.AccountCodes()
	}

	applied := false
	err := o.ledger.InTransaction(codes, func(tx *sql.Tx) error {
		var err error
		applied, err = markReturned(tx, repayment.TenantID, repayment.ID, fmt.Sprintf("provider reported %s", providerStatus), now)
		if err != nil || !applied {
			return err
		}
		if original == nil {
			return nil
		}
		if _, err := o.ledger.PostReversal(tx, repayment.TenantID, original, fmt.Sprintf("repayment %s returned", repayment.ID), "orchestrator"); err != nil {
			return err
		}
		return contracts.RestoreRepayment(tx, repayment.TenantID, repayment.ContractID, contracts.Applied{
			FeeCents:       repayment.AppliedFeeCents,
			InterestCents:  repayment.AppliedInterestCents,
			PrincipalCents: repayment.AppliedPrincipalCents,
		})
	})
	if err != nil {
		return err
	}
	o.recordApplied(applied, Repaying, string(repayment.ID), string(repayment.ProviderRef), Returned)
	return nil
}

func (o *Orchestrator) recordApplied(applied bool, direction Direction, recordID, providerRef string, status Status) {
	if !applied {
		statusUpdatesApplied.With("result", "duplicate").Add(1)
		return
	}
	statusUpdatesApplied.With("result", "applied").Add(1)
	o.publish(statusEvent{Direction: direction, RecordID: recordID, ProviderRef: providerRef, Status: string(status)})
}

func failureReason(status Status, providerStatus string) string {
	switch status {
	case Failed, Returned, Cancelled:
		return fmt.Sprintf("provider reported %s", providerStatus)
	}
	return ""
}
