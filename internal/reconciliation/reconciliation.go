// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package reconciliation compares local transfer records, ledger
// totals, and prefund trails against the payment provider and records
// an exception for every discrepancy found. A narrow subset of
// exceptions is corrected automatically; the rest wait for an operator.
package reconciliation

import (
	"fmt"
	"strings"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/internal/config"
	"github.com/raynmakr/bigfin/pkg/id"
)

type ExceptionType string

const (
	// TransferMissing: the provider lists a transfer of ours that
	// matches no local record.
	TransferMissing ExceptionType = "transfer_missing"

	// TransferOrphaned: we initiated a transfer over a day ago and the
	// provider has no record of it.
	TransferOrphaned ExceptionType = "transfer_orphaned"

	// TransferStatus: local and provider status disagree after
	// normalization.
	TransferStatus ExceptionType = "transfer_status"

	// AmountMismatch: same transfer, different amounts.
	AmountMismatch ExceptionType = "amount_mismatch"

	// LedgerImbalance: a tenant's trial balance does not balance.
	LedgerImbalance ExceptionType = "ledger_imbalance"

	// PrefundMismatch: a customer's prefund trail folds to a different
	// available balance than the latest snapshot row claims.
	PrefundMismatch ExceptionType = "prefund_mismatch"
)

func (t ExceptionType) Validate() error {
	switch t {
	case TransferMissing, TransferOrphaned, TransferStatus, AmountMismatch, LedgerImbalance, PrefundMismatch:
		return nil
	default:
		return fmt.Errorf("ExceptionType(%s) is invalid", t)
	}
}

type Severity string

const (
	Low      Severity = "low"
	Medium   Severity = "medium"
	High     Severity = "high"
	Critical Severity = "critical"
)

type ExceptionStatus string

const (
	Open          ExceptionStatus = "open"
	Investigating ExceptionStatus = "investigating"
	Resolved      ExceptionStatus = "resolved"
	Ignored       ExceptionStatus = "ignored"
)

func (s ExceptionStatus) Validate() error {
	switch s {
	case Open, Investigating, Resolved, Ignored:
		return nil
	default:
		return fmt.Errorf("ExceptionStatus(%s) is invalid", s)
	}
}

type ResolutionType string

const (
	AutoCorrected ResolutionType = "auto_corrected"
	Manual        ResolutionType = "manual"
)

// Exception is one recorded discrepancy.
type Exception struct {
	ID               string          `json:"id"`
	TenantID         id.Tenant       `json:"-"`
	RunID            string          `json:"runId"`
	Type             ExceptionType   `json:"type"`
	Severity         Severity        `json:"severity"`
	Status           ExceptionStatus `json:"status"`
	LocalRecordType  string          `json:"localRecordType,omitempty"`
	LocalRecordID    string          `json:"localRecordId,omitempty"`
	ProviderRecordID string          `json:"providerRecordId,omitempty"`
	LocalValue       string          `json:"localValue,omitempty"`
	ProviderValue    string          `json:"providerValue,omitempty"`
	DiscrepancyCents int64           `json:"discrepancyCents"`
	Description      string          `json:"description"`
	ResolutionType   ResolutionType  `json:"resolutionType,omitempty"`
	DetectedAt       base.Time       `json:"detectedAt"`
	ResolvedAt       *base.Time      `json:"resolvedAt,omitempty"`
}

type RunStatus string

const (
	Running      RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one reconciliation pass over a tenant and window.
type Run struct {
	ID           string     `json:"id"`
	TenantID     id.Tenant  `json:"-"`
	Status       RunStatus  `json:"status"`
	PeriodStart  base.Time  `json:"periodStart"`
	PeriodEnd    base.Time  `json:"periodEnd"`
	Summary      string     `json:"summary,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	StartedAt    base.Time  `json:"startedAt"`
	CompletedAt  *base.Time `json:"completedAt,omitempty"`
}

// normalizeStatus folds local and provider status vocabularies into one
// comparable set: pending, completed, failed, returned, cancelled.
func normalizeStatus(s string) string {
	switch strings.ToLower(s) {
	case "scheduled", "initiated", "created", "pending", "processing":
		return "pending"
	case "completed":
		return "completed"
	case "failed":
		return "failed"
	case "returned", "reversed":
		return "returned"
	case "canceled", "cancelled":
		return "cancelled"
	}
	return strings.ToLower(s)
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// severityForAmount bands a discrepancy amount. The upper two bands
// come from configuration so operators can tune alert volume.
func severityForAmount(cfg config.Reconciliation, discrepancyCents int64) Severity {
	discrepancyCents = abs(discrepancyCents)
	switch {
	case discrepancyCents < 1000:
		return Low
	case discrepancyCents < cfg.HighThresholdCents:
		return Medium
	case discrepancyCents < cfg.CriticalThresholdCents:
		return High
	default:
		return Critical
	}
}

// severityForStatusMismatch classifies a status disagreement. Money we
// believe settled but the provider failed is the worst case; the
// provider being ahead of us is recoverable.
func severityForStatusMismatch(local, provider string) Severity {
	switch {
	case local == "completed" && provider == "failed":
		return Critical
	case local == "pending" && provider == "completed":
		return High
	default:
		return Medium
	}
}

// autoResolvable reports whether an exception fits the narrow safe
// subset of automatic fixes: the provider settled a transfer we still
// have pending, and the discrepancy is tiny.
func autoResolvable(cfg config.Reconciliation, e *Exception) bool {
	if !cfg.AutoResolve {
		return false
	}
	if e.Type != TransferStatus {
		return false
	}
	if abs(e.DiscrepancyCents) > cfg.AutoResolveThresholdCents {
		return false
	}
	return normalizeStatus(e.LocalValue) == "pending" && normalizeStatus(e.ProviderValue) == "completed"
}
