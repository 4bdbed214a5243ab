// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package provider defines the PaymentProvider port the transfer
// orchestrator and reconciliation engine call, plus the HTTP client and
// deterministic sandbox implementations of it.
package provider

import (
	"context"
	"time"
)

// Transfer is a provider-side money movement record.
type Transfer struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	AmountCents int64             `json:"amountCents"`
	Currency    string            `json:"currency"`
	CreatedAt   time.Time         `json:"createdAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// PaymentMethod is one way a provider account can send or receive.
type PaymentMethod struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// CreateTransferRequest asks the provider to move money between two
// payment methods. IdempotencyKey makes retries safe on the provider
// side.
type CreateTransferRequest struct {
	SourcePaymentMethodID      string            `json:"sourcePaymentMethodId"`
	DestinationPaymentMethodID string            `json:"destinationPaymentMethodId"`
	AmountCents                int64             `json:"amountCents"`
	Currency                   string            `json:"currency"`
	Description                string            `json:"description"`
	Metadata                   map[string]string `json:"metadata,omitempty"`
	IdempotencyKey             string            `json:"-"`
}

// Window bounds a ListTransfers query.
type Window struct {
	Start time.Time
	End   time.Time
}

// Client is the PaymentProvider port.
type Client interface {
	Ping() error

	CreateTransfer(ctx context.Context, req CreateTransferRequest) (*Transfer, error)
	ListTransfers(ctx context.Context, window Window) ([]*Transfer, error)
	ListPaymentMethods(ctx context.Context, accountRef string) ([]*PaymentMethod, error)
	Cancel(ctx context.Context, providerID string) error
}
