// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/internal/errcode"
)

// SandboxClient is a deterministic in-memory PaymentProvider. Created
// transfers start in "processing"; tests and local development drive
// them through Complete/Fail, which also invokes the registered status
// callback the way a webhook delivery would.
type SandboxClient struct {
	mu sync.Mutex

	transfers map[string]*Transfer
	order     []string

	// payment-method types CreateTransfer rejects, keyed by the
	// destination type suffix of the PM id
	failTypes map[string]bool

	// replay guard keyed by the forwarded idempotency key
	idempotency map[string]string

	callback func(providerID, status string)

	Err error
}

func NewSandboxClient() *SandboxClient {
	return &SandboxClient{
		transfers:   make(map[string]*Transfer),
		failTypes:   make(map[string]bool),
		idempotency: make(map[string]string),
	}
}

// OnStatusChange registers a callback fired synchronously whenever a
// transfer's status changes, simulating webhook delivery.
func (c *SandboxClient) OnStatusChange(fn func(providerID, status string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = fn
}

// FailPaymentMethodType makes CreateTransfer reject any request whose
// destination payment method carries the given type.
func (c *SandboxClient) FailPaymentMethodType(pmType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failTypes[pmType] = true
}

func (c *SandboxClient) Ping() error {
	return c.Err
}

func (c *SandboxClient) CreateTransfer(ctx context.Context, req CreateTransferRequest) (*Transfer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}
	if req.SourcePaymentMethodID == "" || req.DestinationPaymentMethodID == "" {
		return nil, errcode.New(errcode.ProviderError, "sandbox: missing payment method")
	}
	if pmType, ok := pmTypeOf(req.DestinationPaymentMethodID); ok && c.failTypes[pmType] {
		return nil, errcode.New(errcode.ProviderError, "sandbox: %s transfers unavailable", pmType)
	}

	if req.IdempotencyKey != "" {
		if existing, seen := c.idempotency[req.IdempotencyKey]; seen {
			return c.transfers[existing], nil
		}
	}

	transfer := &Transfer{
		ID:          "sandbox-" + base.ID(),
		Status:      "processing",
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		CreatedAt:   time.Now(),
		Metadata:    req.Metadata,
	}
	c.transfers[transfer.ID] = transfer
	c.order = append(c.order, transfer.ID)
	if req.IdempotencyKey != "" {
		c.idempotency[req.IdempotencyKey] = transfer.ID
	}
	return transfer, nil
}

func (c *SandboxClient) ListTransfers(ctx context.Context, window Window) ([]*Transfer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}
	var out []*Transfer
	for _, id := range c.order {
		transfer := c.transfers[id]
		if transfer.CreatedAt.Before(window.Start) || transfer.CreatedAt.After(window.End) {
			continue
		}
		out = append(out, transfer)
	}
	return out, nil
}

// ListPaymentMethods returns one payment method per type the sandbox
// supports, with ids of the form "pm-<accountRef>-<type>".
func (c *SandboxClient) ListPaymentMethods(ctx context.Context, accountRef string) ([]*PaymentMethod, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	types := []string{
		"rtp-credit", "fednow-credit", "push-to-card",
		"ach-credit-same-day", "ach-credit-standard",
		"ach-debit-fund", "ach-debit-collect",
	}
	var out []*PaymentMethod
	for _, t := range types {
		out = append(out, &PaymentMethod{
			ID:   fmt.Sprintf("pm-%s-%s", accountRef, t),
			Type: t,
		})
	}
	return out, nil
}

func (c *SandboxClient) Cancel(ctx context.Context, providerID string) error {
	c.mu.Lock()
	transfer, exists := c.transfers[providerID]
	if !exists {
		c.mu.Unlock()
		return errcode.New(errcode.NotFound, "sandbox: transfer %s not found", providerID)
	}
	if transfer.Status == "completed" {
		c.mu.Unlock()
		return errcode.New(errcode.InvalidState, "sandbox: transfer %s already completed", providerID)
	}
	c.mu.Unlock()

	c.setStatus(providerID, "canceled")
	return nil
}

// Complete settles a transfer and fires the status callback.
func (c *SandboxClient) Complete(providerID string) {
	c.mu.Lock()
	if transfer, exists := c.transfers[providerID]; exists {
		now := time.Now()
		transfer.CompletedAt = &now
	}
	c.mu.Unlock()

	c.setStatus(providerID, "completed")
}

// Fail marks a transfer failed and fires the status callback.
func (c *SandboxClient) Fail(providerID string) {
	c.setStatus(providerID, "failed")
}

// Return marks a settled transfer returned and fires the status callback.
func (c *SandboxClient) Return(providerID string) {
	c.setStatus(providerID, "returned")
}

func (c *SandboxClient) setStatus(providerID, status string) {
	c.mu.Lock()
	transfer, exists := c.transfers[providerID]
	if exists {
		transfer.Status = status
	}
	callback := c.callback
	c.mu.Unlock()

	if exists && callback != nil {
		callback(providerID, status)
	}
}

// pmTypeOf pulls the type suffix back out of a sandbox PM id.
func pmTypeOf(pmID string) (string, bool) {
	for _, t := range []string{
		"rtp-credit", "fednow-credit", "push-to-card",
		"ach-credit-same-day", "ach-credit-standard",
		"ach-debit-fund", "ach-debit-collect",
	} {
		if len(pmID) >= len(t) && pmID[len(pmID)-len(t):] == t {
			return t, true
		}
	}
	return "", false
}
