// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/raynmakr/bigfin/internal/errcode"
)

// Event is the provider's webhook envelope.
type Event struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedOn time.Time       `json:"created_on"`
}

// TransferEventData is the payload carried by transfer.* events.
type TransferEventData struct {
	TransferID string `json:"transferId"`
	Status     string `json:"status"`
}

// knownEventTypes lists every event type the ingestion path acts on.
// Unknown types are acknowledged without processing so the provider
// stops retrying them.
var knownEventTypes = map[string]bool{
	"transfer.created":        true,
	"transfer.pending":        true,
	"transfer.completed":      true,
	"transfer.failed":         true,
	"transfer.reversed":       true,
	"bank-account.created":    true,
	"bank-account.updated":    true,
	"card.created":            true,
	"card.updated":            true,
	"payment-method.enabled":  true,
	"payment-method.disabled": true,
}

func KnownEventType(t string) bool {
	return knownEventTypes[t]
}

// ParseEvent decodes a webhook body, rejecting payloads missing the
// required envelope fields.
func ParseEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, errcode.Wrap(errcode.InvalidRequest, err, "webhook: decode event")
	}
	if event.EventID == "" {
		return nil, errcode.New(errcode.InvalidRequest, "webhook: missing event_id")
	}
	if event.Type == "" {
		return nil, errcode.New(errcode.InvalidRequest, "webhook: missing type")
	}
	if len(event.Data) == 0 {
		return nil, errcode.New(errcode.InvalidRequest, "webhook: missing data")
	}
	return &event, nil
}

// Signature computes the webhook signature over timestamp + "." + body
// as lowercase hex.
func Signature(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook delivery in constant time.
func VerifySignature(secret, timestamp, signature string, body []byte) error {
	expected := Signature(secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return errcode.New(errcode.Unauthorized, "webhook: signature mismatch")
	}
	return nil
}

// TransferData decodes the event payload for transfer.* events.
func (e *Event) TransferData() (*TransferEventData, error) {
	var data TransferEventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, errcode.Wrap(errcode.InvalidRequest, err, "webhook: decode transfer data")
	}
	if data.TransferID == "" {
		return nil, errcode.New(errcode.InvalidRequest, "webhook: missing transferId")
	}
	return &data, nil
}

// StatusFromEventType maps a transfer.* event type to the provider
// status vocabulary used by status ingestion.
func StatusFromEventType(eventType string) (string, error) {
	switch eventType {
	case "transfer.created":
		return "pending", nil
	case "transfer.pending":
		return "processing", nil
	case "transfer.completed":
		return "completed", nil
	case "transfer.failed":
		return "failed", nil
	case "transfer.reversed":
		return "returned", nil
	default:
		return "", fmt.Errorf("no status for event type %s", eventType)
	}
}
