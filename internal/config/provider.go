// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"os"
	"time"

	"github.com/raynmakr/bigfin/internal/util"
)

// Provider configures the payment provider adapter and its webhook
// ingestion endpoint.
type Provider struct {
	// Endpoint is the base address of the payment provider's API. When
	// empty the in-memory sandbox client is used instead.
	Endpoint string

	// APIKey authenticates calls against the provider. Overridable with
	// PROVIDER_API_KEY.
	APIKey string

	// WebhookSecret is the shared secret used to verify webhook
	// signatures. Overridable with PROVIDER_WEBHOOK_SECRET.
	WebhookSecret string

	// Timeout bounds each provider call. A timed out attempt counts as a
	// failed rail and the orchestrator moves on to the next fallback.
	Timeout time.Duration
}

func providerDefaults() Provider {
	return Provider{
		Timeout: 15 * time.Second,
	}
}

func (cfg Provider) Validate() error {
	if cfg.Timeout <= 0*time.Second {
		return errors.New("missing timeout")
	}
	return nil
}

func (cfg Provider) GetAPIKey() string {
	return util.Or(os.Getenv("PROVIDER_API_KEY"), cfg.APIKey)
}

func (cfg Provider) GetWebhookSecret() string {
	return util.Or(os.Getenv("PROVIDER_WEBHOOK_SECRET"), cfg.WebhookSecret)
}
