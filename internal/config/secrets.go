// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/raynmakr/bigfin/internal/util"
)

// Secrets configures the keeper used to encrypt funding instrument
// account numbers before they reach the database.
type Secrets struct {
	// Provider selects the encryption backend: local, gcp, or vault.
	Provider string

	// LocalBase64Key is the base64 encoding of a 32 byte key for the
	// local backend. Overridable with SECRETS_LOCAL_BASE64_KEY.
	LocalBase64Key string

	// GCPKeyResourceID names a Cloud KMS key, in the form
	// projects/P/locations/L/keyRings/R/cryptoKeys/K. Overridable with
	// SECRETS_GCP_KEY_RESOURCE_ID.
	GCPKeyResourceID string

	// VaultAddress and VaultToken reach the Vault transit backend.
	// Overridable with VAULT_SERVER_URL and VAULT_SERVER_TOKEN.
	VaultAddress string
	VaultToken   string

	// KeyPath is the key name encrypt and decrypt calls run against.
	KeyPath string

	// Timeout bounds each encrypt or decrypt call.
	Timeout time.Duration
}

func secretsDefaults() Secrets {
	return Secrets{
		Provider: "local",
		KeyPath:  "bigfin-account-numbers",
		Timeout:  10 * time.Second,
	}
}

func (cfg Secrets) Validate() error {
	switch strings.ToLower(cfg.Provider) {
	case "", "local", "gcp", "vault":
	default:
		return fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	if cfg.Timeout <= 0*time.Second {
		return errors.New("missing timeout")
	}
	return nil
}

func (cfg Secrets) GetLocalBase64Key() string {
	return util.Or(os.Getenv("SECRETS_LOCAL_BASE64_KEY"), cfg.LocalBase64Key)
}

func (cfg Secrets) GetGCPKeyResourceID() string {
	return util.Or(os.Getenv("SECRETS_GCP_KEY_RESOURCE_ID"), cfg.GCPKeyResourceID)
}

func (cfg Secrets) GetVaultAddress() string {
	return util.Or(os.Getenv("VAULT_SERVER_URL"), util.Or(cfg.VaultAddress, "http://127.0.0.1:8200"))
}

func (cfg Secrets) GetVaultToken() string {
	return util.Or(os.Getenv("VAULT_SERVER_TOKEN"), cfg.VaultToken)
}
