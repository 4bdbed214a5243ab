// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package secrets encrypts funding instrument account numbers before
// they are written to the database. Keepers come from the Go CDK
// secrets API, so the backend (a local key, Cloud KMS, or Vault) is a
// config choice rather than a code change.
package secrets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raynmakr/bigfin/internal/config"

	"github.com/hashicorp/vault/api"
	"gocloud.dev/secrets"
	"gocloud.dev/secrets/gcpkms"
	"gocloud.dev/secrets/hashivault"
	"gocloud.dev/secrets/localsecrets"
)

// OpenKeeper constructs the keeper named by the config section. An
// unset provider falls back to the local backend so development setups
// work without real key material.
func OpenKeeper(ctx context.Context, cfg config.Secrets) (*secrets.Keeper, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "local":
		return OpenLocal(cfg.GetLocalBase64Key())
	case "gcp":
		return openGCP(ctx, cfg)
	case "vault":
		return openVault(ctx, cfg)
	}
	return nil, fmt.Errorf("secrets: unknown provider %q", cfg.Provider)
}

// OpenLocal returns an in-memory keeper from a base64 encoded 32 byte
// key. An empty key falls back to a fixed development key.
func OpenLocal(base64Key string) (*secrets.Keeper, error) {
	if base64Key == "" {
		base64Key = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("1"), 32))
	}
	key, err := localsecrets.Base64Key(base64Key)
	if err != nil {
		return nil, fmt.Errorf("secrets: reading local base64 key: %v", err)
	}
	return localsecrets.NewKeeper(key), nil
}

func openGCP(ctx context.Context, cfg config.Secrets) (*secrets.Keeper, error) {
	ctx, cancelFn := context.WithTimeout(ctx, cfg.Timeout)
	defer cancelFn()

	client, done, err := gcpkms.Dial(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("secrets: dialing Cloud KMS: %v", err)
	}
	defer done()

	return gcpkms.OpenKeeper(client, cfg.GetGCPKeyResourceID(), nil), nil
}

func openVault(ctx context.Context, cfg config.Secrets) (*secrets.Keeper, error) {
	client, err := hashivault.Dial(ctx, &hashivault.Config{
		Token: cfg.GetVaultToken(),
		APIConfig: api.Config{
			Address: cfg.GetVaultAddress(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("secrets: dialing vault: %v", err)
	}
	return hashivault.OpenKeeper(client, cfg.KeyPath, nil), nil
}

// StringKeeper wraps a secrets.Keeper to accept and return strings,
// which is the shape the instrument repository stores. Ciphertext is
// carried as base64.StdEncoding.
type StringKeeper struct {
	keeper  *secrets.Keeper
	timeout time.Duration
}

func NewStringKeeper(keeper *secrets.Keeper, timeout time.Duration) *StringKeeper {
	return &StringKeeper{
		keeper:  keeper,
		timeout: timeout,
	}
}

func (k *StringKeeper) Close() error {
	if k == nil {
		return nil
	}
	return k.keeper.Close()
}

// EncryptString encrypts in and returns the ciphertext base64 encoded.
func (k *StringKeeper) EncryptString(in string) (string, error) {
	if k == nil {
		return "", errors.New("nil StringKeeper")
	}

	ctx, cancelFn := context.WithTimeout(context.Background(), k.timeout)
	defer cancelFn()

	bs, err := k.keeper.Encrypt(ctx, []byte(in))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(bs), nil
}

// DecryptString reverses EncryptString.
func (k *StringKeeper) DecryptString(in string) (string, error) {
	if k == nil {
		return "", errors.New("nil StringKeeper")
	}

	ctx, cancelFn := context.WithTimeout(context.Background(), k.timeout)
	defer cancelFn()

	bs, err := base64.StdEncoding.DecodeString(in)
	if err != nil {
		return "", err
	}
	bs, err = k.keeper.Decrypt(ctx, bs)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}
