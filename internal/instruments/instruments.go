// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package instruments stores the funding instruments (bank accounts,
// debit cards) transfers move money through.
package instruments

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/pkg/id"
)

type InstrumentType string

const (
	BankAccount InstrumentType = "BANK_ACCOUNT"
	DebitCard   InstrumentType = "DEBIT_CARD"
)

func (t InstrumentType) Validate() error {
	switch t {
	case BankAccount, DebitCard:
		return nil
	default:
		return fmt.Errorf("InstrumentType(%s) is invalid", t)
	}
}

func (t *InstrumentType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = InstrumentType(strings.ToUpper(s))
	return t.Validate()
}

type Status string

const (
	Pending  Status = "PENDING"
	Verified Status = "VERIFIED"
	Removed  Status = "REMOVED"
	Failed   Status = "FAILED"
)

func (s Status) Validate() error {
	switch s {
	case Pending, Verified, Removed, Failed:
		return nil
	default:
		return fmt.Errorf("Status(%s) is invalid", s)
	}
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	*s = Status(strings.ToUpper(str))
	return s.Validate()
}

// FundingInstrument is an external account money can move to or from.
// SupportedRails, when set, overrides the capability derivation the
// routing engine would otherwise apply from type and status.
type FundingInstrument struct {
	ID             id.Instrument  `json:"id"`
	TenantID       id.Tenant      `json:"-"`
	CustomerID     id.Customer    `json:"customerId"`
	Type           InstrumentType `json:"type"`
	Status         Status         `json:"status"`
	ProviderRef    id.ProviderRef `json:"providerRef,omitempty"`
	SupportedRails []string       `json:"supportedRails,omitempty"`

	// EncryptedAccountNumber is the bank account (or card) number encrypted
	// with a secrets.StringKeeper. Never returned over the API.
	EncryptedAccountNumber string `json:"-"`
	MaskedAccountNumber    string `json:"maskedAccountNumber,omitempty"`

	Created base.Time `json:"created"`
}

func (i *FundingInstrument) Validate() error {
	if err := i.Type.Validate(); err != nil {
		return err
	}
	if err := i.Status.Validate(); err != nil {
		return err
	}
	if i.CustomerID == "" {
		return fmt.Errorf("missing customerId")
	}
	return nil
}

// Usable reports whether transfers can route through this instrument.
func (i *FundingInstrument) Usable() bool {
	return i.Status != Removed && i.Status != Failed
}

// maskAccountNumber hides all but the last four digits.
func maskAccountNumber(num string) string {
	if utf8.RuneCountInString(num) < 5 {
		return "**" // too short, we can't mask anything
	}
	return "**" + num[len(num)-4:]
}

// encodeRails packs the rails list for storage; "" means unset.
func encodeRails(rails []string) string {
	return strings.Join(rails, ",")
}

func decodeRails(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
