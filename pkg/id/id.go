// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package id

import "strings"

// Tenant scopes every mutable entity. All repository queries filter by it.
type Tenant string

func (t Tenant) String() string {
	return string(t)
}

type Customer string

func (c Customer) String() string {
	return string(c)
}

type Contract string

func (c Contract) String() string {
	return string(c)
}

type Journal string

func (j Journal) String() string {
	return string(j)
}

type Disbursement string

func (d Disbursement) String() string {
	return string(d)
}

type Repayment string

func (r Repayment) String() string {
	return string(r)
}

type Instrument string

func (i Instrument) String() string {
	return string(i)
}

// ProviderRef is the payment provider's identifier for a transfer.
type ProviderRef string

func (p ProviderRef) String() string {
	return string(p)
}

func (p ProviderRef) Equal(s string) bool {
	return strings.EqualFold(string(p), s)
}
