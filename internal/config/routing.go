// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"time"
)

// Routing configures rail selection and arrival estimation.
type Routing struct {
	// Timezone anchors "business hours" (Mon-Fri 09:00-17:00) used when
	// estimating ACH arrival times.
	Timezone string
}

func routingDefaults() Routing {
	return Routing{
		Timezone: "America/New_York",
	}
}

func (cfg Routing) Validate() error {
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("timezone: %v", err)
	}
	return nil
}

func (cfg Routing) Location() (*time.Location, error) {
	if cfg.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(cfg.Timezone)
}

// Availability configures when completed transfers are held before funds
// become usable.
type Availability struct {
	// HoldFirstTransfer holds a customer's first completed transfer.
	HoldFirstTransfer bool

	// HoldAmountOverCents holds any completed transfer at or above this
	// amount. Zero disables amount based holds.
	HoldAmountOverCents int64

	// HoldDuration is how long a policy hold lasts before funds release.
	HoldDuration time.Duration
}

func availabilityDefaults() Availability {
	return Availability{
		HoldDuration: 24 * time.Hour,
	}
}

func (cfg Availability) Validate() error {
	if cfg.HoldDuration < 0 {
		return fmt.Errorf("invalid hold duration %v", cfg.HoldDuration)
	}
	return nil
}
