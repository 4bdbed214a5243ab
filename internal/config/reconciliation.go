// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
)

// Reconciliation configures the daily local-vs-provider comparison runs.
type Reconciliation struct {
	// Schedule holds "HH:MM" wall clock times (in Timezone) when runs
	// fire each day.
	Schedule []string
	Timezone string

	// HighThresholdCents and CriticalThresholdCents band amount based
	// exception severities.
	HighThresholdCents     int64
	CriticalThresholdCents int64

	// AutoResolve enables the narrow safe subset of automatic fixes.
	AutoResolve bool

	// AutoResolveThresholdCents bounds the discrepancy an automatic fix
	// may correct.
	AutoResolveThresholdCents int64
}

func reconciliationDefaults() Reconciliation {
	return Reconciliation{
		Schedule:                  []string{"06:00"},
		HighThresholdCents:        10000,
		CriticalThresholdCents:    100000,
		AutoResolve:               true,
		AutoResolveThresholdCents: 100,
	}
}

func (cfg Reconciliation) Validate() error {
	if len(cfg.Schedule) == 0 {
		return errors.New("missing schedule")
	}
	if cfg.HighThresholdCents <= 0 || cfg.CriticalThresholdCents <= cfg.HighThresholdCents {
		return fmt.Errorf("invalid thresholds high=%d critical=%d", cfg.HighThresholdCents, cfg.CriticalThresholdCents)
	}
	return nil
}
