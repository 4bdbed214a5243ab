// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package transfers

import (
	"time"

	"github.com/raynmakr/bigfin/internal/config"
)

// availabilityRank orders the monotonic progression of the state
// machine. Transitions may only move forward; FAILED is reachable from
// any non-terminal state.
var availabilityRank = map[AvailabilityState]int{
	AvailInitiated: 0,
	AvailPending:   1,
	AvailReceived:  2,
	AvailHeld:      3,
	AvailAvailable: 4,
}

// CanTransition reports whether moving from one availability state to
// another respects monotonicity. Terminal states never move except
// AVAILABLE, which an explicit reversal may push to FAILED.
func CanTransition(from, to AvailabilityState) bool {
	if from == to {
		return false
	}
	if from == AvailFailed {
		return false
	}
	if to == AvailFailed {
		return true
	}
	return availabilityRank[to] > availabilityRank[from]
}

// holdPolicy decides whether a completed transfer's funds are held
// before release.
type holdPolicy struct {
	cfg config.Availability
}

// apply returns the availability state a newly completed transfer
// enters and, when held, the release time.
func (p holdPolicy) apply(amountCents int64, firstTransfer bool, now time.Time) (AvailabilityState, *time.Time) {
	hold := false
	if p.cfg.HoldFirstTransfer && firstTransfer {
		hold = true
	}
	if p.cfg.HoldAmountOverCents > 0 && amountCents >= p.cfg.HoldAmountOverCents {
		hold = true
	}
	if !hold {
		return AvailAvailable, nil
	}
	release := now.Add(p.cfg.HoldDuration)
	return AvailHeld, &release
}
