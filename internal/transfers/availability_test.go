// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package transfers

import (
	"testing"
	"time"

	"github.com/raynmakr/bigfin/internal/config"
)

func TestAvailability__CanTransition(t *testing.T) {
	cases := []struct {
		from, to AvailabilityState
		allowed  bool
	}{
		{AvailInitiated, AvailPending, true},
		{AvailPending, AvailReceived, true},
		{AvailReceived, AvailHeld, true},
		{AvailReceived, AvailAvailable, true},
		{AvailHeld, AvailAvailable, true},
		{AvailPending, AvailAvailable, true},

		// never backwards
		{AvailPending, AvailInitiated, false},
		{AvailAvailable, AvailHeld, false},
		{AvailAvailable, AvailReceived, false},
		{AvailHeld, AvailPending, false},

		// no self transitions
		{AvailPending, AvailPending, false},
		{AvailFailed, AvailFailed, false},

		// FAILED is reachable from anywhere, terminal once entered
		{AvailInitiated, AvailFailed, true},
		{AvailAvailable, AvailFailed, true},
		{AvailFailed, AvailPending, false},
		{AvailFailed, AvailAvailable, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v", tc.from, tc.to, got)
		}
	}
}

func TestAvailability__HoldPolicy(t *testing.T) {
	now := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)

	// no policy configured: funds land available
	p := holdPolicy{}
	state, release := p.apply(1000000, true, now)
	if state != AvailAvailable || release != nil {
		t.Errorf("state=%s release=%v", state, release)
	}

	p = holdPolicy{cfg: config.Availability{
		HoldFirstTransfer:   true,
		HoldAmountOverCents: 500000,
		HoldDuration:        24 * time.Hour,
	}}

	// first transfer held regardless of amount
	state, release = p.apply(100, true, now)
	if state != AvailHeld || release == nil {
		t.Fatalf("state=%s release=%v", state, release)
	}
	if !release.Equal(now.Add(24 * time.Hour)) {
		t.Errorf("release=%v", release)
	}

	// later small transfers clear
	state, release = p.apply(100, false, now)
	if state != AvailAvailable || release != nil {
		t.Errorf("state=%s release=%v", state, release)
	}

	// large transfers held even when not the first
	state, _ = p.apply(500000, false, now)
	if state != AvailHeld {
		t.Errorf("state=%s", state)
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		provider     string
		direction    Direction
		status       Status
		availability AvailabilityState
	}{
		{"created", Disbursing, Pending, AvailPending},
		{"pending", Disbursing, Pending, AvailPending},
		{"processing", Repaying, Pending, AvailPending},
		{"completed", Disbursing, Completed, AvailAvailable},
		{"failed", Repaying, Failed, AvailFailed},
		{"returned", Disbursing, Failed, AvailFailed},
		{"returned", Repaying, Returned, AvailFailed},
		{"reversed", Repaying, Returned, AvailFailed},
		{"canceled", Disbursing, Failed, AvailFailed},
		{"canceled", Repaying, Cancelled, AvailFailed},
		{"COMPLETED", Disbursing, Completed, AvailAvailable},
	}
	for _, tc := range cases {
		status, availability, known := statusMapping(tc.provider, tc.direction)
		if !known {
			t.Errorf("%s/%s unknown", tc.provider, tc.direction)
			continue
		}
		if status != tc.status || availability != tc.availability {
			t.Errorf("%s/%s: got %s/%s", tc.provider, tc.direction, status, availability)
		}
	}

	if _, _, known := statusMapping("exploded", Disbursing); known {
		t.Error("expected unknown status")
	}
}
