// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package routing selects a payment rail for a transfer from the
// instrument capabilities and requested speed, prices the express fee,
// and projects fallback rails and arrival. The engine is pure: it does
// no I/O and callers supply the prefund balance used for fee waivers.
package routing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/raynmakr/bigfin/internal/errcode"
	"github.com/raynmakr/bigfin/internal/instruments"

	"github.com/go-kit/kit/log"
)

type Rail string

const (
	ACH        Rail = "ach"
	SameDayACH Rail = "same_day_ach"
	PushToCard Rail = "push_to_card"
	FedNow     Rail = "fednow"
	RTP        Rail = "rtp"
)

func (r Rail) Validate() error {
	switch r {
	case ACH, SameDayACH, PushToCard, FedNow, RTP:
		return nil
	default:
		return fmt.Errorf("Rail(%s) is invalid", r)
	}
}

type Speed string

const (
	Standard Speed = "standard"
	Instant  Speed = "instant"
)

func (s Speed) Validate() error {
	switch s {
	case Standard, Instant:
		return nil
	default:
		return fmt.Errorf("Speed(%s) is invalid", s)
	}
}

func (s *Speed) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	*s = Speed(strings.ToLower(str))
	return s.Validate()
}

type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

func (d Direction) Validate() error {
	switch d {
	case Credit, Debit:
		return nil
	default:
		return fmt.Errorf("Direction(%s) is invalid", d)
	}
}

func (d *Direction) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	*d = Direction(strings.ToLower(str))
	return d.Validate()
}

// instantPriority is scanned highest priority first.
var instantPriority = []Rail{RTP, FedNow, PushToCard, SameDayACH, ACH}

// fallbackChain is the static degradation path. SameDayACH joins the
// chain at ACH; ACH has no fallbacks.
var fallbackChain = map[Rail][]Rail{
	RTP:        {FedNow, PushToCard, ACH},
	FedNow:     {PushToCard, ACH},
	PushToCard: {ACH},
	SameDayACH: {ACH},
	ACH:        {},
}

// Capabilities is the set of rails an instrument can receive or send on.
type Capabilities struct {
	Rails []Rail
}

func (c Capabilities) Has(rail Rail) bool {
	for i := range c.Rails {
		if c.Rails[i] == rail {
			return true
		}
	}
	return false
}

// CapabilitiesFor derives an instrument's rails. An explicit
// supported_rails set wins; otherwise type and verification status
// decide.
func CapabilitiesFor(instrument *instruments.FundingInstrument) Capabilities {
	if instrument == nil {
		return Capabilities{}
	}
	if len(instrument.SupportedRails) > 0 {
		var rails []Rail
		for _, s := range instrument.SupportedRails {
			rail := Rail(strings.ToLower(s))
			if rail.Validate() == nil {
				rails = append(rails, rail)
			}
		}
		return Capabilities{Rails: rails}
	}

	switch instrument.Type {
	case instruments.DebitCard:
		return Capabilities{Rails: []Rail{PushToCard}}
	default:
		if instrument.Status == instruments.Verified {
			return Capabilities{Rails: []Rail{RTP, FedNow, SameDayACH, ACH}}
		}
		return Capabilities{Rails: []Rail{ACH}}
	}
}

// Request carries everything a routing decision depends on.
// PrefundAvailableCents is the lender's latest completed prefund
// available balance; nil when the lender has no prefund history.
type Request struct {
	Speed       Speed
	Direction   Direction
	AmountCents int64
	Source      Capabilities
	Destination Capabilities

	PrefundAvailableCents *int64
}

// Decision is a priced route with its degradation path.
type Decision struct {
	Rail             Rail      `json:"rail"`
	FeeCents         int64     `json:"feeCents"`
	EstimatedArrival time.Time `json:"estimatedArrival"`
	FallbackRails    []Rail    `json:"fallbackRails"`
	Reason           string    `json:"reason"`
}

type Engine struct {
	logger log.Logger
	loc    *time.Location

	now func() time.Time
}

func NewEngine(logger log.Logger, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		logger: logger,
		loc:    loc,
		now:    time.Now,
	}
}

// Route picks the rail for a transfer. For credit transfers the
// destination's rails decide; for debits the source's.
func (e *Engine) Route(req Request) (*Decision, error) {
	if err := req.Speed.Validate(); err != nil {
		return nil, errcode.New(errcode.InvalidRequest, "%v", err)
	}
	if err := req.Direction.Validate(); err != nil {
		return nil, errcode.New(errcode.InvalidRequest, "%v", err)
	}
	if req.AmountCents <= 0 {
		return nil, errcode.New(errcode.InvalidRequest, "amount must be positive")
	}

	available := req.Destination
	if req.Direction == Debit {
		available = req.Source
	}

	var (
		rail   Rail
		reason string
	)
	switch req.Speed {
	case Standard:
		if !available.Has(ACH) {
			return nil, errcode.New(errcode.InstrumentInvalid, "standard transfers require ach support")
		}
		rail = ACH
		reason = "standard speed routes over ach"
	case Instant:
		for _, candidate := range instantPriority {
			if available.Has(candidate) {
				rail = candidate
				reason = fmt.Sprintf("%s is the fastest rail the instrument supports", candidate)
				break
			}
		}
		if rail == "" {
			return nil, errcode.New(errcode.InstrumentInvalid, "no rail available for instant transfer")
		}
	}

	fee := e.Fee(req.Speed, req.AmountCents)
	if fee > 0 && req.PrefundAvailableCents != nil && *req.PrefundAvailableCents >= req.AmountCents {
		fee = 0
		reason = fmt.Sprintf("%s; express fee waived by prefund balance", reason)
	}

	return &Decision{
		Rail:             rail,
		FeeCents:         fee,
		EstimatedArrival: e.EstimateArrival(rail, e.now()),
		FallbackRails:    fallbacksFor(rail, available),
		Reason:           reason,
	}, nil
}

// fallbacksFor filters the static chain down to rails the instrument
// actually supports.
func fallbacksFor(rail Rail, available Capabilities) []Rail {
	out := []Rail{}
	for _, candidate := range fallbackChain[rail] {
		if available.Has(candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

// Fee prices the express fee band for an amount. Standard transfers are
// free.
func (e *Engine) Fee(speed Speed, amountCents int64) int64 {
	if speed != Instant {
		return 0
	}
	switch {
	case amountCents <= 50000:
		return 299
	case amountCents <= 200000:
		return 499
	case amountCents <= 500000:
		return 799
	case amountCents <= 1000000:
		return 999
	case amountCents <= 2500000:
		return 1499
	default:
		return 1999
	}
}

// EstimateArrival projects when funds land if the transfer starts at
// the given instant. Instant rails land immediately, cards in thirty
// wall-clock minutes, and ACH variants after business hours elapse.
func (e *Engine) EstimateArrival(rail Rail, start time.Time) time.Time {
	switch rail {
	case RTP, FedNow:
		return start
	case PushToCard:
		return start.Add(30 * time.Minute)
	case SameDayACH:
		return e.addBusinessHours(start, 4*time.Hour)
	default:
		return e.addBusinessHours(start, 24*time.Hour)
	}
}

const (
	businessDayOpen  = 9
	businessDayClose = 17
)

// addBusinessHours advances through Mon-Fri 09:00-17:00 windows in the
// engine's timezone until the given working duration has elapsed.
func (e *Engine) addBusinessHours(start time.Time, d time.Duration) time.Time {
	t := nextBusinessInstant(start.In(e.loc))
	for d > 0 {
		dayClose := time.Date(t.Year(), t.Month(), t.Day(), businessDayClose, 0, 0, 0, t.Location())
		window := dayClose.Sub(t)
		if window >= d {
			return t.Add(d)
		}
		d -= window
		t = nextBusinessInstant(dayClose)
	}
	return t
}

// nextBusinessInstant rolls a timestamp forward to the nearest moment
// inside a business-hours window.
func nextBusinessInstant(t time.Time) time.Time {
	for {
		switch t.Weekday() {
		case time.Saturday, time.Sunday:
			t = time.Date(t.Year(), t.Month(), t.Day()+1, businessDayOpen, 0, 0, 0, t.Location())
			continue
		}
		if t.Hour() < businessDayOpen {
			return time.Date(t.Year(), t.Month(), t.Day(), businessDayOpen, 0, 0, 0, t.Location())
		}
		if t.Hour() >= businessDayClose {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, businessDayOpen, 0, 0, 0, t.Location())
			continue
		}
		return t
	}
}
