// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"github.com/raynmakr/bigfin/internal/config"

	"github.com/PagerDuty/go-pagerduty"
)

type PagerDuty struct {
	cfg *config.PagerDuty
}

func NewPagerDuty(cfg *config.PagerDuty) (*PagerDuty, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PagerDuty{cfg: cfg}, nil
}

func (pd *PagerDuty) Info(msg *Message) error {
	return pd.event("info", msg)
}

func (pd *PagerDuty) Critical(msg *Message) error {
	return pd.event("critical", msg)
}

func (pd *PagerDuty) event(severity string, msg *Message) error {
	_, err := pagerduty.ManageEvent(pagerduty.V2Event{
		RoutingKey: pd.cfg.GetRoutingKey(),
		Action:     "trigger",
		Payload: &pagerduty.V2Payload{
			Summary:  msg.Subject,
			Source:   "bigfin",
			Severity: severity,
			Details:  msg.Body,
		},
	})
	return err
}
