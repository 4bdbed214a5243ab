// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package schedule

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

// Interval fires on a fixed period. It drives background sweeps such as
// activating scheduled repayments and releasing expired holds.
type Interval struct {
	C chan time.Time

	sched *cron.Cron
}

func ForInterval(every time.Duration) (*Interval, error) {
	if every <= 0 {
		return nil, errors.New("non-positive interval")
	}
	iv := &Interval{
		C:     make(chan time.Time),
		sched: cron.New(),
	}
	iv.sched.Schedule(cron.Every(every), cron.FuncJob(func() {
		iv.C <- time.Now()
	}))
	iv.sched.Start()
	return iv, nil
}

func (iv *Interval) Stop() {
	if iv == nil {
		return
	}
	if iv.C != nil {
		close(iv.C)
	}
	if iv.sched != nil {
		iv.sched.Stop()
	}
}
