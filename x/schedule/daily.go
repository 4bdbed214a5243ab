// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/moov-io/base"

	"github.com/robfig/cron/v3"
)

// DailyTimes is a time.Ticker which fires at fixed wall clock times each day
// to trigger processing events (like reconciliation runs).
type DailyTimes struct {
	C chan time.Time

	sched *cron.Cron
}

func ForDailyTimes(tz string, timestamps []string) (*DailyTimes, error) {
	dt := &DailyTimes{
		C:     make(chan time.Time),
		sched: cron.New(),
	}
	if err := dt.registerTimes(tz, timestamps); err != nil {
		return nil, err
	}
	dt.sched.Start()
	return dt, nil
}

func (dt *DailyTimes) Stop() {
	if dt == nil {
		return
	}
	if dt.C != nil {
		close(dt.C)
	}
	if dt.sched != nil {
		dt.sched.Stop()
	}
}

func (dt *DailyTimes) tick(location *time.Location) {
	dt.C <- base.Now().Time.In(location)
}

func (dt *DailyTimes) registerTimes(tz string, timestamps []string) error {
	if len(timestamps) == 0 {
		return errors.New("missing daily times")
	}
	for i := range timestamps {
		if err := dt.register(tz, timestamps[i]); err != nil {
			return fmt.Errorf("timestamp=%s error=%v", timestamps[i], err)
		}
	}
	return nil
}

func (dt *DailyTimes) register(tz string, timestamp string) error {
	when, err := time.Parse("15:04", timestamp)
	if err != nil {
		return fmt.Errorf("failed to parse '%s' error=%v", timestamp, err)
	}

	var zone string
	var location *time.Location
	if tz != "" {
		zone = fmt.Sprintf("CRON_TZ=%s", tz)
		l, err := time.LoadLocation(tz)
		if err != nil {
			return err
		}
		location = l
	} else {
		location = time.UTC
	}
	schedule := fmt.Sprintf(`%s %d %d * * *`, zone, when.Minute(), when.Hour())
	dt.sched.AddFunc(schedule, func() {
		dt.tick(location)
	})

	return nil
}
