// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"errors"
	"testing"

	"github.com/raynmakr/bigfin/internal/config"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/require"
)

func TestMultiSender(t *testing.T) {
	first, second := &MockSender{}, &MockSender{}
	ms := &MultiSender{
		logger:  log.NewNopLogger(),
		senders: []Sender{first, second},
	}

	msg := &Message{Subject: "subject", Body: "body"}
	require.NoError(t, ms.Info(msg))
	if !first.InfoWasCalled() || !second.InfoWasCalled() {
		t.Error("expected both senders called")
	}
	if first.CapturedMessage().Subject != "subject" {
		t.Errorf("got %q", first.CapturedMessage().Subject)
	}

	// a failing sender doesn't stop the others
	first.Err = errors.New("smtp down")
	if err := ms.Critical(msg); err == nil {
		t.Error("expected error")
	}
	if !second.CriticalWasCalled() {
		t.Error("expected second sender called")
	}
}

func TestMultiSender__NilConfig(t *testing.T) {
	ms, err := NewMultiSender(log.NewNopLogger(), nil)
	require.NoError(t, err)
	require.NoError(t, ms.Critical(&Message{Subject: "s"}))
}

func TestMultiSender__InvalidConfig(t *testing.T) {
	_, err := NewMultiSender(log.NewNopLogger(), &config.Notifications{
		Slack: &config.Slack{},
	})
	if err == nil {
		t.Error("expected error")
	}
}

func TestExceptionAlerter(t *testing.T) {
	sender := &MockSender{}
	alerter := NewExceptionAlerter(sender)

	if err := alerter.Critical("subject", "body"); err != nil {
		t.Fatal(err)
	}
	if !sender.CriticalWasCalled() {
		t.Error("expected critical sent")
	}
	if sender.CapturedMessage().Body != "body" {
		t.Errorf("got %q", sender.CapturedMessage().Body)
	}
}
