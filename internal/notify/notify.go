// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package notify delivers operator notifications for reconciliation
// exceptions over email, PagerDuty, and Slack.
package notify

type Message struct {
	Subject string
	Body    string
}

type Sender interface {
	Info(msg *Message) error
	Critical(msg *Message) error
}

// ExceptionAlerter adapts a Sender to the subject/body callback the
// reconciliation engine expects.
type ExceptionAlerter struct {
	sender Sender
}

func NewExceptionAlerter(sender Sender) *ExceptionAlerter {
	return &ExceptionAlerter{sender: sender}
}

func (a *ExceptionAlerter) Critical(subject, body string) error {
	return a.sender.Critical(&Message{Subject: subject, Body: body})
}
