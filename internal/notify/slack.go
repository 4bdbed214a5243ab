// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/raynmakr/bigfin/internal/config"
)

type Slack struct {
	cfg    *config.Slack
	client *http.Client
}

func NewSlack(cfg *config.Slack) (*Slack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Slack{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func (s *Slack) Info(msg *Message) error {
	return s.webhook(fmt.Sprintf("%s\n%s", msg.Subject, msg.Body))
}

func (s *Slack) Critical(msg *Message) error {
	return s.webhook(fmt.Sprintf(":rotating_light: %s\n%s", msg.Subject, msg.Body))
}

func (s *Slack) webhook(text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	resp, err := s.client.Post(s.cfg.GetWebhookURL(), "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("slack: webhook returned %s", resp.Status)
	}
	return nil
}
