// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/raynmakr/bigfin/internal/config"
	"github.com/raynmakr/bigfin/internal/errcode"
	"github.com/raynmakr/bigfin/x/trace"

	"github.com/go-kit/kit/log"
)

// NewClient builds the PaymentProvider client. An empty endpoint wires
// the deterministic sandbox, which is what tests and local development
// run against.
func NewClient(logger log.Logger, cfg config.Provider) Client {
	if cfg.Endpoint == "" {
		logger.Log("provider", "using sandbox payment provider")
		return NewSandboxClient()
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	logger.Log("provider", fmt.Sprintf("using payment provider at %s", cfg.Endpoint))
	return &httpClient{
		logger:   logger,
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:   cfg.GetAPIKey(),
		underlying: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 25,
				IdleConnTimeout:     time.Minute,
			},
		},
	}
}

type httpClient struct {
	logger     log.Logger
	endpoint   string
	apiKey     string
	underlying *http.Client
}

func (c *httpClient) Ping() error {
	resp, err := c.do(context.Background(), "provider.ping", "GET", "/ping", "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func (c *httpClient) CreateTransfer(ctx context.Context, req CreateTransferRequest) (*Transfer, error) {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(req); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, "provider.create-transfer", "POST", "/transfers", req.IdempotencyKey, &body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var transfer Transfer
	if err := json.NewDecoder(resp.Body).Decode(&transfer); err != nil {
		return nil, errcode.Wrap(errcode.ProviderError, err, "provider: decode transfer")
	}
	return &transfer, nil
}

func (c *httpClient) ListTransfers(ctx context.Context, window Window) ([]*Transfer, error) {
	params := url.Values{}
	params.Set("startDate", window.Start.Format(time.RFC3339))
	params.Set("endDate", window.End.Format(time.RFC3339))

	resp, err := c.do(ctx, "provider.list-transfers", "GET", "/transfers?"+params.Encode(), "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var transfers []*Transfer
	if err := json.NewDecoder(resp.Body).Decode(&transfers); err != nil {
		return nil, errcode.Wrap(errcode.ProviderError, err, "provider: decode transfers")
	}
	return transfers, nil
}

func (c *httpClient) ListPaymentMethods(ctx context.Context, accountRef string) ([]*PaymentMethod, error) {
	resp, err := c.do(ctx, "provider.list-payment-methods", "GET", "/accounts/"+url.PathEscape(accountRef)+"/payment-methods", "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var methods []*PaymentMethod
	if err := json.NewDecoder(resp.Body).Decode(&methods); err != nil {
		return nil, errcode.Wrap(errcode.ProviderError, err, "provider: decode payment methods")
	}
	return methods, nil
}

func (c *httpClient) Cancel(ctx context.Context, providerID string) error {
	resp, err := c.do(ctx, "provider.cancel-transfer", "POST", "/transfers/"+url.PathEscape(providerID)+"/cancel", "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func (c *httpClient) do(ctx context.Context, name, method, path, idempotencyKey string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, c.endpoint+path, body)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	span := trace.StartClientSpan(name, req)
	resp, err := c.underlying.Do(req)
	if err != nil {
		err = errcode.Wrap(errcode.ProviderError, err, "provider: %s %s", method, path)
		trace.FinishClientSpan(span, 0, err)
		return nil, err
	}
	if resp.StatusCode >= 400 {
		msg, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		err = errcode.New(errcode.ProviderError, "provider: %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
		trace.FinishClientSpan(span, resp.StatusCode, err)
		return nil, err
	}
	trace.FinishClientSpan(span, resp.StatusCode, nil)
	return resp, nil
}
