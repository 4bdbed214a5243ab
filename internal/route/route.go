// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package route

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	moovhttp "github.com/moov-io/base/http"
	"github.com/moov-io/base/idempotent"
	"github.com/raynmakr/bigfin/pkg/id"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	// Prometheus Metrics
	Histogram = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Name: "http_response_duration_seconds",
		Help: "Histogram representing the http response durations",
	}, []string{"route"})
)

// GetTenantID returns the tenant scoping an HTTP request. Every request
// into the financial core must carry one.
func GetTenantID(r *http.Request) id.Tenant {
	return id.Tenant(r.Header.Get("X-Tenant-Id"))
}

// GetIdempotencyKey returns the caller supplied idempotency key, if any.
func GetIdempotencyKey(r *http.Request) string {
	return idempotent.Header(r)
}

type Responder struct {
	XTenantID  id.Tenant
	XRequestID string

	logger log.Logger

	start time.Time
	name  string

	writer  http.ResponseWriter
	request *http.Request
}

// NewResponder wraps a response writer with tenant and request scoping.
// Requests without an X-Tenant-Id header are rejected and nil returned.
func NewResponder(logger log.Logger, w http.ResponseWriter, r *http.Request) *Responder {
	tenantID := GetTenantID(r)
	if tenantID == "" {
		moovhttp.Problem(w, errMissingTenant)
		return nil
	}
	return &Responder{
		XTenantID:  tenantID,
		XRequestID: moovhttp.GetRequestID(r),
		logger:     logger,
		start:      time.Now(),
		name:       strings.ToLower(r.Method) + "-" + CleanPath(r.URL.Path),
		writer:     w,
		request:    r,
	}
}

func (r *Responder) Log(kvpairs ...interface{}) {
	if r == nil {
		return
	}
	var args = []interface{}{
		"requestID", r.XRequestID,
		"tenantID", r.XTenantID,
	}
	args = append(args, kvpairs...)
	r.logger.Log(args...)
}

func (r *Responder) Respond(fn func(http.ResponseWriter)) {
	if r == nil {
		return
	}
	r.writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	fn(r.writer)
	Histogram.With("route", r.name).Observe(time.Since(r.start).Seconds())
}

func (r *Responder) Problem(err error) {
	if r == nil {
		return
	}
	r.writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	moovhttp.Problem(r.writer, err)
	Histogram.With("route", r.name).Observe(time.Since(r.start).Seconds())
}

var baseIdRegex = regexp.MustCompile(`([a-f0-9]{40})`)

// CleanPath takes a URL path and formats it for Prometheus metrics
//
// This method replaces /'s with -'s and strips out moov/base.ID() values from URL path slugs.
func CleanPath(path string) string {
	parts := strings.Split(path, "/")
	var out []string
	for i := range parts {
		if parts[i] == "" || baseIdRegex.MatchString(parts[i]) {
			continue // assume it's a moov/base.ID() value
		}
		out = append(out, parts[i])
	}
	return strings.Join(out, "-")
}
