// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package trace wires the global OpenTracing tracer to Jaeger. Spans
// cover outbound payment provider calls and inbound webhooks.
package trace

import (
	"fmt"
	"io"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/opentracing/opentracing-go"
	jaegermetrics "github.com/uber/jaeger-lib/metrics/prometheus"

	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

// Config selects the sampler for the service's tracer.
type Config struct {
	Service string

	// Mode is either "probabilistic" or "const" (keep every span).
	Mode string

	// Rate is the sampled fraction in probabilistic mode.
	Rate float64
}

var (
	// jaegerRegisterer is a singleton so tracer metrics register once
	// against the Prometheus DefaultRegisterer.
	jaegerRegisterer = jaegermetrics.New(jaegermetrics.WithRegisterer(prometheus.DefaultRegisterer))
)

// New configures Jaeger as the global opentracing tracer and returns it
// with a closer which flushes buffered spans at shutdown.
func New(logger log.Logger, cfg Config) (opentracing.Tracer, io.Closer, error) {
	sampler := &jaegercfg.SamplerConfig{}
	switch cfg.Mode {
	case "", "probabilistic":
		sampler.Type = jaeger.SamplerTypeProbabilistic
		sampler.Param = cfg.Rate
	case "const":
		sampler.Type = jaeger.SamplerTypeConst
		sampler.Param = 1.0
	default:
		return nil, nil, fmt.Errorf("trace: unknown sampler mode %q", cfg.Mode)
	}

	tracer, closer, err := jaegercfg.Configuration{
		ServiceName: cfg.Service,
		Sampler:     sampler,
		Reporter: &jaegercfg.ReporterConfig{
			LogSpans: true,
		},
	}.NewTracer(
		jaegercfg.Logger(&jaegerLogger{inner: logger}),
		jaegercfg.Metrics(jaegerRegisterer),
	)
	if err != nil {
		return nil, nil, err
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closer, nil
}

var _ jaeger.Logger = (*jaegerLogger)(nil)

// jaegerLogger forwards the tracer's internal logging to go-kit.
type jaegerLogger struct {
	inner log.Logger
}

func (l *jaegerLogger) Error(msg string) {
	l.inner.Log("level", "error", "msg", msg)
}

func (l *jaegerLogger) Infof(msg string, args ...interface{}) {
	l.inner.Log("msg", fmt.Sprintf(msg, args...))
}
