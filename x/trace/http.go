// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package trace

import (
	"net/http"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// StartClientSpan opens a client span for an outbound HTTP call and
// stamps req's headers so the far side can join the trace. Callers
// close the span with FinishClientSpan once the response is in.
func StartClientSpan(name string, req *http.Request) opentracing.Span {
	tracer := opentracing.GlobalTracer()
	span := tracer.StartSpan(name)

	ext.SpanKindRPCClient.Set(span)
	ext.HTTPUrl.Set(span, req.URL.String())
	ext.HTTPMethod.Set(span, req.Method)

	tracer.Inject(
		span.Context(),
		opentracing.HTTPHeaders,
		opentracing.HTTPHeadersCarrier(req.Header),
	)
	return span
}

// FinishClientSpan records the call's outcome and closes the span.
func FinishClientSpan(span opentracing.Span, statusCode int, err error) {
	if statusCode > 0 {
		ext.HTTPStatusCode.Set(span, uint16(statusCode))
	}
	if err != nil {
		ext.Error.Set(span, true)
		span.LogKV("event", "error", "message", err.Error())
	}
	span.Finish()
}

// FromRequest continues the trace carried by an inbound request, or
// starts a fresh span when the caller sent no trace headers.
func FromRequest(name string, req *http.Request) opentracing.Span {
	tracer := opentracing.GlobalTracer()

	ctx, _ := tracer.Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(req.Header))
	return tracer.StartSpan(name, ext.RPCServerOption(ctx))
}
