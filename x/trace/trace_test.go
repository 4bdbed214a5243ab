// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package trace

import (
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/opentracing/opentracing-go"
)

func TestTrace__ConstSampler(t *testing.T) {
	tracer, closer, err := New(log.NewNopLogger(), Config{Service: "test", Mode: "const"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { closer.Close() })

	createParentWithChild(tracer)
}

func TestTrace__ProbabilisticSampler(t *testing.T) {
	tracer, closer, err := New(log.NewNopLogger(), Config{Service: "test", Rate: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { closer.Close() })

	createParentWithChild(tracer)
}

func TestTrace__UnknownMode(t *testing.T) {
	if _, _, err := New(log.NewNopLogger(), Config{Service: "test", Mode: "other"}); err == nil {
		t.Error("expected error")
	}
}

func createParentWithChild(tracer opentracing.Tracer) {
	parent := tracer.StartSpan("say-hello")

	child := tracer.StartSpan("child", opentracing.ChildOf(parent.Context()))
	child.Finish()

	parent.Finish()
}
