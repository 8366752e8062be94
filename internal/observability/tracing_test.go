package observability

import (
	"context"
	"testing"
)

func TestNewTracerStartsAndEndsSpans(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{ServiceName: "test-service", ServiceVersion: "1.0.0"})
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	}()

	ctx, span := tracer.Start(context.Background(), "unit-test")
	if span == nil {
		t.Fatal("expected a non-nil span")
	}
	if ctx == nil {
		t.Fatal("expected a non-nil context")
	}
	span.End()
}

func TestNewTracerDefaultsServiceName(t *testing.T) {
	tracer, shutdown := NewTracer(TraceConfig{})
	defer shutdown(context.Background())

	if tracer.tracer == nil {
		t.Fatal("expected NewTracer to populate a tracer even with a zero-value config")
	}
}
