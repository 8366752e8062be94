package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TraceConfig configures the in-process tracer. Conductor has no OTLP
// collector of its own; spans are recorded by an SDK TracerProvider so
// that span attributes and timings are available to any
// trace.SpanProcessor a host wires in later, but nothing is exported
// over the network by default.
type TraceConfig struct {
	ServiceName    string
	ServiceVersion string
}

// Tracer wraps an OpenTelemetry tracer scoped to one service name,
// grounded on the teacher's internal/observability.Tracer.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer builds a Tracer and installs its TracerProvider as the
// global provider. The returned shutdown function flushes and releases
// the provider's resources; callers should defer it.
func NewTracer(config TraceConfig) (*Tracer, func(context.Context) error) {
	if config.ServiceName == "" {
		config.ServiceName = "conductor"
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", config.ServiceName),
			attribute.String("service.version", config.ServiceVersion),
		),
	)
	if err != nil {
		res = resource.Default()
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(provider)

	return &Tracer{
			provider: provider,
			tracer:   provider.Tracer(config.ServiceName),
		}, func(ctx context.Context) error {
			return provider.Shutdown(ctx)
		}
}

// Start begins a span named name, attaching attrs as span attributes.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
