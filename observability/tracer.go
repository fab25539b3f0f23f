// Package observability provides the ambient tracing and metrics the tool
// registry instruments its dispatch path with; the runner records neither
// spans nor metrics of its own. Both are optional:
// the zero-value configuration yields a no-op tracer provider and a no-op
// metrics recorder, so embedding the core never forces a collector
// dependency on a host that does not want one.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerConfig controls whether and how spans are exported.
type TracerConfig struct {
	// Enabled turns tracing on. When false, InitTracer installs a no-op
	// provider and every span becomes a zero-cost no-op.
	Enabled bool

	// ServiceName tags the resource attached to every span.
	ServiceName string

	// SamplingRatio is the fraction of runs sampled when Enabled, in (0,1];
	// zero or a negative value samples every run.
	SamplingRatio float64
}

// InitTracer installs a global TracerProvider per cfg and returns it so
// the caller can Shutdown it on process exit. Grounded on the teacher's
// pkg/observability/tracer.go InitGlobalTracer, generalized to a stdout
// exporter instead of an OTLP/gRPC collector dependency, since the core
// has no business assuming a deployed collector.
func InitTracer(ctx context.Context, cfg TracerConfig) (trace.TracerProvider, error) {
	if !cfg.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("observability: create stdout trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	ratio := cfg.SamplingRatio
	if ratio <= 0 {
		ratio = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(ratio)),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer returns a named tracer from whatever TracerProvider is currently
// installed (the no-op one until InitTracer is called with Enabled=true).
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
