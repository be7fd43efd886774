// Package observability provides OpenTelemetry tracing and Prometheus
// metrics for analysis runs.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies spans emitted by codechart.
const TracerName = "github.com/efebarandurmaz/codechart"

// TracingConfig selects the exporter and resource attributes. An empty
// OTLPEndpoint leaves the global no-op provider in place.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string  // host:port of an OTLP gRPC collector
	SampleRate     float64 // fraction of root spans kept, clamped to [0,1]
}

// DefaultTracingConfig samples everything and exports nowhere.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "codechart",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// TracerProvider owns the SDK provider when one was installed.
type TracerProvider struct {
	sdk    *sdktrace.TracerProvider
	tracer trace.Tracer
}

// InitTracing installs a batching OTLP exporter as the global tracer
// provider. Without an endpoint it returns a provider backed by whatever
// global is already set, which is a no-op unless a test replaced it.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}
	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{tracer: otel.Tracer(TracerName)}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := serviceResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(samplerFor(cfg.SampleRate))),
	)
	otel.SetTracerProvider(sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &TracerProvider{sdk: sdk, tracer: sdk.Tracer(TracerName)}, nil
}

func serviceResource(cfg *TracingConfig) (*resource.Resource, error) {
	return resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown flushes pending spans. It is a no-op without an exporter.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.sdk == nil {
		return nil
	}
	return tp.sdk.Shutdown(ctx)
}

// Tracer returns the codechart tracer.
func (tp *TracerProvider) Tracer() trace.Tracer { return tp.tracer }

// Span kinds used as the codechart.span.kind attribute.
const (
	SpanKindAgent   = "agent"
	SpanKindLLM     = "llm"
	SpanKindFile    = "file"
	SpanKindDiagram = "diagram"
	SpanKindStore   = "store"
)

// StartAgentSpan opens the span that covers one pipeline stage.
func StartAgentSpan(ctx context.Context, agentName string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "agent."+agentName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("codechart.agent.name", agentName),
			attribute.String("codechart.span.kind", SpanKindAgent),
		),
	)
}

// StartLLMSpan starts a span for an LLM call. operation is "classify" or
// "narrate".
func StartLLMSpan(ctx context.Context, provider, operation string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "llm."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("codechart.span.kind", SpanKindLLM),
			attribute.String("llm.provider", provider),
			attribute.String("llm.operation", operation),
		),
	)
}

// RecordLLMMetrics attaches token usage and latency to an LLM span.
func RecordLLMMetrics(span trace.Span, inputTokens, outputTokens int, duration time.Duration) {
	span.SetAttributes(
		attribute.Int("llm.input_tokens", inputTokens),
		attribute.Int("llm.output_tokens", outputTokens),
		attribute.Int("llm.total_tokens", inputTokens+outputTokens),
		attribute.Int64("llm.duration_ms", duration.Milliseconds()),
	)
}

// StartFileSpan starts a span covering extraction of one file.
func StartFileSpan(ctx context.Context, path string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "file.extract",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("codechart.span.kind", SpanKindFile),
			attribute.String("file.path", path),
		),
	)
}

// RecordFileResult marks a file span as degraded when extraction fell back.
func RecordFileResult(span trace.Span, category string, functions, edges int, degraded bool) {
	span.SetAttributes(
		attribute.String("file.category", category),
		attribute.Int("file.functions", functions),
		attribute.Int("file.edges", edges),
		attribute.Bool("file.degraded", degraded),
	)
	if degraded {
		span.SetStatus(codes.Error, "degraded")
	}
}

// StartDiagramSpan starts a span for one diagram renderer.
func StartDiagramSpan(ctx context.Context, kind string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "diagram."+kind,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("codechart.span.kind", SpanKindDiagram),
			attribute.String("diagram.kind", kind),
		),
	)
}

// StartStoreSpan starts a span for a write to an external store.
func StartStoreSpan(ctx context.Context, store string, items int) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "store."+store,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("codechart.span.kind", SpanKindStore),
			attribute.String("store.name", store),
			attribute.Int("store.items", items),
		),
	)
}

// RecordError marks span failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetAgentMetrics records a stage's item counts and score.
func SetAgentMetrics(span trace.Span, inputItems, outputItems, skippedItems int, score float64) {
	span.SetAttributes(
		attribute.Int("agent.input_items", inputItems),
		attribute.Int("agent.output_items", outputItems),
		attribute.Int("agent.skipped_items", skippedItems),
		attribute.Float64("agent.score", score),
	)
}
