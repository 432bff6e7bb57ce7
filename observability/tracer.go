package observability

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/floq/logger"
	"github.com/kbukum/floq/stream"
)

const defaultTracerName = "github.com/kbukum/floq/observability"

// TracerConfig configures the OpenTelemetry tracer.
type TracerConfig struct {
	// ServiceName is the name of the service.
	ServiceName string `mapstructure:"service_name"`
	// ServiceVersion is the version of the service.
	ServiceVersion string `mapstructure:"service_version"`
	// Environment is the deployment environment (dev, staging, prod).
	Environment string `mapstructure:"environment"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string `mapstructure:"endpoint"`
	// Insecure allows insecure connections (for development).
	Insecure bool `mapstructure:"insecure"`
	// SampleRate is the sampling rate (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate"`
}

// DefaultTracerConfig returns sensible defaults for development.
func DefaultTracerConfig(serviceName string) TracerConfig {
	return TracerConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

// InitTracer initializes the OpenTelemetry tracer provider and installs it globally.
// The provider should be shut down on application exit.
func InitTracer(ctx context.Context, config *TracerConfig) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(config.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("tracer initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"sample_rate", config.SampleRate,
	))

	return tp, nil
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// newResource creates an OpenTelemetry resource with service metadata.
func newResource(serviceName, serviceVersion, environment string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String(AttrServiceName, serviceName),
			attribute.String("service.version", serviceVersion),
			attribute.String("environment", environment),
		),
	)
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a new span using the default tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer(defaultTracerName).Start(ctx, name, opts...)
}

// SetSpanError records an error on the current span in context.
func SetSpanError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// Span names and attribute keys used by floq.
const (
	SpanTaskRun = "floq.task.run"

	AttrServiceName = "service.name"
	AttrTask        = "floq.task"
	AttrRunID       = "floq.run_id"
	AttrStage       = "floq.stage"
	AttrKind        = "floq.kind"
	AttrStatus      = "floq.status"
	AttrDelivered   = "floq.delivered"
	AttrSkipped     = "floq.skipped"
)

// SpanObserver records one span per task run, with an event for every
// stage error. A task runs once, so each task gets its own SpanObserver.
type SpanObserver struct {
	stream.BaseObserver
	tracer trace.Tracer
	parent context.Context

	mu   sync.Mutex
	span trace.Span
}

// NewSpanObserver creates a SpanObserver. A nil tracer uses the default tracer;
// spans are started as children of the span in parent, if any.
func NewSpanObserver(parent context.Context, tracer trace.Tracer) *SpanObserver {
	if tracer == nil {
		tracer = Tracer(defaultTracerName)
	}
	return &SpanObserver{tracer: tracer, parent: parent}
}

func (o *SpanObserver) OnStart(task, runID string) {
	_, span := o.tracer.Start(o.parent, SpanTaskRun, trace.WithAttributes(
		attribute.String(AttrTask, task),
		attribute.String(AttrRunID, runID),
	))
	o.mu.Lock()
	o.span = span
	o.mu.Unlock()
}

func (o *SpanObserver) OnError(stage string, kind stream.Kind, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.span == nil {
		return
	}
	o.span.RecordError(err, trace.WithAttributes(
		attribute.String(AttrStage, stage),
		attribute.String(AttrKind, string(kind)),
	))
}

func (o *SpanObserver) OnFinish(r stream.Report) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.span == nil {
		return
	}
	o.span.SetAttributes(
		attribute.String(AttrStatus, string(r.Status)),
		attribute.Int64(AttrDelivered, r.Delivered),
		attribute.Int64(AttrSkipped, r.Skipped),
	)
	if r.Status == stream.StatusFailed {
		o.span.SetStatus(codes.Error, r.Error)
	}
	o.span.End()
	o.span = nil
}
