package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/floq/logger"
	"github.com/kbukum/floq/stream"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
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
	// Interval is the metric export interval.
	Interval time.Duration `mapstructure:"interval"`
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider and installs it globally.
// The provider should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// StageMetrics holds the instruments recorded for pipeline runs.
// Use Observer to bind them to one task.
type StageMetrics struct {
	items     metric.Int64Counter
	errors    metric.Int64Counter
	runs      metric.Int64Counter
	active    metric.Int64UpDownCounter
	delivered metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewStageMetrics creates pipeline instruments on the given meter.
func NewStageMetrics(meter metric.Meter) (*StageMetrics, error) {
	items, err := meter.Int64Counter("floq.stage.items",
		metric.WithDescription("Steps taken by a stage, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating floq.stage.items counter: %w", err)
	}

	errs, err := meter.Int64Counter("floq.stage.errors",
		metric.WithDescription("Stage failures"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating floq.stage.errors counter: %w", err)
	}

	runs, err := meter.Int64Counter("floq.task.runs",
		metric.WithDescription("Finished task runs by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating floq.task.runs counter: %w", err)
	}

	active, err := meter.Int64UpDownCounter("floq.task.active",
		metric.WithDescription("Task runs in progress"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating floq.task.active gauge: %w", err)
	}

	delivered, err := meter.Int64Counter("floq.task.delivered",
		metric.WithDescription("Values accepted by task sinks"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating floq.task.delivered counter: %w", err)
	}

	duration, err := meter.Float64Histogram("floq.task.duration",
		metric.WithDescription("Duration of task runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating floq.task.duration histogram: %w", err)
	}

	return &StageMetrics{
		items:     items,
		errors:    errs,
		runs:      runs,
		active:    active,
		delivered: delivered,
		duration:  duration,
	}, nil
}

// Observer returns a stream.Observer recording into m under the task name.
func (m *StageMetrics) Observer(task string) stream.Observer {
	return &taskMetrics{m: m, task: attribute.String("task", task)}
}

type taskMetrics struct {
	stream.BaseObserver
	m    *StageMetrics
	task attribute.KeyValue
}

func (t *taskMetrics) OnStart(string, string) {
	t.m.active.Add(context.Background(), 1, metric.WithAttributes(t.task))
}

func (t *taskMetrics) OnItem(stage string, kind stream.Kind, outcome stream.Outcome) {
	t.m.items.Add(context.Background(), 1, metric.WithAttributes(
		t.task,
		attribute.String("stage", stage),
		attribute.String("kind", string(kind)),
		attribute.String("outcome", outcome.String()),
	))
}

func (t *taskMetrics) OnError(stage string, kind stream.Kind, _ error) {
	t.m.errors.Add(context.Background(), 1, metric.WithAttributes(
		t.task,
		attribute.String("stage", stage),
		attribute.String("kind", string(kind)),
	))
}

func (t *taskMetrics) OnFinish(r stream.Report) {
	ctx := context.Background()
	t.m.active.Add(ctx, -1, metric.WithAttributes(t.task))
	t.m.runs.Add(ctx, 1, metric.WithAttributes(t.task, attribute.String("status", string(r.Status))))
	t.m.delivered.Add(ctx, r.Delivered, metric.WithAttributes(t.task))
	t.m.duration.Record(ctx, r.Duration.Seconds(), metric.WithAttributes(t.task))
}
