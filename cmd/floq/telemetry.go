package main

import (
	"context"
	stderrors "errors"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/floq/component"
	"github.com/kbukum/floq/observability"
)

// telemetry installs the OpenTelemetry providers the config enables and
// flushes them on stop.
type telemetry struct {
	cfg TelemetryConfig
	tp  *sdktrace.TracerProvider
	mp  *sdkmetric.MeterProvider
}

func (t *telemetry) component() component.Component {
	return component.Func("telemetry", t.start, t.stop)
}

func (t *telemetry) start(ctx context.Context) error {
	if t.cfg.Tracing.Enabled {
		tp, err := observability.InitTracer(ctx, &t.cfg.Tracing.TracerConfig)
		if err != nil {
			return err
		}
		t.tp = tp
	}
	if t.cfg.Metrics.Enabled {
		mp, err := observability.InitMeter(ctx, &t.cfg.Metrics.MeterConfig)
		if err != nil {
			return err
		}
		t.mp = mp
	}
	return nil
}

func (t *telemetry) stop(ctx context.Context) error {
	var errs []error
	if t.tp != nil {
		errs = append(errs, t.tp.Shutdown(ctx))
	}
	if t.mp != nil {
		errs = append(errs, t.mp.Shutdown(ctx))
	}
	return stderrors.Join(errs...)
}
