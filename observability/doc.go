// Package observability connects pipeline runs to OpenTelemetry and to an
// in-memory monitor.
//
// Tracing and metrics export over OTLP HTTP:
//
//	tcfg := observability.DefaultTracerConfig("floq")
//	tp, err := observability.InitTracer(ctx, &tcfg)
//	defer tp.Shutdown(ctx)
//
//	mcfg := observability.DefaultMeterConfig("floq")
//	mp, err := observability.InitMeter(ctx, &mcfg)
//	defer mp.Shutdown(ctx)
//
// Attach per-task observers when building a task:
//
//	metrics, _ := observability.NewStageMetrics(observability.Meter("floq"))
//	monitor := observability.NewMonitor(time.Second)
//	task := stream.To(flow, sink, stream.WithObserver(stream.Observers(
//		metrics.Observer("words"),
//		monitor.Observer("words"),
//		observability.NewSpanObserver(ctx, nil),
//	)))
package observability
