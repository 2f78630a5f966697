// Package observability wires OpenTelemetry tracing and metrics for the
// meetscribe service.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("meetscribe"))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, "pipeline.transcribe")
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("meetscribe"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("meetscribe"))
//	metrics.RecordStage(ctx, "transcribe", "ok", duration)
//
// When no exporter is configured the global no-op providers are used and
// every helper in this package is safe to call.
package observability
