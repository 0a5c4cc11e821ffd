// Package observability provides OpenTelemetry tracing and metrics for
// workflow runs, node executions and the HTTP surface.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, cfg.Tracing)
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanNodeExecute)
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, cfg.Metrics)
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("agentflow"))
//	metrics.RecordNodeEnd(ctx, "summarize", "completed", duration)
//
// Health Checks:
//
//	health := observability.NewServiceHealth("agentflow", version)
//	health.AddComponent(registry.CheckHealth(ctx))
package observability
