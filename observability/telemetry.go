package observability

import (
	"context"
	stderrors "errors"
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Telemetry owns the tracer and meter providers of a process. It has the
// shape of a lifecycle component: Start installs the enabled providers and
// Stop flushes and shuts them down.
type Telemetry struct {
	tracing TracerConfig
	metrics MeterConfig

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// NewTelemetry creates a telemetry component. Disabled configs leave the
// global no-op providers in place.
func NewTelemetry(tracing TracerConfig, metrics MeterConfig) *Telemetry {
	return &Telemetry{tracing: tracing, metrics: metrics}
}

// Name returns "telemetry".
func (t *Telemetry) Name() string { return "telemetry" }

// Start initializes the enabled providers.
func (t *Telemetry) Start(ctx context.Context) error {
	if t.tracing.Enabled && t.tp == nil {
		tp, err := InitTracer(ctx, t.tracing)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		t.tp = tp
	}
	if t.metrics.Enabled && t.mp == nil {
		mp, err := InitMeter(ctx, t.metrics)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		t.mp = mp
	}
	return nil
}

// Stop flushes and shuts down the providers it started.
func (t *Telemetry) Stop(ctx context.Context) error {
	var errs []error
	if t.tp != nil {
		errs = append(errs, t.tp.Shutdown(ctx))
		t.tp = nil
	}
	if t.mp != nil {
		errs = append(errs, t.mp.Shutdown(ctx))
		t.mp = nil
	}
	return stderrors.Join(errs...)
}

// Health reports which exporters are active.
func (t *Telemetry) Health(_ context.Context) Health {
	return Health{
		Name:   t.Name(),
		Status: HealthStatusUp,
		Details: map[string]string{
			"tracing": exportState(t.tracing.Enabled, t.tp != nil, t.tracing.Endpoint),
			"metrics": exportState(t.metrics.Enabled, t.mp != nil, t.metrics.Endpoint),
		},
	}
}

func exportState(enabled, running bool, endpoint string) string {
	switch {
	case !enabled:
		return "disabled"
	case !running:
		return "stopped"
	default:
		return endpoint
	}
}
