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

	"github.com/kbukum/agentflow/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// Enabled turns on metric export.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// ServiceName is the name of the service.
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	// ServiceVersion is the version of the service.
	ServiceVersion string `yaml:"service_version" mapstructure:"service_version"`
	// Environment is the deployment environment.
	Environment string `yaml:"environment" mapstructure:"environment"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Insecure allows insecure connections (for development).
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`
	// Interval is the metric export interval.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
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

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
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

// Metrics holds the instruments recorded by the orchestrator and the HTTP
// surface.
type Metrics struct {
	runTotal        metric.Int64Counter
	runDuration     metric.Float64Histogram
	runActive       metric.Int64UpDownCounter
	nodeTotal       metric.Int64Counter
	nodeDuration    metric.Float64Histogram
	nodeActive      metric.Int64UpDownCounter
	nodeSkipped     metric.Int64Counter
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	if m.runTotal, err = meter.Int64Counter("workflow.runs",
		metric.WithDescription("Completed workflow runs by pattern and status"),
	); err != nil {
		return nil, fmt.Errorf("creating workflow.runs counter: %w", err)
	}
	if m.runDuration, err = meter.Float64Histogram("workflow.run.duration",
		metric.WithDescription("Wall-clock duration of workflow runs"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating workflow.run.duration histogram: %w", err)
	}
	if m.runActive, err = meter.Int64UpDownCounter("workflow.runs.active",
		metric.WithDescription("Workflow runs currently executing"),
	); err != nil {
		return nil, fmt.Errorf("creating workflow.runs.active gauge: %w", err)
	}
	if m.nodeTotal, err = meter.Int64Counter("workflow.nodes",
		metric.WithDescription("Node executions by node and status"),
	); err != nil {
		return nil, fmt.Errorf("creating workflow.nodes counter: %w", err)
	}
	if m.nodeDuration, err = meter.Float64Histogram("workflow.node.duration",
		metric.WithDescription("Duration of node executions"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating workflow.node.duration histogram: %w", err)
	}
	if m.nodeActive, err = meter.Int64UpDownCounter("workflow.nodes.active",
		metric.WithDescription("Node executions currently holding a concurrency slot"),
	); err != nil {
		return nil, fmt.Errorf("creating workflow.nodes.active gauge: %w", err)
	}
	if m.nodeSkipped, err = meter.Int64Counter("workflow.nodes.skipped",
		metric.WithDescription("Nodes never started because the run aborted or was cancelled"),
	); err != nil {
		return nil, fmt.Errorf("creating workflow.nodes.skipped counter: %w", err)
	}
	if m.requestTotal, err = meter.Int64Counter("http.requests",
		metric.WithDescription("HTTP requests by route and status"),
	); err != nil {
		return nil, fmt.Errorf("creating http.requests counter: %w", err)
	}
	if m.requestDuration, err = meter.Float64Histogram("http.request.duration",
		metric.WithDescription("Duration of HTTP requests"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating http.request.duration histogram: %w", err)
	}

	return &m, nil
}

// RecordRunStart increments the active run count.
func (m *Metrics) RecordRunStart(ctx context.Context) {
	m.runActive.Add(ctx, 1)
}

// RecordRunEnd decrements active runs and records the finished run.
func (m *Metrics) RecordRunEnd(ctx context.Context, pattern, status string, duration time.Duration) {
	m.runActive.Add(ctx, -1)
	m.runTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pattern", pattern),
		attribute.String("status", status),
	))
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("pattern", pattern),
	))
}

// RecordNodeStart increments the active node count.
func (m *Metrics) RecordNodeStart(ctx context.Context) {
	m.nodeActive.Add(ctx, 1)
}

// RecordNodeEnd decrements active nodes and records the finished execution.
func (m *Metrics) RecordNodeEnd(ctx context.Context, node, status string, duration time.Duration) {
	m.nodeActive.Add(ctx, -1)
	m.nodeTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("node", node),
		attribute.String("status", status),
	))
	m.nodeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("node", node),
	))
}

// RecordSkipped records nodes that were never started.
func (m *Metrics) RecordSkipped(ctx context.Context, pattern string, n int) {
	if n <= 0 {
		return
	}
	m.nodeSkipped.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("pattern", pattern),
	))
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
	))
}
