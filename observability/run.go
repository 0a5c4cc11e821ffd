package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RunContext holds observability state for one workflow run.
type RunContext struct {
	RunID     string
	Pattern   string
	StartTime time.Time
	Metrics   *Metrics
}

// NewRunContext creates a run context. If metrics is nil, metric recording
// is silently skipped.
func NewRunContext(runID, pattern string, metrics *Metrics) *RunContext {
	return &RunContext{
		RunID:     runID,
		Pattern:   pattern,
		StartTime: time.Now(),
		Metrics:   metrics,
	}
}

type runContextKey struct{}

// WithRunContext stores a RunContext in the context.
func WithRunContext(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

// RunContextFromContext retrieves the RunContext from context, or nil.
func RunContextFromContext(ctx context.Context) *RunContext {
	if rc, ok := ctx.Value(runContextKey{}).(*RunContext); ok {
		return rc
	}
	return nil
}

// StartSpan starts the run span and records the run start metric. The
// returned context carries both the span and the RunContext.
func (rc *RunContext) StartSpan(ctx context.Context, spanName string, nodes, layers int) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, spanName)
	span.SetAttributes(
		attribute.String(AttrRunID, rc.RunID),
		attribute.String(AttrPattern, rc.Pattern),
		attribute.Int(AttrNodeCount, nodes),
		attribute.Int(AttrLayerCount, layers),
	)
	if rc.Metrics != nil {
		rc.Metrics.RecordRunStart(ctx)
	}
	return WithRunContext(ctx, rc), span
}

// End ends the span and records run-end metrics.
func (rc *RunContext) End(ctx context.Context, span trace.Span, status string, err error) {
	duration := rc.Duration()

	if err != nil {
		SetSpanError(trace.ContextWithSpan(ctx, span), err)
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}
	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	span.End()

	if rc.Metrics != nil {
		rc.Metrics.RecordRunEnd(ctx, rc.Pattern, status, duration)
	}
}

// Duration returns the elapsed time since the run started.
func (rc *RunContext) Duration() time.Duration {
	return time.Since(rc.StartTime)
}
