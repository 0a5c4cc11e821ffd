package workflow

import (
	"context"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/agentflow/errors"
	"github.com/kbukum/agentflow/logger"
	"github.com/kbukum/agentflow/observability"
	"github.com/kbukum/agentflow/resilience"
)

// Middleware decorates an Executor.
type Middleware func(Executor) Executor

// Chain applies middleware so that the first one is outermost.
func Chain(exec Executor, mw ...Middleware) Executor {
	for i := len(mw) - 1; i >= 0; i-- {
		exec = mw[i](exec)
	}
	return exec
}

// WithTracing wraps each execution in a span named "{prefix}.{node}".
func WithTracing(prefix string) Middleware {
	return func(next Executor) Executor {
		return ExecutorFunc(func(ctx context.Context, req Request) (string, error) {
			ctx, span := observability.StartSpan(ctx, prefix+"."+req.Node)
			defer span.End()

			span.SetAttributes(
				attribute.String(observability.AttrNodeID, req.Node),
				attribute.Int("executor.input.length", len(req.Input)),
			)

			out, err := next.Execute(ctx, req)
			if err != nil {
				observability.SetSpanError(ctx, err)
			}
			return out, err
		})
	}
}

// WithMetrics records node count, duration and in-flight gauges.
func WithMetrics(metrics *observability.Metrics) Middleware {
	return func(next Executor) Executor {
		if metrics == nil {
			return next
		}
		return ExecutorFunc(func(ctx context.Context, req Request) (string, error) {
			metrics.RecordNodeStart(ctx)
			start := time.Now()
			out, err := next.Execute(ctx, req)

			status := string(StatusCompleted)
			if err != nil {
				status = string(StatusFailed)
			}
			metrics.RecordNodeEnd(ctx, req.Node, status, time.Since(start))
			return out, err
		})
	}
}

// WithLogging logs every execution with its duration and outcome.
func WithLogging(log *logger.Logger) Middleware {
	return func(next Executor) Executor {
		return ExecutorFunc(func(ctx context.Context, req Request) (string, error) {
			start := time.Now()
			out, err := next.Execute(ctx, req)

			fields := logger.MergeWithDuration(logger.Fields(
				logger.FieldNode, req.Node,
				"input_bytes", len(req.Input),
				"output_bytes", len(out),
			), time.Since(start))

			l := log.WithContext(ctx)
			if err != nil {
				l.Error("executor failed", logger.MergeWithError(fields, err))
			} else {
				l.Debug("executor completed", fields)
			}
			return out, err
		})
	}
}

// WithBulkhead runs each execution inside bulkhead. A call that gets no slot
// fails with a service unavailable error and never reaches next; a
// cancelled wait returns the context error.
func WithBulkhead(bulkhead *resilience.Bulkhead) Middleware {
	return func(next Executor) Executor {
		return ExecutorFunc(func(ctx context.Context, req Request) (string, error) {
			out, err := resilience.ExecuteWithResult(bulkhead, ctx, func() (string, error) {
				return next.Execute(ctx, req)
			})
			if stderrors.Is(err, resilience.ErrBulkheadFull) || stderrors.Is(err, resilience.ErrBulkheadTimeout) {
				return "", errors.ServiceUnavailable(bulkhead.Name()).WithCause(err).WithDetail("node", req.Node)
			}
			return out, err
		})
	}
}

// WithRateLimit waits for a token from limiter before each execution.
// A cancelled wait fails the execution with a rate limit error.
func WithRateLimit(limiter *resilience.RateLimiter) Middleware {
	return func(next Executor) Executor {
		return ExecutorFunc(func(ctx context.Context, req Request) (string, error) {
			if err := limiter.Wait(ctx); err != nil {
				return "", errors.RateLimited().WithCause(err).WithDetail("node", req.Node)
			}
			return next.Execute(ctx, req)
		})
	}
}
