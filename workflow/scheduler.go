package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/agentflow/logger"
	"github.com/kbukum/agentflow/observability"
	"github.com/kbukum/agentflow/resilience"
)

// Scheduler executes a validated graph layer by layer. Nodes of a layer run
// concurrently; a layer starts only after the previous one has finished.
// A single bulkhead sized Config.MaxConcurrency bounds the whole run.
type Scheduler struct {
	Config Config
	// Logger defaults to the registered "scheduler" logger.
	Logger *logger.Logger
	// Metrics records run-level instruments. Nil disables them.
	Metrics *observability.Metrics
	// Observer receives progress events. Nil disables them.
	Observer Observer
}

// Run executes g. nodes must hold an entry with an executor for every node
// of g. Only root nodes receive image.
//
// On a node failure under FailAbort, or on timeout or cancellation, Run
// returns the partial result together with the error; Result.Err is set to
// the same error.
func (s *Scheduler) Run(ctx context.Context, g *Graph, nodes map[string]Node, task, image string) (*Result, error) {
	return s.run(ctx, PatternGraph, g, nodes, task, image)
}

func (s *Scheduler) run(ctx context.Context, pattern Pattern, g *Graph, nodes map[string]Node, task, image string) (*Result, error) {
	for _, id := range g.nodes {
		if n, ok := nodes[id]; !ok || n.Executor == nil {
			return nil, invalidf("node %q has no executor", id)
		}
	}

	cfg := s.Config
	cfg.ApplyDefaults()
	if cfg.FailurePolicy != FailAbort && cfg.FailurePolicy != FailDegrade {
		return nil, invalidf("unknown failure policy %q", cfg.FailurePolicy)
	}

	runID := uuid.NewString()
	rc := observability.NewRunContext(runID, string(pattern), s.Metrics)
	ctx, span := rc.StartSpan(ctx, observability.SpanWorkflowRun, g.Len(), len(g.layers))
	ctx = logger.ContextWithRunID(ctx, runID)

	runCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	log := s.logger().WithContext(ctx).WithFields(logger.Fields(logger.FieldPattern, string(pattern)))
	log.Info("workflow run started", logger.Fields(
		"nodes", g.Len(),
		"layers", len(g.layers),
		"max_concurrency", cfg.MaxConcurrency,
		"failure_policy", string(cfg.FailurePolicy),
	))

	emit := func(Event) {}
	if s.Observer != nil {
		emit = func(e Event) {
			e.RunID = runID
			e.Pattern = pattern
			e.Time = time.Now()
			s.Observer.OnEvent(e)
		}
	}
	emit(Event{Type: EventRunStarted})

	exec := &layerExecution{
		graph:    g,
		nodes:    nodes,
		task:     task,
		image:    image,
		log:      log,
		emit:     emit,
		results:  make(map[string]NodeResult, g.Len()),
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{Name: "workflow." + runID, MaxConcurrent: cfg.MaxConcurrency}),
	}

	var runErr error
	for depth, layer := range g.layers {
		if runCtx.Err() != nil {
			break
		}
		log.Debug("layer started", logger.Fields(logger.FieldLayer, depth, "size", len(layer)))
		exec.runLayer(runCtx, depth, layer)
		log.Debug("layer finished", logger.Fields(logger.FieldLayer, depth))

		if cfg.FailurePolicy == FailAbort {
			if failed, ok := exec.firstFailure(layer); ok {
				runErr = failed.Err
				break
			}
		}
	}

	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		runErr = ctx.Err()
	case runCtx.Err() != nil:
		// Either the configured timeout or a deadline on the caller's ctx.
		runErr = &WorkflowTimeoutError{Timeout: cfg.Timeout, Completed: exec.completed()}
	}

	result := exec.assemble(pattern, runID)
	result.Err = runErr
	result.Duration = rc.Duration()

	if len(result.Skipped) > 0 && s.Metrics != nil {
		s.Metrics.RecordSkipped(ctx, string(pattern), len(result.Skipped))
	}
	span.SetAttributes(attribute.Int("workflow.nodes.failed", len(result.Failed)))
	rc.End(ctx, span, runStatus(result), runErr)

	finished := Event{Type: EventRunFinished, Status: runStatus(result), DurationMS: result.Duration.Milliseconds()}
	if runErr != nil {
		finished.Error = runErr.Error()
	}
	emit(finished)

	fields := logger.Fields(
		logger.FieldStatus, runStatus(result),
		"failed", len(result.Failed),
		"skipped", len(result.Skipped),
	)
	if runErr != nil {
		log.Error("workflow run stopped", logger.MergeWithDuration(logger.MergeWithError(fields, runErr), result.Duration))
		return result, runErr
	}
	log.Info("workflow run finished", logger.MergeWithDuration(fields, result.Duration))
	return result, nil
}

func (s *Scheduler) logger() *logger.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logger.Get("scheduler")
}

func runStatus(r *Result) string {
	switch {
	case r.Err == nil && len(r.Failed) == 0:
		return "completed"
	case r.Err == nil:
		return "degraded"
	case errors.Is(r.Err, context.Canceled):
		return "cancelled"
	case errors.Is(r.Err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "failed"
	}
}

// layerExecution is the mutable state of one run. results is written once
// per node, under mu.
type layerExecution struct {
	graph    *Graph
	nodes    map[string]Node
	task     string
	image    string
	log      *logger.Logger
	emit     func(Event)
	bulkhead *resilience.Bulkhead

	mu      sync.RWMutex
	results map[string]NodeResult
}

func (e *layerExecution) runLayer(ctx context.Context, depth int, layer []string) {
	var wg sync.WaitGroup

	for _, id := range layer {
		wg.Add(1)
		go func(nodeID string) {
			defer wg.Done()
			// A node still waiting for a slot when the run is cancelled
			// never starts and is reported as skipped.
			if err := e.bulkhead.Acquire(ctx); err != nil {
				return
			}
			defer e.bulkhead.Release()
			if ctx.Err() != nil {
				return
			}

			nr := e.executeNode(ctx, depth, e.nodes[nodeID])
			e.mu.Lock()
			e.results[nodeID] = nr
			e.mu.Unlock()
		}(id)
	}

	wg.Wait()
}

func (e *layerExecution) executeNode(ctx context.Context, depth int, node Node) (nr NodeResult) {
	prereqs := e.graph.deps[node.ID]
	e.mu.RLock()
	input := BuildInput(node, prereqs, e.results, e.task)
	e.mu.RUnlock()

	req := Request{Node: node.ID, Input: input}
	if len(prereqs) == 0 {
		req.Image = e.image
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanNodeExecute)
	span.SetAttributes(
		attribute.String(observability.AttrNodeID, node.ID),
		attribute.Int(observability.AttrLayer, depth),
	)
	defer span.End()

	nr = NodeResult{Node: node.ID, Layer: depth, StartedAt: time.Now()}
	e.emit(Event{Type: EventNodeStarted, Node: node.ID, Layer: depth})
	defer func() {
		if r := recover(); r != nil {
			nr.Err = &NodeExecutionError{Node: node.ID, Layer: depth, Err: fmt.Errorf("executor panic: %v", r)}
			nr.Output = ""
		}
		nr.FinishedAt = time.Now()
		nr.Duration = nr.FinishedAt.Sub(nr.StartedAt)
		fields := logger.MergeWithDuration(logger.Fields(logger.FieldNode, node.ID, logger.FieldLayer, depth), nr.Duration)
		finished := Event{Type: EventNodeFinished, Node: node.ID, Layer: depth, DurationMS: nr.Duration.Milliseconds()}
		if nr.Err != nil {
			nr.Status = StatusFailed
			observability.SetSpanError(ctx, nr.Err)
			e.log.Error("node failed", logger.MergeWithError(fields, nr.Err))
			finished.Status, finished.Error = string(nr.Status), nr.Cause().Error()
			e.emit(finished)
			return
		}
		nr.Status = StatusCompleted
		e.log.Debug("node completed", fields)
		finished.Status, finished.Output = string(nr.Status), nr.Output
		e.emit(finished)
	}()

	out, err := node.Executor.Execute(ctx, req)
	if err != nil {
		nr.Err = &NodeExecutionError{Node: node.ID, Layer: depth, Err: err}
		return nr
	}
	nr.Output = out
	return nr
}

// firstFailure returns the first failed node of layer in declaration order.
func (e *layerExecution) firstFailure(layer []string) (NodeResult, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, id := range layer {
		if nr, ok := e.results[id]; ok && nr.Status == StatusFailed {
			return nr, true
		}
	}
	return NodeResult{}, false
}

func (e *layerExecution) completed() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	for _, nr := range e.results {
		if nr.Status == StatusCompleted {
			n++
		}
	}
	return n
}

func (e *layerExecution) assemble(pattern Pattern, runID string) *Result {
	e.mu.RLock()
	defer e.mu.RUnlock()

	layers := e.graph.Layers()
	result := &Result{
		RunID:   runID,
		Pattern: pattern,
		Nodes:   make(map[string]NodeResult, len(e.results)),
		Layers:  layers,
		Metadata: map[string]any{
			MetaExecutionLayers: layers,
			MetaTotalLayers:     len(layers),
			MetaNodesUsed:       e.graph.Nodes(),
		},
	}
	for _, id := range e.graph.nodes {
		nr, ok := e.results[id]
		if !ok {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		result.Nodes[id] = nr
		if nr.Status == StatusFailed {
			result.Failed = append(result.Failed, id)
		}
	}
	layerResults := make([]LayerResult, len(layers))
	for depth, layer := range layers {
		lr := LayerResult{Layer: depth, Nodes: append([]string(nil), layer...), Outputs: make(map[string]string, len(layer))}
		for _, id := range layer {
			if nr, ok := e.results[id]; ok && nr.Status == StatusCompleted {
				lr.Outputs[id] = nr.Output
			}
		}
		layerResults[depth] = lr
	}
	result.Metadata[MetaLayerResults] = layerResults

	for _, id := range e.graph.layers[len(e.graph.layers)-1] {
		if nr, ok := e.results[id]; ok {
			result.Outputs = append(result.Outputs, NodeOutput{Node: id, Output: nr.effectiveOutput()})
		}
	}
	return result
}
