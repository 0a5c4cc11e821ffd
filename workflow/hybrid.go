package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/agentflow/logger"
	"github.com/kbukum/agentflow/observability"
)

// Placeholders substituted in a stage task.
const (
	PlaceholderOriginalTask   = "{original_task}"
	PlaceholderPreviousResult = "{previous_result}"
)

// Stage is one step of a hybrid workflow. Pattern is sequential, parallel
// or graph; graph stages take Dependencies or DSL. An empty Pattern means
// graph when dependencies are given and sequential otherwise.
type Stage struct {
	Name         string
	Pattern      Pattern
	Nodes        []Node
	Dependencies Dependencies
	DSL          string
	// Task may reference {original_task} and {previous_result}. When empty
	// the first stage gets the original task and later stages the previous
	// stage's output.
	Task string
}

type plannedStage struct {
	Stage
	graph *Graph
	nodes map[string]Node
}

// Hybrid runs stages in order, feeding each stage's output into the next
// through {previous_result}. The image reaches only the first stage. Under
// FailAbort a failing stage stops the run and the partial result is
// returned with the error. The timeout bounds the whole call, not each
// stage.
func (o *Orchestrator) Hybrid(ctx context.Context, stages []Stage, task string, opts ...RunOption) (*Result, error) {
	planned, err := o.planStages(stages)
	if err != nil {
		return nil, err
	}
	ro := o.runOptions(opts)

	totalNodes, totalLayers := 0, 0
	for _, st := range planned {
		totalNodes += st.graph.Len()
		totalLayers += len(st.graph.layers)
	}

	runID := uuid.NewString()
	rc := observability.NewRunContext(runID, string(PatternHybrid), o.metrics)
	ctx, span := rc.StartSpan(ctx, observability.SpanWorkflowRun, totalNodes, totalLayers)
	ctx = logger.ContextWithRunID(ctx, runID)
	log := o.log.WithContext(ctx).WithFields(logger.Fields(logger.FieldPattern, string(PatternHybrid)))
	log.Info("hybrid run started", logger.Fields("stages", len(planned)))

	runCtx := ctx
	if ro.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, ro.config.Timeout)
		defer cancel()
	}
	stageConfig := ro.config
	stageConfig.Timeout = 0

	result := &Result{
		RunID:    runID,
		Pattern:  PatternHybrid,
		Nodes:    make(map[string]NodeResult, totalNodes),
		Metadata: make(map[string]any),
	}
	patterns := make([]string, len(planned))
	for i, st := range planned {
		patterns[i] = string(st.Pattern)
	}

	previous, failedStage := "", ""
	executed := 0
	for i, st := range planned {
		if err := runCtx.Err(); err != nil {
			result.Err, failedStage = err, st.Name
			break
		}
		stageTask := resolveStageTask(st.Task, i, task, previous)
		image := ""
		if i == 0 {
			image = ro.image
		}

		stageCtx, stageSpan := observability.StartSpan(runCtx, observability.SpanWorkflowStage)
		stageSpan.SetAttributes(
			attribute.String(observability.AttrStage, st.Name),
			attribute.String(observability.AttrPattern, string(st.Pattern)),
		)
		s := &Scheduler{
			Config:   stageConfig,
			Logger:   o.log.WithFields(logger.Fields(logger.FieldStage, st.Name)),
			Observer: o.observer,
		}
		sr, err := s.run(stageCtx, st.Pattern, st.graph, st.nodes, stageTask, image)
		if err != nil {
			observability.SetSpanError(stageCtx, err)
		}
		stageSpan.End()

		if sr == nil {
			result.Err, failedStage = err, st.Name
			break
		}
		executed++
		result.Stages = append(result.Stages, StageResult{Name: st.Name, Pattern: st.Pattern, Task: stageTask, Result: sr})
		mergeStage(result, st.Name, sr)
		result.Outputs = sr.Outputs
		if err != nil {
			result.Err, failedStage = err, st.Name
			break
		}
		previous = sr.Output()
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && errors.Is(result.Err, context.DeadlineExceeded) {
		result.Err = &WorkflowTimeoutError{Timeout: ro.config.Timeout, Completed: completedNodes(result)}
	}

	for _, st := range planned[executed:] {
		for _, id := range st.graph.nodes {
			result.Skipped = append(result.Skipped, stageKey(st.Name, id))
		}
	}

	result.Metadata[MetaExecutionLayers] = result.Layers
	result.Metadata[MetaTotalLayers] = len(result.Layers)
	result.Metadata[MetaNodesUsed] = hybridNodes(planned)
	result.Metadata[MetaStagePatterns] = patterns
	result.Metadata[MetaStagesExecuted] = executed
	result.Metadata[MetaLayerResults] = hybridLayerResults(result.Stages)
	result.Duration = rc.Duration()

	if len(result.Skipped) > 0 && o.metrics != nil {
		o.metrics.RecordSkipped(ctx, string(PatternHybrid), len(result.Skipped))
	}
	rc.End(ctx, span, runStatus(result), result.Err)

	if result.Err != nil {
		log.Error("hybrid run stopped", logger.MergeWithError(logger.Fields(logger.FieldStage, failedStage, "stages_executed", executed), result.Err))
		return result, result.Err
	}
	log.Info("hybrid run finished", logger.MergeWithDuration(logger.Fields("stages_executed", executed), result.Duration))
	return result, nil
}

// planStages validates every stage before anything runs.
func (o *Orchestrator) planStages(stages []Stage) ([]plannedStage, error) {
	if len(stages) == 0 {
		return nil, invalidf("hybrid workflow declares no stages")
	}

	planned := make([]plannedStage, len(stages))
	names := make(map[string]bool, len(stages))
	for i, st := range stages {
		if st.Name == "" {
			st.Name = fmt.Sprintf("stage%d", i+1)
		}
		if names[st.Name] {
			return nil, invalidf("duplicate stage name %q", st.Name)
		}
		names[st.Name] = true
		if st.Pattern == "" {
			st.Pattern = PatternSequential
			if st.DSL != "" || len(st.Dependencies) > 0 {
				st.Pattern = PatternGraph
			}
		}

		deps, err := stageDependencies(st)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", st.Name, err)
		}
		ids, byID, err := indexNodes(st.Nodes)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", st.Name, err)
		}
		g, err := Build(ids, deps)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", st.Name, err)
		}
		if len(o.middleware) > 0 {
			for id, n := range byID {
				n.Executor = Chain(n.Executor, o.middleware...)
				byID[id] = n
			}
		}
		planned[i] = plannedStage{Stage: st, graph: g, nodes: byID}
	}
	return planned, nil
}

// stageDependencies derives a stage's dependency map from its pattern.
func stageDependencies(st Stage) (Dependencies, error) {
	switch st.Pattern {
	case PatternSequential:
		deps := make(Dependencies, len(st.Nodes))
		for i := 1; i < len(st.Nodes); i++ {
			deps.Add(st.Nodes[i].ID, st.Nodes[i-1].ID)
		}
		return deps, nil
	case PatternParallel:
		return nil, nil
	case PatternGraph:
		if st.DSL == "" {
			return st.Dependencies, nil
		}
		if len(st.Dependencies) > 0 {
			return nil, invalidf("dependencies and dsl are mutually exclusive")
		}
		return ParseDSL(st.DSL)
	default:
		return nil, invalidf("unsupported stage pattern %q", st.Pattern)
	}
}

func resolveStageTask(stageTask string, index int, original, previous string) string {
	if stageTask == "" {
		if index == 0 {
			stageTask = PlaceholderOriginalTask
		} else {
			stageTask = PlaceholderPreviousResult
		}
	}
	return strings.NewReplacer(
		PlaceholderOriginalTask, original,
		PlaceholderPreviousResult, previous,
	).Replace(stageTask)
}

func stageKey(stage, node string) string { return stage + "/" + node }

func mergeStage(result *Result, stage string, sr *Result) {
	for id, nr := range sr.Nodes {
		result.Nodes[stageKey(stage, id)] = nr
	}
	for _, layer := range sr.Layers {
		keyed := make([]string, len(layer))
		for i, id := range layer {
			keyed[i] = stageKey(stage, id)
		}
		result.Layers = append(result.Layers, keyed)
	}
	for _, id := range sr.Skipped {
		result.Skipped = append(result.Skipped, stageKey(stage, id))
	}
	for _, id := range sr.Failed {
		result.Failed = append(result.Failed, stageKey(stage, id))
	}
}

func hybridNodes(planned []plannedStage) []string {
	var out []string
	for _, st := range planned {
		for _, id := range st.graph.nodes {
			out = append(out, stageKey(st.Name, id))
		}
	}
	return out
}

func completedNodes(r *Result) int {
	n := 0
	for _, nr := range r.Nodes {
		if nr.Status == StatusCompleted {
			n++
		}
	}
	return n
}

// hybridLayerResults numbers the layers of all executed stages in run
// order with stage-qualified node keys.
func hybridLayerResults(stages []StageResult) []LayerResult {
	var out []LayerResult
	for _, st := range stages {
		layers, _ := st.Result.Metadata[MetaLayerResults].([]LayerResult)
		for _, lr := range layers {
			keyed := LayerResult{Layer: len(out), Nodes: make([]string, len(lr.Nodes)), Outputs: make(map[string]string, len(lr.Outputs))}
			for i, id := range lr.Nodes {
				keyed.Nodes[i] = stageKey(st.Name, id)
			}
			for id, text := range lr.Outputs {
				keyed.Outputs[stageKey(st.Name, id)] = text
			}
			out = append(out, keyed)
		}
	}
	return out
}
