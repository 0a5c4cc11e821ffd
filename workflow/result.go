package workflow

import (
	"errors"
	"strings"
	"time"
)

// Status is the outcome of a node execution.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Pattern names a workflow composition.
type Pattern string

const (
	PatternSequential Pattern = "sequential"
	PatternParallel   Pattern = "parallel"
	PatternGraph      Pattern = "graph"
	PatternHybrid     Pattern = "hybrid"
)

// Metadata keys set on every Result.
const (
	MetaExecutionLayers = "execution_layers"
	MetaTotalLayers     = "total_layers"
	MetaNodesUsed       = "nodes_used"
	MetaStagePatterns   = "stage_patterns"
	MetaStagesExecuted  = "stages_executed"
	MetaLayerResults    = "layer_results"
)

// NodeResult is the outcome of a single node. It is written once, when the
// node finishes.
type NodeResult struct {
	Node   string
	Status Status
	Output string
	// Err is a *NodeExecutionError when the executor failed.
	Err        error
	Layer      int
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
}

// Cause returns the executor error without the NodeExecutionError wrapper.
func (r NodeResult) Cause() error {
	var ne *NodeExecutionError
	if errors.As(r.Err, &ne) && ne.Node == r.Node {
		return ne.Err
	}
	return r.Err
}

// effectiveOutput is what dependents see: the output, or an upstream
// failure marker for a failed node.
func (r NodeResult) effectiveOutput() string {
	if r.Status == StatusFailed {
		return UpstreamFailure(r.Node, r.Cause())
	}
	return r.Output
}

// NodeOutput is one terminal output of a run.
type NodeOutput struct {
	Node   string
	Output string
}

// LayerResult lists the nodes of one layer with the outputs of those that
// completed. It is stored under MetaLayerResults.
type LayerResult struct {
	Layer   int               `json:"layer"`
	Nodes   []string          `json:"nodes"`
	Outputs map[string]string `json:"outputs"`
}

// StageResult is the outcome of one hybrid stage.
type StageResult struct {
	Name    string
	Pattern Pattern
	// Task is the stage task after placeholder substitution.
	Task   string
	Result *Result
}

// Result is the outcome of a workflow run. On failure or cancellation it
// holds everything that completed before the run stopped.
type Result struct {
	RunID   string
	Pattern Pattern
	// Outputs are the terminal outputs in declaration order.
	Outputs  []NodeOutput
	Duration time.Duration
	Nodes    map[string]NodeResult
	Layers   [][]string
	// Skipped lists nodes that never started, in declaration order.
	Skipped []string
	// Failed lists nodes whose executor returned an error.
	Failed   []string
	Stages   []StageResult
	Metadata map[string]any
	Err      error
}

// Output returns the single terminal output, or every terminal output
// labelled with its node ID when there are several.
func (r *Result) Output() string {
	switch len(r.Outputs) {
	case 0:
		return ""
	case 1:
		return r.Outputs[0].Output
	}
	parts := make([]string, len(r.Outputs))
	for i, o := range r.Outputs {
		parts[i] = "[" + o.Node + "]\n" + o.Output
	}
	return strings.Join(parts, "\n\n")
}

// OutputOf returns the output of a node and whether it completed.
func (r *Result) OutputOf(id string) (string, bool) {
	nr, ok := r.Nodes[id]
	if !ok || nr.Status != StatusCompleted {
		return "", false
	}
	return nr.Output, true
}

// Succeeded reports whether the run finished without error and without
// failed nodes.
func (r *Result) Succeeded() bool {
	return r.Err == nil && len(r.Failed) == 0
}
