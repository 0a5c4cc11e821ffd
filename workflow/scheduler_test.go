package workflow

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

// --- test helpers ---

// recorder captures every request it serves, keyed by node.
type recorder struct {
	mu       sync.Mutex
	requests map[string]Request
	order    []string
}

func newRecorder() *recorder {
	return &recorder{requests: make(map[string]Request)}
}

func (r *recorder) record(req Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.Node] = req
	r.order = append(r.order, req.Node)
}

func (r *recorder) request(node string) (Request, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[node]
	return req, ok
}

func (r *recorder) called(node string) bool {
	_, ok := r.request(node)
	return ok
}

// echo returns an executor that answers "<node>(<input>)".
func (r *recorder) echo() Executor {
	return ExecutorFunc(func(_ context.Context, req Request) (string, error) {
		r.record(req)
		return req.Node + "(" + req.Input + ")", nil
	})
}

// fixed returns an executor that answers output or fails with err.
func (r *recorder) fixed(output string, err error) Executor {
	return ExecutorFunc(func(_ context.Context, req Request) (string, error) {
		r.record(req)
		return output, err
	})
}

func nodesOf(nodes ...Node) map[string]Node {
	m := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		m[n.ID] = n
	}
	return m
}

func mustBuild(t *testing.T, ids []string, dsl string) *Graph {
	t.Helper()
	deps, err := ParseDSL(dsl)
	if err != nil {
		t.Fatalf("parse %q: %v", dsl, err)
	}
	g, err := Build(ids, deps)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return g
}

// --- Scheduler tests ---

func TestScheduler_RunsLayersInOrder(t *testing.T) {
	rec := newRecorder()
	g := mustBuild(t, []string{"A", "B", "C", "D"}, "A->B, A->C, B&C->D")
	s := &Scheduler{}

	result, err := s.Run(context.Background(), g, nodesOf(
		NewNode("A", rec.echo()), NewNode("B", rec.echo()),
		NewNode("C", rec.echo()), NewNode("D", rec.echo()),
	), "T", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.order[0] != "A" || rec.order[3] != "D" {
		t.Fatalf("expected A first and D last, got %v", rec.order)
	}
	for id, wantLayer := range map[string]int{"A": 0, "B": 1, "C": 1, "D": 2} {
		nr := result.Nodes[id]
		if nr.Status != StatusCompleted || nr.Layer != wantLayer {
			t.Errorf("%s: expected completed at layer %d, got %s at %d", id, wantLayer, nr.Status, nr.Layer)
		}
		if nr.FinishedAt.Before(nr.StartedAt) || nr.Duration < 0 {
			t.Errorf("%s: inconsistent timing", id)
		}
	}
	if !result.Nodes["D"].StartedAt.After(result.Nodes["B"].FinishedAt) &&
		!result.Nodes["D"].StartedAt.Equal(result.Nodes["B"].FinishedAt) {
		t.Error("D started before its prerequisite finished")
	}

	want := "D(T\n\n[Output from B]\nB(A(T))\n\n[Output from C]\nC(A(T)))"
	if result.Output() != want {
		t.Errorf("expected output %q, got %q", want, result.Output())
	}
	if _, err := uuid.Parse(result.RunID); err != nil {
		t.Errorf("expected a uuid run id, got %q", result.RunID)
	}
	if result.Metadata[MetaTotalLayers] != 3 {
		t.Errorf("expected total_layers 3, got %v", result.Metadata[MetaTotalLayers])
	}
	if !reflect.DeepEqual(result.Metadata[MetaExecutionLayers], [][]string{{"A"}, {"B", "C"}, {"D"}}) {
		t.Errorf("unexpected execution_layers %v", result.Metadata[MetaExecutionLayers])
	}
	if !reflect.DeepEqual(result.Metadata[MetaNodesUsed], []string{"A", "B", "C", "D"}) {
		t.Errorf("unexpected nodes_used %v", result.Metadata[MetaNodesUsed])
	}
	if !result.Succeeded() {
		t.Error("expected success")
	}
}

func TestScheduler_MultiPredecessorAggregation(t *testing.T) {
	rec := newRecorder()
	g := mustBuild(t, []string{"X", "Y", "Z"}, "X&Y->Z")
	s := &Scheduler{}

	_, err := s.Run(context.Background(), g, nodesOf(
		NewNode("X", rec.fixed("x-out", nil)),
		NewNode("Y", rec.fixed("y-out", nil)),
		NewNode("Z", rec.fixed("z-out", nil)),
	), "Combine", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req, _ := rec.request("Z")
	want := "Combine\n\n[Output from X]\nx-out\n\n[Output from Y]\ny-out"
	if req.Input != want {
		t.Fatalf("expected %q, got %q", want, req.Input)
	}
}

func TestScheduler_BoundedConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	exec := ExecutorFunc(func(ctx context.Context, req Request) (string, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return req.Node, nil
	})

	ids := []string{"n1", "n2", "n3", "n4", "n5"}
	nodes := make(map[string]Node)
	for _, id := range ids {
		nodes[id] = NewNode(id, exec)
	}
	g, err := Build(ids, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	s := &Scheduler{Config: Config{MaxConcurrency: 2}}
	result, err := s.Run(context.Background(), g, nodes, "T", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := peak.Load(); got > 2 || got < 1 {
		t.Fatalf("expected at most 2 concurrent executions, saw %d", got)
	}
	if len(result.Outputs) != 5 {
		t.Fatalf("expected 5 outputs, got %d", len(result.Outputs))
	}
}

func TestScheduler_ConcurrencyIsSharedAcrossTheRun(t *testing.T) {
	var active, peak atomic.Int32
	exec := ExecutorFunc(func(ctx context.Context, req Request) (string, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return "ok", nil
	})
	ids := []string{"a", "b", "c", "d", "e", "f"}
	nodes := make(map[string]Node)
	for _, id := range ids {
		nodes[id] = NewNode(id, exec)
	}
	g := mustBuild(t, ids, "a&b&c->d&e&f")

	s := &Scheduler{Config: Config{MaxConcurrency: 1}}
	if _, err := s.Run(context.Background(), g, nodes, "T", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak.Load() != 1 {
		t.Fatalf("expected strictly serial execution, saw %d", peak.Load())
	}
}

func TestScheduler_AbortIsolation(t *testing.T) {
	rec := newRecorder()
	boom := errors.New("boom")
	g := mustBuild(t, []string{"A", "B", "C", "D"}, "A->B, A->C, B->D")
	s := &Scheduler{}

	result, err := s.Run(context.Background(), g, nodesOf(
		NewNode("A", rec.fixed("a", nil)),
		NewNode("B", rec.fixed("", boom)),
		NewNode("C", rec.fixed("c", nil)),
		NewNode("D", rec.fixed("d", nil)),
	), "T", "")

	var nodeErr *NodeExecutionError
	if !errors.As(err, &nodeErr) {
		t.Fatalf("expected *NodeExecutionError, got %v", err)
	}
	if nodeErr.Node != "B" || nodeErr.Layer != 1 || !errors.Is(err, boom) {
		t.Errorf("unexpected error details: %+v", nodeErr)
	}
	if result == nil {
		t.Fatal("expected a partial result")
	}
	if result.Err != err {
		t.Error("expected Result.Err to carry the run error")
	}
	if rec.called("D") {
		t.Error("D must not run after its layer was aborted")
	}
	if out, ok := result.OutputOf("C"); !ok || out != "c" {
		t.Errorf("expected C to complete, got %q (%v)", out, ok)
	}
	if !reflect.DeepEqual(result.Skipped, []string{"D"}) {
		t.Errorf("expected D skipped, got %v", result.Skipped)
	}
	if !reflect.DeepEqual(result.Failed, []string{"B"}) {
		t.Errorf("expected B failed, got %v", result.Failed)
	}
}

func TestScheduler_AbortReportsFirstFailureInDeclarationOrder(t *testing.T) {
	rec := newRecorder()
	g := mustBuild(t, []string{"A", "B", "C"}, "")
	s := &Scheduler{}

	slow := ExecutorFunc(func(_ context.Context, req Request) (string, error) {
		time.Sleep(20 * time.Millisecond)
		return "", errors.New("slow failure")
	})
	_, err := s.Run(context.Background(), g, nodesOf(
		NewNode("A", rec.fixed("a", nil)),
		NewNode("B", slow),
		NewNode("C", rec.fixed("", errors.New("fast failure"))),
	), "T", "")

	var nodeErr *NodeExecutionError
	if !errors.As(err, &nodeErr) || nodeErr.Node != "B" {
		t.Fatalf("expected failure of B, got %v", err)
	}
}

func TestScheduler_Degrade(t *testing.T) {
	rec := newRecorder()
	g := mustBuild(t, []string{"A", "B", "C", "D"}, "A->B, A->C, B&C->D")
	s := &Scheduler{Config: Config{FailurePolicy: FailDegrade}}

	result, err := s.Run(context.Background(), g, nodesOf(
		NewNode("A", rec.fixed("a", nil)),
		NewNode("B", rec.fixed("", errors.New("boom"))),
		NewNode("C", rec.fixed("c", nil)),
		NewNode("D", rec.echo()),
	), "T", "")
	if err != nil {
		t.Fatalf("degrade mode must not fail the run: %v", err)
	}

	req, ok := rec.request("D")
	if !ok {
		t.Fatal("D should run in degrade mode")
	}
	if !strings.Contains(req.Input, "[Output from B]\n[upstream failure: B: boom]") {
		t.Errorf("expected upstream failure marker, got %q", req.Input)
	}
	if !strings.Contains(req.Input, "[Output from C]\nc") {
		t.Errorf("expected C output, got %q", req.Input)
	}
	if !reflect.DeepEqual(result.Failed, []string{"B"}) {
		t.Errorf("expected B failed, got %v", result.Failed)
	}
	if result.Succeeded() {
		t.Error("a degraded run is not a success")
	}

	var nodeErr *NodeExecutionError
	failed := result.Nodes["B"]
	if !errors.As(failed.Err, &nodeErr) || nodeErr.Node != "B" || nodeErr.Layer != 1 {
		t.Fatalf("expected *NodeExecutionError on B's result, got %v", failed.Err)
	}
	if failed.Cause() == nil || failed.Cause().Error() != "boom" {
		t.Errorf("expected executor cause boom, got %v", failed.Cause())
	}
}

func TestScheduler_DegradeFailedTerminal(t *testing.T) {
	g := mustBuild(t, []string{"A", "B"}, "")
	s := &Scheduler{Config: Config{FailurePolicy: FailDegrade}}
	rec := newRecorder()

	result, err := s.Run(context.Background(), g, nodesOf(
		NewNode("A", rec.fixed("a", nil)),
		NewNode("B", rec.fixed("", errors.New("down"))),
	), "T", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []NodeOutput{{Node: "A", Output: "a"}, {Node: "B", Output: "[upstream failure: B: down]"}}
	if !reflect.DeepEqual(result.Outputs, want) {
		t.Fatalf("expected %v, got %v", want, result.Outputs)
	}
}

func TestScheduler_ImageOnlyForRoots(t *testing.T) {
	rec := newRecorder()
	g := mustBuild(t, []string{"A", "B", "C"}, "A->C, B->C")
	s := &Scheduler{}

	_, err := s.Run(context.Background(), g, nodesOf(
		NewNode("A", rec.echo()), NewNode("B", rec.echo()), NewNode("C", rec.echo()),
	), "T", "s3://bucket/photo.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, id := range []string{"A", "B"} {
		if req, _ := rec.request(id); req.Image != "s3://bucket/photo.png" {
			t.Errorf("%s: expected image, got %q", id, req.Image)
		}
	}
	if req, _ := rec.request("C"); req.Image != "" {
		t.Errorf("C must not receive the image, got %q", req.Image)
	}
}

func TestScheduler_Timeout(t *testing.T) {
	rec := newRecorder()
	blocking := ExecutorFunc(func(ctx context.Context, req Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	g := mustBuild(t, []string{"fast", "slow", "after"}, "slow->after")
	s := &Scheduler{Config: Config{Timeout: 30 * time.Millisecond}}

	result, err := s.Run(context.Background(), g, nodesOf(
		NewNode("fast", rec.fixed("done", nil)),
		NewNode("slow", blocking),
		NewNode("after", rec.echo()),
	), "T", "")

	var timeout *WorkflowTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected *WorkflowTimeoutError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("timeout should match context.DeadlineExceeded")
	}
	if timeout.Completed != 1 || timeout.Timeout != 30*time.Millisecond {
		t.Errorf("unexpected timeout details: %+v", timeout)
	}
	if out, ok := result.OutputOf("fast"); !ok || out != "done" {
		t.Error("completed results must be preserved")
	}
	if !reflect.DeepEqual(result.Skipped, []string{"after"}) {
		t.Errorf("expected after skipped, got %v", result.Skipped)
	}
	if timeout.AppError().HTTPStatus != 504 {
		t.Errorf("expected 504, got %d", timeout.AppError().HTTPStatus)
	}
}

func TestScheduler_CallerDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	blocking := ExecutorFunc(func(ctx context.Context, req Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	g := mustBuild(t, []string{"fast", "slow"}, "")
	s := &Scheduler{}

	_, err := s.Run(ctx, g, nodesOf(
		NewNode("fast", newRecorder().fixed("done", nil)),
		NewNode("slow", blocking),
	), "T", "")

	var timeout *WorkflowTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected *WorkflowTimeoutError, got %v", err)
	}
	if timeout.Timeout != 0 || timeout.Completed != 1 {
		t.Errorf("unexpected timeout details: %+v", timeout)
	}
	if !strings.Contains(err.Error(), "exceeded its deadline") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestScheduler_LayerResults(t *testing.T) {
	g := mustBuild(t, []string{"A", "B", "C"}, "A->B, A->C")
	s := &Scheduler{Config: Config{FailurePolicy: FailDegrade}}
	rec := newRecorder()

	result, err := s.Run(context.Background(), g, nodesOf(
		NewNode("A", rec.fixed("a", nil)),
		NewNode("B", rec.fixed("b", nil)),
		NewNode("C", rec.fixed("", errors.New("down"))),
	), "T", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []LayerResult{
		{Layer: 0, Nodes: []string{"A"}, Outputs: map[string]string{"A": "a"}},
		{Layer: 1, Nodes: []string{"B", "C"}, Outputs: map[string]string{"B": "b"}},
	}
	if got := result.Metadata[MetaLayerResults]; !reflect.DeepEqual(got, want) {
		t.Errorf("expected layer_results %+v, got %+v", want, got)
	}
}

func TestScheduler_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := newRecorder()
	cancelling := ExecutorFunc(func(_ context.Context, req Request) (string, error) {
		rec.record(req)
		cancel()
		return "partial", nil
	})
	g := mustBuild(t, []string{"A", "B"}, "A->B")
	s := &Scheduler{}

	result, err := s.Run(ctx, g, nodesOf(NewNode("A", cancelling), NewNode("B", rec.echo())), "T", "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if rec.called("B") {
		t.Error("no layer may start after cancellation")
	}
	if out, ok := result.OutputOf("A"); !ok || out != "partial" {
		t.Error("completed results must be preserved")
	}
	if !reflect.DeepEqual(result.Skipped, []string{"B"}) {
		t.Errorf("expected B skipped, got %v", result.Skipped)
	}
}

func TestScheduler_CancelledWhileWaitingForSlot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	cancelling := ExecutorFunc(func(_ context.Context, req Request) (string, error) {
		calls.Add(1)
		cancel()
		return "ok", nil
	})
	g := mustBuild(t, []string{"A", "B"}, "")
	s := &Scheduler{Config: Config{MaxConcurrency: 1}}

	result, err := s.Run(ctx, g, nodesOf(NewNode("A", cancelling), NewNode("B", cancelling)), "T", "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one execution, got %d", calls.Load())
	}
	if len(result.Nodes) != 1 || len(result.Skipped) != 1 {
		t.Fatalf("expected one result and one skipped node, got %d and %v", len(result.Nodes), result.Skipped)
	}
}

func TestScheduler_PanicBecomesFailure(t *testing.T) {
	g := mustBuild(t, []string{"A"}, "")
	s := &Scheduler{}
	panicking := ExecutorFunc(func(context.Context, Request) (string, error) {
		panic("kaboom")
	})

	result, err := s.Run(context.Background(), g, nodesOf(NewNode("A", panicking)), "T", "")
	var nodeErr *NodeExecutionError
	if !errors.As(err, &nodeErr) {
		t.Fatalf("expected *NodeExecutionError, got %v", err)
	}
	if !strings.Contains(result.Nodes["A"].Err.Error(), "kaboom") {
		t.Errorf("expected panic value in error, got %v", result.Nodes["A"].Err)
	}
}

func TestScheduler_ValidationErrors(t *testing.T) {
	g := mustBuild(t, []string{"A", "B"}, "A->B")
	rec := newRecorder()

	tests := []struct {
		name  string
		s     *Scheduler
		nodes map[string]Node
	}{
		{"missing node", &Scheduler{}, nodesOf(NewNode("A", rec.echo()))},
		{"nil executor", &Scheduler{}, nodesOf(NewNode("A", rec.echo()), Node{ID: "B"})},
		{"unknown policy", &Scheduler{Config: Config{FailurePolicy: "retry"}}, nodesOf(NewNode("A", rec.echo()), NewNode("B", rec.echo()))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.s.Run(context.Background(), g, tt.nodes, "T", "")
			var inv *InvalidWorkflowError
			if !errors.As(err, &inv) {
				t.Fatalf("expected *InvalidWorkflowError, got %v", err)
			}
			if result != nil {
				t.Error("validation errors return no result")
			}
		})
	}
	if rec.called("A") {
		t.Error("nothing may run when validation fails")
	}
}

func TestResult_Output(t *testing.T) {
	tests := []struct {
		outputs []NodeOutput
		want    string
	}{
		{nil, ""},
		{[]NodeOutput{{Node: "A", Output: "only"}}, "only"},
		{[]NodeOutput{{Node: "A", Output: "one"}, {Node: "B", Output: "two"}}, "[A]\none\n\n[B]\ntwo"},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			r := &Result{Outputs: tt.outputs}
			if got := r.Output(); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
