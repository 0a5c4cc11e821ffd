package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	apperrors "github.com/kbukum/agentflow/errors"
)

const graphYAML = `
name: market-report
pattern: graph
description: Research, analyse and report.
dependencies: "research->analyse, research->critique, analyse&critique->report"
nodes:
  - id: research
    executor: echo
  - id: analyse
    executor: echo
  - id: critique
    executor: echo
    task: Find weaknesses
  - id: report
    executor: upper
`

const hybridYAML = `
name: staged
pattern: hybrid
stages:
  - name: gather
    pattern: parallel
    task: "Collect facts about {original_task}"
    nodes:
      - id: a
        executor: echo
      - id: b
        executor: echo
  - name: decide
    task: "Decide using {previous_result}"
    nodes:
      - id: c
        executor: upper
`

func testRegistry(rec *recorder) *Registry {
	reg := NewRegistry()
	reg.Register("echo", rec.echo())
	reg.Register("upper", ExecutorFunc(func(_ context.Context, req Request) (string, error) {
		rec.record(req)
		return strings.ToUpper(req.Input), nil
	}))
	return reg
}

func TestParseDefinition(t *testing.T) {
	def, err := ParseDefinition([]byte(graphYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Name != "market-report" || def.EffectivePattern() != PatternGraph {
		t.Fatalf("unexpected definition: %+v", def)
	}
	if len(def.Nodes) != 4 || def.Nodes[2].Task != "Find weaknesses" {
		t.Fatalf("unexpected nodes: %+v", def.Nodes)
	}
	if err := def.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	layers, err := def.Layers()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [][]string{{"research"}, {"analyse", "critique"}, {"report"}}
	if !reflect.DeepEqual(layers, want) {
		t.Fatalf("expected %v, got %v", want, layers)
	}
}

func TestParseDefinition_UnknownField(t *testing.T) {
	_, err := ParseDefinition([]byte("name: x\nnodez: []\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestDefinition_EffectivePattern(t *testing.T) {
	tests := []struct {
		def  Definition
		want Pattern
	}{
		{Definition{Pattern: PatternParallel}, PatternParallel},
		{Definition{Stages: []StageDef{{Name: "s"}}}, PatternHybrid},
		{Definition{Dependencies: "a->b"}, PatternGraph},
		{Definition{}, PatternSequential},
	}
	for _, tt := range tests {
		if got := tt.def.EffectivePattern(); got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, got)
		}
	}
}

func TestDefinition_Validate(t *testing.T) {
	node := func(id string) NodeDef { return NodeDef{ID: id, Executor: "echo"} }

	tests := []struct {
		name    string
		def     Definition
		wantErr func(error) bool
	}{
		{
			name:    "missing name",
			def:     Definition{Nodes: []NodeDef{node("a")}},
			wantErr: isCode(apperrors.ErrCodeInvalidInput),
		},
		{
			name:    "bad node id",
			def:     Definition{Name: "x", Nodes: []NodeDef{node("a->b")}},
			wantErr: isCode(apperrors.ErrCodeInvalidInput),
		},
		{
			name:    "missing executor",
			def:     Definition{Name: "x", Nodes: []NodeDef{{ID: "a"}}},
			wantErr: isCode(apperrors.ErrCodeInvalidInput),
		},
		{
			name:    "unknown pattern",
			def:     Definition{Name: "x", Pattern: "star", Nodes: []NodeDef{node("a")}},
			wantErr: isCode(apperrors.ErrCodeInvalidInput),
		},
		{
			name:    "no nodes",
			def:     Definition{Name: "x", Pattern: PatternParallel},
			wantErr: isCode(apperrors.ErrCodeInvalidInput),
		},
		{
			name:    "duplicate nodes",
			def:     Definition{Name: "x", Nodes: []NodeDef{node("a"), node("a")}},
			wantErr: isCode(apperrors.ErrCodeInvalidInput),
		},
		{
			name:    "dependencies on a sequential workflow",
			def:     Definition{Name: "x", Pattern: PatternSequential, Dependencies: "a->b", Nodes: []NodeDef{node("a"), node("b")}},
			wantErr: isCode(apperrors.ErrCodeInvalidInput),
		},
		{
			name:    "stages outside hybrid",
			def:     Definition{Name: "x", Pattern: PatternGraph, Nodes: []NodeDef{node("a")}, Stages: []StageDef{{Name: "s", Nodes: []NodeDef{node("b")}}}},
			wantErr: isCode(apperrors.ErrCodeInvalidInput),
		},
		{
			name:    "hybrid without stages",
			def:     Definition{Name: "x", Pattern: PatternHybrid},
			wantErr: isCode(apperrors.ErrCodeInvalidInput),
		},
		{
			name:    "duplicate stage names",
			def:     Definition{Name: "x", Stages: []StageDef{{Name: "s", Nodes: []NodeDef{node("a")}}, {Name: "s", Nodes: []NodeDef{node("b")}}}},
			wantErr: isCode(apperrors.ErrCodeInvalidInput),
		},
		{
			name:    "bad dsl",
			def:     Definition{Name: "x", Dependencies: "a->", Nodes: []NodeDef{node("a")}},
			wantErr: func(err error) bool { var e *DSLSyntaxError; return errors.As(err, &e) },
		},
		{
			name:    "unknown node in dsl",
			def:     Definition{Name: "x", Dependencies: "a->ghost", Nodes: []NodeDef{node("a")}},
			wantErr: func(err error) bool { var e *UnknownNodeReferenceError; return errors.As(err, &e) },
		},
		{
			name: "cycle inside a stage",
			def: Definition{Name: "x", Stages: []StageDef{
				{Name: "s", Dependencies: "a->b->a", Nodes: []NodeDef{node("a"), node("b")}},
			}},
			wantErr: func(err error) bool { var e *CycleDetectedError; return errors.As(err, &e) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.wantErr(err) {
				t.Fatalf("unexpected error type %T: %v", err, err)
			}
		})
	}
}

func isCode(code apperrors.ErrorCode) func(error) bool {
	return func(err error) bool {
		appErr, ok := apperrors.AsAppError(err)
		return ok && appErr.Code == code
	}
}

func TestOrchestrator_RunDefinition(t *testing.T) {
	rec := newRecorder()
	reg := testRegistry(rec)
	def, err := ParseDefinition([]byte(graphYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	result, err := New().RunDefinition(context.Background(), def, reg, "tariffs", "img.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req, _ := rec.request("critique"); req.Input != "research(tariffs)" {
		t.Errorf("a node with one predecessor ignores its task override, got %q", req.Input)
	}
	if req, _ := rec.request("research"); req.Image != "img.png" {
		t.Errorf("expected image on the root, got %q", req.Image)
	}
	want := strings.ToUpper("tariffs\n\n[Output from analyse]\nanalyse(research(tariffs))\n\n[Output from critique]\ncritique(research(tariffs))")
	if result.Output() != want {
		t.Errorf("expected %q, got %q", want, result.Output())
	}
}

func TestOrchestrator_RunDefinition_Hybrid(t *testing.T) {
	rec := newRecorder()
	reg := testRegistry(rec)
	def, err := ParseDefinition([]byte(hybridYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	result, err := New().RunDefinition(context.Background(), def, reg, "solar", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req, _ := rec.request("a"); req.Input != "Collect facts about solar" {
		t.Errorf("unexpected first stage input %q", req.Input)
	}
	want := "DECIDE USING [A]\nA(COLLECT FACTS ABOUT SOLAR)\n\n[B]\nB(COLLECT FACTS ABOUT SOLAR)"
	if result.Output() != want {
		t.Errorf("expected %q, got %q", want, result.Output())
	}

	layers, err := def.Layers()
	if err != nil {
		t.Fatalf("layers: %v", err)
	}
	if !reflect.DeepEqual(layers, [][]string{{"gather/a", "gather/b"}, {"decide/c"}}) {
		t.Errorf("unexpected layers %v", layers)
	}
}

func TestOrchestrator_RunDefinition_UnknownExecutor(t *testing.T) {
	def := &Definition{Name: "x", Nodes: []NodeDef{{ID: "a", Executor: "missing"}}}
	_, err := New().RunDefinition(context.Background(), def, NewRegistry(), "T", "")
	var inv *InvalidWorkflowError
	if !errors.As(err, &inv) {
		t.Fatalf("expected *InvalidWorkflowError, got %v", err)
	}
}

func TestFileDefinitionLoader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "market-report.yaml"), graphYAML)
	writeFile(t, filepath.Join(dir, "nested", "staged.yml"), hybridYAML)
	writeFile(t, filepath.Join(dir, "unnamed.yaml"), "nodes:\n  - id: a\n    executor: echo\n")
	writeFile(t, filepath.Join(dir, "README.md"), "not a workflow")

	loader := NewFileDefinitionLoader(filepath.Join(dir, "missing"), dir)

	def, err := loader.Load("market-report")
	if err != nil || def.Name != "market-report" {
		t.Fatalf("expected market-report, got %v (%v)", def, err)
	}
	def, err = loader.Load("staged")
	if err != nil || def.EffectivePattern() != PatternHybrid {
		t.Fatalf("expected staged hybrid from subdirectory, got %v (%v)", def, err)
	}
	def, err = loader.Load("unnamed")
	if err != nil || def.Name != "unnamed" {
		t.Fatalf("expected name from file, got %v (%v)", def, err)
	}

	_, err = loader.Load("ghost")
	if appErr, ok := apperrors.AsAppError(err); !ok || appErr.Code != apperrors.ErrCodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	_, err = loader.Load("../etc/passwd")
	if appErr, ok := apperrors.AsAppError(err); !ok || appErr.Code != apperrors.ErrCodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT for a path, got %v", err)
	}

	names, err := loader.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"market-report", "staged", "unnamed"}) {
		t.Errorf("unexpected names %v", names)
	}
}

func TestLoadDefinition_Missing(t *testing.T) {
	if _, err := LoadDefinition(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
}
