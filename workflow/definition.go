package workflow

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/agentflow/errors"
	"github.com/kbukum/agentflow/validation"
)

// Definition is a YAML-declared workflow. Nodes reference executors by
// registry name.
type Definition struct {
	// Name is the workflow identifier.
	Name string `yaml:"name" json:"name" validate:"required"`
	// Pattern is sequential, parallel, graph or hybrid. When empty it is
	// inferred: hybrid with stages, graph with dependencies, else sequential.
	Pattern     Pattern `yaml:"pattern,omitempty" json:"pattern,omitempty" validate:"omitempty,oneof=sequential parallel graph hybrid"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	// Dependencies is a dependency expression for graph workflows.
	Dependencies string     `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Nodes        []NodeDef  `yaml:"nodes,omitempty" json:"nodes,omitempty" validate:"dive"`
	Stages       []StageDef `yaml:"stages,omitempty" json:"stages,omitempty" validate:"dive"`
}

// NodeDef defines a node within a workflow.
type NodeDef struct {
	ID string `yaml:"id" json:"id" validate:"required,nodeid"`
	// Executor is the registry lookup key for this node.
	Executor string `yaml:"executor" json:"executor" validate:"required"`
	Task     string `yaml:"task,omitempty" json:"task,omitempty"`
}

// StageDef defines one stage of a hybrid workflow.
type StageDef struct {
	Name         string    `yaml:"name" json:"name" validate:"required"`
	Pattern      Pattern   `yaml:"pattern,omitempty" json:"pattern,omitempty" validate:"omitempty,oneof=sequential parallel graph"`
	Task         string    `yaml:"task,omitempty" json:"task,omitempty"`
	Dependencies string    `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Nodes        []NodeDef `yaml:"nodes" json:"nodes" validate:"required,min=1,dive"`
}

// EffectivePattern returns the declared pattern or the inferred one.
func (d *Definition) EffectivePattern() Pattern {
	switch {
	case d.Pattern != "":
		return d.Pattern
	case len(d.Stages) > 0:
		return PatternHybrid
	case d.Dependencies != "":
		return PatternGraph
	default:
		return PatternSequential
	}
}

// Validate checks field constraints and then the structure of every graph
// the definition describes.
func (d *Definition) Validate() error {
	if err := validation.Validate(d); err != nil {
		return err
	}

	v := validation.New()
	pattern := d.EffectivePattern()
	if pattern == PatternHybrid {
		v.Custom(len(d.Stages) > 0, "stages", "is required for a hybrid workflow")
		v.Custom(len(d.Nodes) == 0, "nodes", "must be declared per stage in a hybrid workflow")
		v.Custom(d.Dependencies == "", "dependencies", "must be declared per stage in a hybrid workflow")
		names := make([]string, len(d.Stages))
		for i, st := range d.Stages {
			names[i] = st.Name
			v.Unique(fmt.Sprintf("stages[%d].nodes", i), nodeDefIDs(st.Nodes))
			v.Custom(st.Dependencies == "" || st.Pattern == "" || st.Pattern == PatternGraph,
				fmt.Sprintf("stages[%d].dependencies", i), "is only allowed for a graph stage")
		}
		v.Unique("stages", names)
	} else {
		v.Custom(len(d.Nodes) > 0, "nodes", "is required")
		v.Custom(len(d.Stages) == 0, "stages", "is only allowed in a hybrid workflow")
		v.Custom(d.Dependencies == "" || pattern == PatternGraph, "dependencies", "is only allowed in a graph workflow")
		v.Unique("nodes", nodeDefIDs(d.Nodes))
	}
	if err := v.Err(); err != nil {
		return err
	}

	_, err := d.Layers()
	return err
}

// Layers parses and layers every graph of the definition. Hybrid stage
// layers are concatenated with "<stage>/<node>" IDs.
func (d *Definition) Layers() ([][]string, error) {
	if d.EffectivePattern() != PatternHybrid {
		g, err := planDefinition(d.EffectivePattern(), d.Nodes, d.Dependencies)
		if err != nil {
			return nil, err
		}
		return g.Layers(), nil
	}

	var layers [][]string
	for _, st := range d.Stages {
		g, err := planDefinition(st.pattern(), st.Nodes, st.Dependencies)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", st.Name, err)
		}
		for _, layer := range g.layers {
			keyed := make([]string, len(layer))
			for i, id := range layer {
				keyed[i] = stageKey(st.Name, id)
			}
			layers = append(layers, keyed)
		}
	}
	return layers, nil
}

func (s StageDef) pattern() Pattern {
	switch {
	case s.Pattern != "":
		return s.Pattern
	case s.Dependencies != "":
		return PatternGraph
	default:
		return PatternSequential
	}
}

func planDefinition(pattern Pattern, defs []NodeDef, dsl string) (*Graph, error) {
	st := Stage{Pattern: pattern, DSL: dsl, Nodes: make([]Node, len(defs))}
	for i, def := range defs {
		st.Nodes[i] = Node{ID: def.ID}
	}
	deps, err := stageDependencies(st)
	if err != nil {
		return nil, err
	}
	return Build(nodeDefIDs(defs), deps)
}

func nodeDefIDs(defs []NodeDef) []string {
	ids := make([]string, len(defs))
	for i, def := range defs {
		ids[i] = def.ID
	}
	return ids
}

// RunDefinition validates def, binds its nodes to executors from reg and
// runs it with the pattern it declares.
func (o *Orchestrator) RunDefinition(ctx context.Context, def *Definition, reg *Registry, task, image string, opts ...RunOption) (*Result, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	opts = append([]RunOption{WithImage(image)}, opts...)

	pattern := def.EffectivePattern()
	if pattern == PatternHybrid {
		stages := make([]Stage, len(def.Stages))
		for i, sd := range def.Stages {
			nodes, err := reg.Resolve(sd.Nodes)
			if err != nil {
				return nil, fmt.Errorf("stage %q: %w", sd.Name, err)
			}
			stages[i] = Stage{Name: sd.Name, Pattern: sd.pattern(), Nodes: nodes, DSL: sd.Dependencies, Task: sd.Task}
		}
		return o.Hybrid(ctx, stages, task, opts...)
	}

	nodes, err := reg.Resolve(def.Nodes)
	if err != nil {
		return nil, err
	}
	switch pattern {
	case PatternSequential:
		return o.Sequential(ctx, nodes, task, opts...)
	case PatternParallel:
		return o.Parallel(ctx, nodes, task, opts...)
	default:
		return o.GraphDSL(ctx, nodes, def.Dependencies, task, opts...)
	}
}

// DefinitionLoader loads workflow definitions by name.
type DefinitionLoader interface {
	Load(name string) (*Definition, error)
	List() ([]string, error)
}

// FileDefinitionLoader loads definitions from YAML files on disk.
type FileDefinitionLoader struct {
	dirs []string
}

// NewFileDefinitionLoader creates a loader that searches the given
// directories for workflow YAML files.
func NewFileDefinitionLoader(dirs ...string) *FileDefinitionLoader {
	return &FileDefinitionLoader{dirs: dirs}
}

var definitionExts = []string{".yaml", ".yml"}

// Load searches for {name}.yaml and {name}.yml in each directory and its
// immediate subdirectories.
func (l *FileDefinitionLoader) Load(name string) (*Definition, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, errors.InvalidInput("name", fmt.Sprintf("invalid workflow name %q", name))
	}
	for _, dir := range l.dirs {
		for _, ext := range definitionExts {
			path := filepath.Join(dir, name+ext)
			if _, err := os.Stat(path); err == nil {
				return LoadDefinition(path)
			}

			matches, _ := filepath.Glob(filepath.Join(dir, "*", name+ext))
			if len(matches) > 0 {
				return LoadDefinition(matches[0])
			}
		}
	}
	return nil, errors.NotFound("workflow", name)
}

// List returns the sorted names of every definition file in the
// configured directories.
func (l *FileDefinitionLoader) List() ([]string, error) {
	seen := make(map[string]bool)
	for _, dir := range l.dirs {
		for _, ext := range definitionExts {
			for _, pattern := range []string{filepath.Join(dir, "*"+ext), filepath.Join(dir, "*", "*"+ext)} {
				matches, err := filepath.Glob(pattern)
				if err != nil {
					return nil, err
				}
				for _, m := range matches {
					seen[strings.TrimSuffix(filepath.Base(m), ext)] = true
				}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// LoadDefinition reads a definition from a YAML file. A definition
// without a name takes the file name.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: reading %s: %w", path, err)
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("workflow: parsing %s: %w", path, err)
	}
	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return def, nil
}

// ParseDefinition decodes a YAML definition, rejecting unknown fields.
func ParseDefinition(data []byte) (*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, errors.InvalidInput("definition", err.Error()).WithCause(err)
	}
	return &def, nil
}
