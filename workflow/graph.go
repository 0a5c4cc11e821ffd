package workflow

import (
	"slices"
	"sort"
	"strings"
)

// Graph is a validated, layered dependency graph. It is immutable once
// built and safe for concurrent reads.
type Graph struct {
	nodes      []string
	index      map[string]int
	deps       Dependencies
	dependents map[string][]string
	layers     [][]string
	layerOf    map[string]int
}

// Build validates the declared nodes against deps and groups them into
// execution layers. A node's layer is 0 when it has no prerequisites and
// one more than its deepest prerequisite otherwise. Within a layer nodes
// keep declaration order.
func Build(nodes []string, deps Dependencies) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, invalidf("workflow declares no nodes")
	}

	g := &Graph{
		nodes:      append([]string(nil), nodes...),
		index:      make(map[string]int, len(nodes)),
		deps:       make(Dependencies, len(deps)),
		dependents: make(map[string][]string),
		layerOf:    make(map[string]int, len(nodes)),
	}
	for i, id := range nodes {
		if strings.TrimSpace(id) == "" {
			return nil, invalidf("node at position %d has an empty id", i)
		}
		if _, dup := g.index[id]; dup {
			return nil, invalidf("duplicate node id %q", id)
		}
		g.index[id] = i
	}

	targets := make([]string, 0, len(deps))
	for target := range deps {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	for _, target := range targets {
		if _, ok := g.index[target]; !ok {
			return nil, &UnknownNodeReferenceError{Node: target}
		}
		for _, prereq := range deps[target] {
			if _, ok := g.index[prereq]; !ok {
				return nil, &UnknownNodeReferenceError{Node: prereq, ReferencedBy: target}
			}
			g.deps.Add(target, prereq)
		}
	}

	for _, id := range g.nodes {
		for _, prereq := range g.deps[id] {
			g.dependents[prereq] = append(g.dependents[prereq], id)
		}
	}

	if err := g.buildLayers(); err != nil {
		return nil, err
	}
	return g, nil
}

// buildLayers runs Kahn's algorithm level by level.
func (g *Graph) buildLayers() error {
	inDegree := make(map[string]int, len(g.nodes))
	var layer []string
	for _, id := range g.nodes {
		inDegree[id] = len(g.deps[id])
		if inDegree[id] == 0 {
			layer = append(layer, id)
		}
	}

	visited := 0
	for len(layer) > 0 {
		depth := len(g.layers)
		for _, id := range layer {
			g.layerOf[id] = depth
		}
		g.layers = append(g.layers, layer)
		visited += len(layer)

		var next []string
		for _, id := range layer {
			for _, dep := range g.dependents[id] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		sort.Slice(next, func(i, j int) bool { return g.index[next[i]] < g.index[next[j]] })
		layer = next
	}

	if visited != len(g.nodes) {
		return &CycleDetectedError{Cycle: g.findCycle(inDegree)}
	}
	return nil
}

// findCycle walks unconsumed prerequisite edges from the earliest-declared
// unconsumed node until an ID repeats. Every unconsumed node has at least
// one unconsumed prerequisite, so the walk always closes a loop.
func (g *Graph) findCycle(inDegree map[string]int) []string {
	var start string
	for _, id := range g.nodes {
		if inDegree[id] > 0 {
			start = id
			break
		}
	}

	var path []string
	seen := make(map[string]int)
	for cur := start; ; {
		if at, ok := seen[cur]; ok {
			path = path[at:]
			break
		}
		seen[cur] = len(path)
		path = append(path, cur)
		for _, prereq := range g.deps[cur] {
			if inDegree[prereq] > 0 {
				cur = prereq
				break
			}
		}
	}

	// The walk ran against the edges; flip it into execution order and
	// start at the earliest-declared member.
	slices.Reverse(path)
	first := 0
	for i, id := range path {
		if g.index[id] < g.index[path[first]] {
			first = i
		}
	}
	return slices.Concat(path[first:], path[:first])
}

// Nodes returns the node IDs in declaration order.
func (g *Graph) Nodes() []string { return append([]string(nil), g.nodes...) }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Layers returns the execution layers.
func (g *Graph) Layers() [][]string {
	out := make([][]string, len(g.layers))
	for i, l := range g.layers {
		out[i] = append([]string(nil), l...)
	}
	return out
}

// LayerOf returns the layer index of id.
func (g *Graph) LayerOf(id string) (int, bool) {
	l, ok := g.layerOf[id]
	return l, ok
}

// Prerequisites returns the prerequisites of id in declaration order.
func (g *Graph) Prerequisites(id string) []string { return append([]string(nil), g.deps[id]...) }

// Dependents returns the nodes that directly depend on id.
func (g *Graph) Dependents(id string) []string { return append([]string(nil), g.dependents[id]...) }

// IsRoot reports whether id has no prerequisites.
func (g *Graph) IsRoot(id string) bool { return len(g.deps[id]) == 0 }

// Terminal returns the nodes of the last layer.
func (g *Graph) Terminal() []string {
	return append([]string(nil), g.layers[len(g.layers)-1]...)
}

// Dependencies returns a copy of the normalized dependency map.
func (g *Graph) Dependencies() Dependencies { return g.deps.Clone() }
