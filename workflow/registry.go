package workflow

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/kbukum/agentflow/observability"
)

// Kinded is implemented by executors that can name their implementation,
// e.g. "command" or "http".
type Kinded interface {
	Kind() string
}

// ExecutorInfo describes a registered executor.
type ExecutorInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// Registry provides named executor lookup for workflow definitions.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register adds an executor to the registry, replacing any previous one
// with the same name.
func (r *Registry) Register(name string, exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[name] = exec
}

// Get retrieves an executor by name.
func (r *Registry) Get(name string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[name]
	return e, ok
}

// List returns sorted names of all registered executors.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns every registered executor sorted by name.
func (r *Registry) Describe() []ExecutorInfo {
	names := r.List()
	infos := make([]ExecutorInfo, 0, len(names))
	for _, name := range names {
		info := ExecutorInfo{Name: name}
		if exec, ok := r.Get(name); ok {
			if k, ok := exec.(Kinded); ok {
				info.Kind = k.Kind()
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// Resolve turns node definitions into nodes bound to registered executors.
func (r *Registry) Resolve(defs []NodeDef) ([]Node, error) {
	nodes := make([]Node, len(defs))
	for i, def := range defs {
		exec, ok := r.Get(def.Executor)
		if !ok {
			return nil, invalidf("node %q references unknown executor %q", def.ID, def.Executor)
		}
		nodes[i] = Node{ID: def.ID, Executor: exec, Task: def.Task}
	}
	return nodes, nil
}

// CheckHealth reports the registry as degraded while it is empty.
func (r *Registry) CheckHealth(_ context.Context) observability.Health {
	r.mu.RLock()
	n := len(r.executors)
	r.mu.RUnlock()

	h := observability.Health{
		Name:    "executors",
		Status:  observability.HealthStatusUp,
		Details: map[string]string{"registered": strconv.Itoa(n)},
	}
	if n == 0 {
		h.Status = observability.HealthStatusDegraded
		h.Message = "no executors registered"
	}
	return h
}
