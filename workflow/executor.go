package workflow

import "context"

// Request is the input handed to an executor for one node.
type Request struct {
	// Node is the ID of the node being executed.
	Node string
	// Input is the effective input text built from the task and predecessors.
	Input string
	// Image is an optional image locator. It is only set for root nodes.
	Image string
}

// Executor runs one unit of work. Implementations must be safe for
// concurrent use; one executor may back several nodes of the same run.
type Executor interface {
	Execute(ctx context.Context, req Request) (string, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req Request) (string, error)

// Execute calls f(ctx, req).
func (f ExecutorFunc) Execute(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Node binds an executor to a node ID.
type Node struct {
	// ID uniquely identifies the node within a workflow.
	ID string
	// Executor does the node's work.
	Executor Executor
	// Task optionally replaces the workflow task for this node. It is the
	// whole input of a root node and the header of a composite input.
	Task string
}

// NewNode creates a node without a task override.
func NewNode(id string, exec Executor) Node {
	return Node{ID: id, Executor: exec}
}

// indexNodes returns the node IDs in order and the nodes keyed by ID.
func indexNodes(nodes []Node) ([]string, map[string]Node, error) {
	ids := make([]string, len(nodes))
	byID := make(map[string]Node, len(nodes))
	for i, n := range nodes {
		if n.Executor == nil {
			return nil, nil, invalidf("node %q has no executor", n.ID)
		}
		ids[i] = n.ID
		byID[n.ID] = n
	}
	return ids, byID, nil
}
