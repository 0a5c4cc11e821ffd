// Package workflow schedules task executors according to a declared
// dependency graph.
//
// Dependencies come from an explicit map or from a compact expression:
//
//	A->B, A->C, B&C->D
//
// Build validates the graph and groups nodes into layers. The Scheduler runs
// one layer at a time, all nodes of a layer concurrently, bounded by a single
// bulkhead per run. Each node's input is its task, its one predecessor's
// output, or a labelled concatenation of several predecessors' outputs.
//
// The Orchestrator composes the scheduler into patterns:
//   - Sequential: each node consumes the previous node's output
//   - Parallel: every node gets the same task in a single layer
//   - Graph / GraphDSL: arbitrary dependency graphs
//   - Hybrid: ordered stages, each one of the patterns above
//
// Workflows can also be declared in YAML (Definition) and bound to named
// executors from a Registry.
package workflow
