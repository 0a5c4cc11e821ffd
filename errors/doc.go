// Package errors provides the structured error type shared by the
// orchestrator, its executors and the HTTP surface.
//
// Every failure that crosses a package boundary can be expressed as an
// AppError carrying a machine-readable code, an HTTP status and optional
// details. Workflow validation and execution failures have dedicated codes
// (DSL_SYNTAX, CYCLE_DETECTED, NODE_EXECUTION, ...).
package errors
