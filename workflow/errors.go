package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/agentflow/errors"
)

// DSLSyntaxError reports a malformed dependency expression.
type DSLSyntaxError struct {
	Input  string
	Offset int
	Reason string
}

func (e *DSLSyntaxError) Error() string {
	return fmt.Sprintf("workflow: dsl syntax error at offset %d: %s", e.Offset, e.Reason)
}

func (e *DSLSyntaxError) Code() errors.ErrorCode { return errors.ErrCodeDSLSyntax }

func (e *DSLSyntaxError) AppError() *errors.AppError {
	return errors.DSLSyntax(e.Reason, e.Offset).WithCause(e)
}

// UnknownNodeReferenceError reports a dependency naming an undeclared node.
// ReferencedBy is empty when the unknown node is itself a dependency key.
type UnknownNodeReferenceError struct {
	Node         string
	ReferencedBy string
}

func (e *UnknownNodeReferenceError) Error() string {
	if e.ReferencedBy == "" {
		return fmt.Sprintf("workflow: dependency declared for unknown node %q", e.Node)
	}
	return fmt.Sprintf("workflow: node %q depends on unknown node %q", e.ReferencedBy, e.Node)
}

func (e *UnknownNodeReferenceError) Code() errors.ErrorCode { return errors.ErrCodeUnknownNode }

func (e *UnknownNodeReferenceError) AppError() *errors.AppError {
	return errors.UnknownNode(e.Node, e.ReferencedBy).WithCause(e)
}

// CycleDetectedError reports a dependency cycle. Cycle lists the members in
// execution direction, starting at the earliest-declared one.
type CycleDetectedError struct {
	Cycle []string
}

func (e *CycleDetectedError) Error() string {
	path := append(append([]string{}, e.Cycle...), e.Cycle[0])
	return "workflow: cycle detected: " + strings.Join(path, " -> ")
}

func (e *CycleDetectedError) Code() errors.ErrorCode { return errors.ErrCodeCycleDetected }

func (e *CycleDetectedError) AppError() *errors.AppError {
	return errors.CycleDetected(e.Cycle).WithCause(e)
}

// InvalidWorkflowError reports a structurally invalid workflow.
type InvalidWorkflowError struct {
	Reason string
}

func (e *InvalidWorkflowError) Error() string { return "workflow: invalid workflow: " + e.Reason }

func (e *InvalidWorkflowError) Code() errors.ErrorCode { return errors.ErrCodeInvalidWorkflow }

func (e *InvalidWorkflowError) AppError() *errors.AppError {
	return errors.InvalidWorkflow(e.Reason).WithCause(e)
}

func invalidf(format string, args ...any) error {
	return &InvalidWorkflowError{Reason: fmt.Sprintf(format, args...)}
}

// NodeExecutionError reports the failure that aborted a run.
type NodeExecutionError struct {
	Node  string
	Layer int
	Err   error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("workflow: node %q failed: %v", e.Node, e.Err)
}

func (e *NodeExecutionError) Unwrap() error { return e.Err }

func (e *NodeExecutionError) Code() errors.ErrorCode { return errors.ErrCodeNodeExecution }

func (e *NodeExecutionError) AppError() *errors.AppError {
	return errors.NodeExecution(e.Node, e.Err).WithDetail("layer", e.Layer)
}

// WorkflowTimeoutError reports a run that exceeded its configured timeout
// or the deadline of the caller's context. Timeout is zero in the latter
// case.
type WorkflowTimeoutError struct {
	Timeout   time.Duration
	Completed int
}

func (e *WorkflowTimeoutError) Error() string {
	if e.Timeout <= 0 {
		return fmt.Sprintf("workflow: run exceeded its deadline (%d nodes completed)", e.Completed)
	}
	return fmt.Sprintf("workflow: run exceeded timeout of %s (%d nodes completed)", e.Timeout, e.Completed)
}

// Unwrap lets callers match the timeout with context.DeadlineExceeded.
func (e *WorkflowTimeoutError) Unwrap() error { return context.DeadlineExceeded }

func (e *WorkflowTimeoutError) Code() errors.ErrorCode { return errors.ErrCodeWorkflowTimeout }

func (e *WorkflowTimeoutError) AppError() *errors.AppError {
	return errors.WorkflowTimeout(e.Timeout, e.Completed).WithCause(e)
}
