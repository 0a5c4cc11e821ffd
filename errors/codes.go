package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeRateLimited indicates the caller is rate limited.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates the resource already exists.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Authentication errors
const (
	// ErrCodeUnauthorized indicates the request is unauthorized.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeTokenExpired indicates the bearer token has expired.
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
	// ErrCodeInvalidToken indicates the bearer token is invalid.
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
)

// Workflow errors
const (
	// ErrCodeDSLSyntax indicates a malformed dependency string.
	ErrCodeDSLSyntax ErrorCode = "DSL_SYNTAX"
	// ErrCodeUnknownNode indicates a dependency references an undeclared node.
	ErrCodeUnknownNode ErrorCode = "UNKNOWN_NODE"
	// ErrCodeCycleDetected indicates the dependency graph is not acyclic.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"
	// ErrCodeInvalidWorkflow indicates a structurally invalid workflow.
	ErrCodeInvalidWorkflow ErrorCode = "INVALID_WORKFLOW"
	// ErrCodeNodeExecution indicates a node executor failed.
	ErrCodeNodeExecution ErrorCode = "NODE_EXECUTION"
	// ErrCodeWorkflowTimeout indicates a run exceeded its deadline.
	ErrCodeWorkflowTimeout ErrorCode = "WORKFLOW_TIMEOUT"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeExternalService indicates an error from an external service.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeRateLimited:        true,
	ErrCodeExternalService:    true,
	ErrCodeWorkflowTimeout:    true,
	ErrCodeNodeExecution:      false,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
