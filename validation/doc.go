// Package validation provides input validation for agentflow configuration,
// workflow definitions and API request bodies.
//
// It supports both struct tag validation (using the validator library) and
// programmatic validation with error collection. Both produce an
// errors.AppError with per-field details.
//
// # Struct Tag Validation
//
//	type RunRequest struct {
//	    Task string `json:"task" validate:"required"`
//	}
//	err := validation.Validate(req)
//
// The custom "nodeid" tag accepts identifiers usable in a dependency
// expression.
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("name", def.Name).OneOf("pattern", def.Pattern, patterns)
//	err := v.Validate()
package validation
