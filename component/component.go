package component

import (
	"context"

	"github.com/kbukum/agentflow/observability"
)

// Component is a lifecycle-managed part of the process.
type Component interface {
	// Name returns the unique name of the component for registration.
	Name() string

	// Start initializes and starts the component.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the component and releases resources.
	Stop(ctx context.Context) error

	// Health returns the current health status of the component.
	Health(ctx context.Context) observability.Health
}

// Description holds summary information for the startup display.
type Description struct {
	// Name is the display name. If empty, the component's Name() is used.
	Name string
	// Type categorizes the component: "server", "telemetry".
	Type string
	// Details is a one-liner such as "0.0.0.0:8080 auth=on".
	Details string
}

// Describable is optionally implemented by components that report what
// they are in the startup summary.
type Describable interface {
	Describe() Description
}

// checker adapts a Component to observability.HealthChecker.
type checker struct{ c Component }

// AsChecker returns c as an observability.HealthChecker.
func AsChecker(c Component) observability.HealthChecker { return checker{c} }

func (h checker) CheckHealth(ctx context.Context) observability.Health {
	return h.c.Health(ctx)
}
