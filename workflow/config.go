package workflow

import (
	"time"

	"github.com/kbukum/agentflow/validation"
)

// DefaultMaxConcurrency bounds concurrent node executions when no limit is
// configured.
const DefaultMaxConcurrency = 10

// FailurePolicy decides what happens after a node fails.
type FailurePolicy string

const (
	// FailAbort lets the failing layer finish, then stops the run.
	FailAbort FailurePolicy = "abort"
	// FailDegrade keeps going and hands dependents an upstream failure
	// marker instead of the failed output.
	FailDegrade FailurePolicy = "degrade"
)

// Config configures workflow execution.
type Config struct {
	// MaxConcurrency caps concurrently executing nodes across a whole run.
	// Zero or negative means DefaultMaxConcurrency.
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency" json:"max_concurrency"`
	// FailurePolicy is abort or degrade. Empty means abort.
	FailurePolicy FailurePolicy `yaml:"failure_policy" mapstructure:"failure_policy" json:"failure_policy" validate:"omitempty,oneof=abort degrade"`
	// Timeout bounds a whole run. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" json:"timeout" validate:"gte=0"`
}

// DefaultConfig returns the default execution settings.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: DefaultMaxConcurrency,
		FailurePolicy:  FailAbort,
	}
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.FailurePolicy == "" {
		c.FailurePolicy = FailAbort
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
