package executor

import (
	"fmt"

	"github.com/kbukum/agentflow/errors"
	"github.com/kbukum/agentflow/resilience"
	"github.com/kbukum/agentflow/validation"
	"github.com/kbukum/agentflow/workflow"
)

// Factory builds an executor from its configuration.
type Factory func(cfg Config) (workflow.Executor, error)

var factories = map[Type]Factory{
	TypeCommand: func(cfg Config) (workflow.Executor, error) {
		return NewCommand(*cfg.Command), nil
	},
	TypeHTTP: func(cfg Config) (workflow.Executor, error) {
		return NewHTTP(*cfg.HTTP)
	},
	TypeTemplate: func(cfg Config) (workflow.Executor, error) {
		return NewTemplate(cfg.Template.Text), nil
	},
}

// Validate checks cfg and that the section for its type is present.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	return validation.New().
		Custom(c.Type != TypeCommand || c.Command != nil, "command", "is required for a command executor").
		Custom(c.Type != TypeHTTP || c.HTTP != nil, "http", "is required for an http executor").
		Custom(c.Type != TypeTemplate || c.Template != nil, "template", "is required for a template executor").
		Err()
}

// Build validates cfg and creates its executor. A configured rate limit
// wraps the executor with workflow.WithRateLimit and a concurrency cap with
// workflow.WithBulkhead, rate limit outermost.
func Build(cfg Config) (workflow.Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("executor %q: %w", cfg.Name, err)
	}

	exec, err := factories[cfg.Type](cfg)
	if err != nil {
		return nil, fmt.Errorf("executor %q: %w", cfg.Name, err)
	}

	var mw []workflow.Middleware
	if cfg.RateLimit != nil {
		rl := *cfg.RateLimit
		if rl.Name == "" {
			rl.Name = "executor." + cfg.Name
		}
		mw = append(mw, workflow.WithRateLimit(resilience.NewRateLimiter(rl)))
	}
	if cfg.Concurrency != nil {
		mw = append(mw, workflow.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "executor." + cfg.Name,
			MaxConcurrent: cfg.Concurrency.Max,
			MaxWait:       cfg.Concurrency.MaxWait,
		})))
	}
	if len(mw) > 0 {
		exec = kinded{Executor: workflow.Chain(exec, mw...), kind: string(cfg.Type)}
	}
	return exec, nil
}

// RegisterAll builds every executor and registers it in reg under its
// name. Names must be unique; nothing is registered when any config fails.
func RegisterAll(reg *workflow.Registry, cfgs []Config) error {
	built := make([]workflow.Executor, len(cfgs))
	seen := make(map[string]bool, len(cfgs))
	for i, cfg := range cfgs {
		if seen[cfg.Name] {
			return errors.AlreadyExists("executor").WithDetail("name", cfg.Name)
		}
		seen[cfg.Name] = true

		exec, err := Build(cfg)
		if err != nil {
			return err
		}
		built[i] = exec
	}

	for i, cfg := range cfgs {
		reg.Register(cfg.Name, built[i])
	}
	return nil
}

// kinded keeps the kind of an executor visible through a decorator.
type kinded struct {
	workflow.Executor
	kind string
}

func (k kinded) Kind() string { return k.kind }
