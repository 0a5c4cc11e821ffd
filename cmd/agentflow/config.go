package main

import (
	"fmt"

	"github.com/kbukum/agentflow/api"
	"github.com/kbukum/agentflow/config"
	"github.com/kbukum/agentflow/executor"
	"github.com/kbukum/agentflow/kafka"
	"github.com/kbukum/agentflow/observability"
	"github.com/kbukum/agentflow/validation"
	"github.com/kbukum/agentflow/workflow"
)

const serviceName = "agentflow"

// AppConfig is the agentflow configuration file.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Orchestrator workflow.Config            `yaml:"orchestrator" mapstructure:"orchestrator"`
	Executors    []executor.Config          `yaml:"executors" mapstructure:"executors"`
	Workflows    WorkflowsConfig            `yaml:"workflows" mapstructure:"workflows"`
	Server       api.Config                 `yaml:"server" mapstructure:"server"`
	Tracing      observability.TracerConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics      observability.MeterConfig  `yaml:"metrics" mapstructure:"metrics"`
	Kafka        kafka.Config               `yaml:"kafka" mapstructure:"kafka"`
}

// WorkflowsConfig lists where named workflow definitions are looked up.
type WorkflowsConfig struct {
	Dirs []string `yaml:"dirs" mapstructure:"dirs"`
}

// ApplyDefaults fills unset values.
func (c *AppConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Orchestrator.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Kafka.ApplyDefaults()
	if len(c.Workflows.Dirs) == 0 {
		c.Workflows.Dirs = []string{"./workflows"}
	}
	applyTelemetryDefaults(&c.Tracing.ServiceName, &c.Tracing.ServiceVersion, &c.Tracing.Environment, &c.Tracing.Endpoint, &c.ServiceConfig)
	applyTelemetryDefaults(&c.Metrics.ServiceName, &c.Metrics.ServiceVersion, &c.Metrics.Environment, &c.Metrics.Endpoint, &c.ServiceConfig)
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1.0
	}
}

func applyTelemetryDefaults(name, version, env, endpoint *string, svc *config.ServiceConfig) {
	if *name == "" {
		*name = svc.Name
	}
	if *version == "" {
		*version = svc.Version
	}
	if *env == "" {
		*env = svc.Environment
	}
	if *endpoint == "" {
		*endpoint = "localhost:4318"
	}
}

// Validate checks every section.
func (c *AppConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Orchestrator.Validate(); err != nil {
		return fmt.Errorf("config.orchestrator: %w", err)
	}
	for i := range c.Executors {
		if err := c.Executors[i].Validate(); err != nil {
			return fmt.Errorf("config.executors[%d]: %w", i, err)
		}
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(&c.Tracing); err != nil {
		return fmt.Errorf("config.tracing: %w", err)
	}
	if err := c.Kafka.Validate(); err != nil {
		return fmt.Errorf("config.kafka: %w", err)
	}
	return nil
}

// loadConfig reads path, or the discovered agentflow config when path is
// empty, with AGENTFLOW_* environment overrides. The result is not yet
// defaulted or validated; bootstrap.NewApp does both.
func loadConfig(path string) (*AppConfig, error) {
	var opts []config.LoaderOption
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	cfg := &AppConfig{}
	if err := config.LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}
