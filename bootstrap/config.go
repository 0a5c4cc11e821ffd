package bootstrap

import (
	"github.com/kbukum/agentflow/config"
)

// Config is the interface constraint for application configuration types.
// Any struct that embeds config.ServiceConfig (value embedding) and defines
// its own ApplyDefaults and Validate satisfies it.
//
//	type AppConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Orchestrator workflow.Config `yaml:"orchestrator" mapstructure:"orchestrator"`
//	}
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
