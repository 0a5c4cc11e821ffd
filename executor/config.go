package executor

import (
	"time"

	"github.com/kbukum/agentflow/httpclient"
	"github.com/kbukum/agentflow/resilience"
)

// Type selects an executor implementation.
type Type string

const (
	TypeCommand  Type = "command"
	TypeHTTP     Type = "http"
	TypeTemplate Type = "template"
)

// Config declares one named executor. Only the section matching Type is
// read, and it is required.
type Config struct {
	Name     string          `yaml:"name" mapstructure:"name" validate:"required"`
	Type     Type            `yaml:"type" mapstructure:"type" validate:"required,oneof=command http template"`
	Command  *CommandConfig  `yaml:"command,omitempty" mapstructure:"command"`
	HTTP     *HTTPConfig     `yaml:"http,omitempty" mapstructure:"http"`
	Template *TemplateConfig `yaml:"template,omitempty" mapstructure:"template"`
	// RateLimit throttles calls into this executor. Nil disables it.
	RateLimit *resilience.RateLimiterConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
	// Concurrency caps simultaneous calls into this executor across all
	// runs of the process. Nil disables it.
	Concurrency *ConcurrencyConfig `yaml:"concurrency,omitempty" mapstructure:"concurrency"`
}

// ConcurrencyConfig bounds in-flight calls of one executor.
type ConcurrencyConfig struct {
	Max int `yaml:"max" mapstructure:"max" validate:"gte=1"`
	// MaxWait bounds the wait for a slot. 0 waits as long as the caller's
	// context allows; a negative value rejects at once when all slots are busy.
	MaxWait time.Duration `yaml:"max_wait" mapstructure:"max_wait"`
}

// CommandConfig configures a subprocess executor.
type CommandConfig struct {
	Binary string   `yaml:"binary" mapstructure:"binary" validate:"required"`
	Args   []string `yaml:"args" mapstructure:"args"`
	Dir    string   `yaml:"dir" mapstructure:"dir"`
	// Env entries are KEY=VALUE pairs added to the inherited environment.
	Env     []string      `yaml:"env" mapstructure:"env"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// HTTPConfig configures a remote agent executor.
type HTTPConfig struct {
	URL     string                 `yaml:"url" mapstructure:"url" validate:"required,url"`
	Timeout time.Duration          `yaml:"timeout" mapstructure:"timeout"`
	Auth    *httpclient.AuthConfig `yaml:"auth,omitempty" mapstructure:"auth"`
	Headers map[string]string      `yaml:"headers" mapstructure:"headers"`
}

// TemplateConfig configures a template executor.
type TemplateConfig struct {
	Text string `yaml:"text" mapstructure:"text" validate:"required"`
}
