package api

import (
	"fmt"
	"time"
)

const defaultMaxBodyBytes = 10 << 20

// Config holds HTTP server configuration.
type Config struct {
	Host         string `yaml:"host" mapstructure:"host"`
	Port         int    `yaml:"port" mapstructure:"port"`
	ReadTimeout  int    `yaml:"read_timeout" mapstructure:"read_timeout"`   // seconds
	WriteTimeout int    `yaml:"write_timeout" mapstructure:"write_timeout"` // seconds; runs are synchronous
	IdleTimeout  int    `yaml:"idle_timeout" mapstructure:"idle_timeout"`   // seconds
	MaxBodyBytes int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	// RunTimeout caps a run started over HTTP. Zero leaves the orchestrator
	// setting in place.
	RunTimeout time.Duration `yaml:"run_timeout" mapstructure:"run_timeout"`
	Auth       AuthConfig    `yaml:"auth" mapstructure:"auth"`
}

// AuthConfig enables bearer token authentication when Secret is set.
type AuthConfig struct {
	// Secret is the HS256 signing key.
	Secret   string `yaml:"secret" mapstructure:"secret"`
	Issuer   string `yaml:"issuer" mapstructure:"issuer"`
	Audience string `yaml:"audience" mapstructure:"audience"`
}

// Enabled reports whether requests must carry a token.
func (a AuthConfig) Enabled() bool { return a.Secret != "" }

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 300
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535 (got: %d)", c.Port)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("server.read_timeout must be non-negative (got: %d)", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("server.write_timeout must be non-negative (got: %d)", c.WriteTimeout)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("server.idle_timeout must be non-negative (got: %d)", c.IdleTimeout)
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must be non-negative (got: %d)", c.MaxBodyBytes)
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("server.run_timeout must be non-negative (got: %s)", c.RunTimeout)
	}
	if c.Auth.Enabled() && len(c.Auth.Secret) < 32 {
		return fmt.Errorf("server.auth.secret must be at least 32 bytes")
	}
	return nil
}
