// Package config loads agentflow configuration with Viper.
//
// Configuration is read from a YAML file, then overlaid with values from a
// .env file and the process environment. Environment variables carry the
// AGENTFLOW_ prefix and use underscores for nesting, so
// AGENTFLOW_ORCHESTRATOR_MAX_CONCURRENCY overrides orchestrator.max_concurrency.
//
// # Usage
//
//	var cfg AppConfig
//	err := config.LoadConfig("agentflow", &cfg, config.WithConfigFile(path))
package config
