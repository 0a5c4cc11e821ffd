// Package component defines lifecycle-managed pieces of an agentflow
// process: the HTTP API, the telemetry exporters and anything else that
// must be started before work begins and stopped on shutdown.
//
// Components are registered with a Registry, which starts them in
// registration order and stops them in reverse. Health is reported with
// the observability.Health model so component status can be folded into
// the /health endpoint next to the executor registry.
package component
