// Package logger provides structured logging for agentflow using zerolog.
//
// Loggers are scoped by component and enriched with workflow fields such
// as the run ID, node and layer, so every line emitted during a run can be
// correlated with the trace that produced it.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("scheduler")
//	log.Info("layer completed", logger.Fields(logger.FieldLayer, 2))
package logger
