// Package logger provides structured logging for floq using zerolog.
//
// It supports JSON and console output, level configuration, and loggers
// scoped to a component or to the run/stage found in a context.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("window")
//	log.Info("flushed", logger.Fields(logger.FieldCount, 12))
package logger
