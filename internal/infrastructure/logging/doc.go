// Package logging provides structured logging for KnobGrid Core.
//
// It wraps the standard library's log/slog with configuration-driven
// handler selection (JSON for production, text for development), level
// filtering, and default service attributes.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("serial transport up", "port", "/dev/ttyACM0")
//
// Components receive a child logger via With:
//
//	tcpLog := log.With("component", "tcp")
package logging
