// Package logging provides structured logging for the Gray Logic hub.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same shape: JSON in production, text during development, and the
// service and version attributes on every entry.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, file
//	  file: "/var/log/graylogic-hub.log"
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	coord := logger.Component("coordinator").With("entry_id", "controller")
//	coord.Warn("refresh failed", "error", err)
//
// Never log secrets, tokens, or passwords.
package logging
