// Package logging provides structured logging for the accessor host.
//
// It wraps log/slog so every component logs the same way:
//
//   - JSON output for production, text for development
//   - service and version attributes on every record
//   - level filtering (debug, info, warn, error)
//
// Configuration lives in the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Core packages never import this package. They declare a four-method
// Logger interface and the host passes a *Logger (or a scoped child from
// With) down to them.
//
// Never log bridge usernames, broker passwords or tokens.
package logging
