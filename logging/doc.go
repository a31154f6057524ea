// Package logging provides a minimal logging interface and adapters.
//
// Runtimes depend only on the Logger interface (Debug, Info, Warn, Error with
// slog-style key/value pairs) so callers can plug any structured logger. The
// package includes:
//
//   - SlogAdapter wrapping an existing *slog.Logger
//   - StructuredLogger, a configurable slog logger with component and
//     context attributes
//   - NoOpLogger for silent operation (tests, embedding)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "json", Output: os.Stderr})
//	l := agentlauncher.New(func(o *agentlauncher.Options) { o.Logger = logger.WithComponent("launcher") })
package logging
