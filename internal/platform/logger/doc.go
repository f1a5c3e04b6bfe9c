// Package logger provides structured logging for the application using the
// standard library log/slog package. It configures the process-wide logger from
// ServerConfig and carries request- or task-scoped loggers through a context.
package logger
