// Package logging assembles structured slog loggers and formatting helpers used
// across mediaflow.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so engine and handler code tag log lines
// with workflow ids, operations and correlation ids automatically. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
