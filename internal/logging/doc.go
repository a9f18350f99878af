// Package logging assembles structured slog loggers and formatting helpers used
// across reconcile commands and the daemon.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so audit code can tag log lines
// with audit run IDs, plan paths, and agent names. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
