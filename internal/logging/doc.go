// Package logging assembles structured slog loggers and formatting helpers used
// across deskdrop.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so each arrangement
// automatically tags its log lines with a correlation ID and the path being
// processed. A no-op logger is provided for tests and wiring code that
// cannot fail.
package logging
