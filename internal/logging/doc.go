// Package logging assembles structured slog loggers and formatting helpers used
// across vidbridge.
//
// It owns the console and JSON handlers, the fan-out that tees console output
// into a JSON log file, per-component level overrides, and the session handler
// that stamps every record a decoder session emits with its identifier. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
