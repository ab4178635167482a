// Package logging assembles structured slog loggers used across skytag.
//
// It owns the console and JSON handlers, per-run log files, log retention and
// context helpers that tag lines with the run id. Console output renders the
// component and frame attributes as a prefix so per-frame progress reads in
// order. NewNop provides a discard logger for tests and optional wiring.
package logging
