// Package logging assembles structured slog loggers for reelsmith.
//
// It owns the console and JSON handlers, level parsing and output fan-out,
// and context helpers that tag lines with the run ID, workflow stage and
// request correlation ID. NewNop gives tests and optional wiring a logger
// that cannot fail.
package logging
