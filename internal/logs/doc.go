// Package logs reads the per-run JSON log files written under
// <log_dir>/runs.
//
// Tail returns the last N lines or everything after a byte offset, and can
// wait for new lines so `reelsmith runs log --follow` streams a render in
// progress. Format turns one JSON record into a single readable line.
package logs
