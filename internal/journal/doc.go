// Package journal persists production runs, their status transitions, and
// their scene inventory in SQLite (modernc.org/sqlite, no cgo).
//
// The journal is an audit log rather than a work queue: the workflow manager
// writes one row per transition as it happens, and the CLI reads it back for
// run history. Pass ":memory:" to Open for a throwaway journal.
package journal
