// Package stage defines the contract between the workflow manager and the
// production stage handlers, plus small helpers the handlers share.
package stage
