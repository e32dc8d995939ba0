// Package services defines shared utilities consumed by the pipeline stage
// handlers and the external content collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     (decode, synthesis, asset availability, capture) into the single
//     terminal status message a run reports.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability) stays uniform across the pipeline.
package services
