// Package workflow drives one production run through the pipeline stages.
//
// The Manager owns the run's status: it moves the run one state at a time
// (transcribing, partitioning_video, generating_images, generating_script,
// profiling_voice, generating_audio, ready, rendering), calls the registered
// stage handler for each state, records every transition in the journal,
// and flushes progress periodically while a stage executes. A stage without
// a handler is recorded as a skipped transition. The first failing stage
// moves the run to failed with a single status message and publishes an
// error notification; a finished run publishes a completion notification.
//
// Each run also gets its own log file under <log_dir>/runs, written in
// addition to the process log.
package workflow
