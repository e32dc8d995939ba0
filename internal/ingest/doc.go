// Package ingest implements the pipeline stages that read user uploads:
// transcribing narration or clip audio, and partitioning an uploaded clip
// into equal scene windows. Both stages are explicit no-ops when the run has
// nothing for them to read.
package ingest
