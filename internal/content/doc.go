// Package content is the facade over the generative collaborators: narration
// scripts, scene descriptions, images, metadata, voice profiles, speech and
// transcription. Failures surface as services.ErrSynthesis so the workflow
// can report a single generic status.
package content
