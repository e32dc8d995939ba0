// Package speech wraps the narration synthesis and transcription endpoints.
//
// Synthesize returns the provider's audio bytes untouched; with the default
// "pcm" response format they are raw 24 kHz signed 16-bit mono, which the
// audio package decodes. Transcribe uploads reference audio or video as a
// multipart form.
package speech
