// Package imagegen talks to an OpenAI-compatible image generation endpoint
// and returns the first base64 image part of the response. A response with
// no image part is an error (ErrNoImage); callers decide how to surface it.
package imagegen
