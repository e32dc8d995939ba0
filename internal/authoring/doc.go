// Package authoring holds the stage handlers that produce a run's creative
// material: scene stills, the narration script and metadata, the voice
// profile, and the decoded narration with its caption track.
//
// Each handler talks to the content collaborators through a narrow
// interface so tests can substitute fakes without an HTTP server.
package authoring
