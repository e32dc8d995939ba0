// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe on a path; Summary condenses the result to the
// duration, dimensions, frame rate and audio presence the pipeline uses to
// partition uploaded clips.
package ffprobe
