// Package timeline is the render clock's arithmetic: total and per-scene
// durations, the scene index and progress at an elapsed time, clip seek
// positions, still-image zoom, and caption lookup.
package timeline
