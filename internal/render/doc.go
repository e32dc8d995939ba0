// Package render runs the frame loop. Each tick reads the elapsed time from
// a Pacer, mixes audio up to that instant, fires a transition effect when
// the scene index changes, and hands a composited frame to the sink.
//
// Everything derives from elapsed time, so the same loop serves a realtime
// render paced by the wall clock and an offline render on a virtual clock.
package render
