// Package mixer is the sample-accurate audio graph behind a render.
//
// Three paths feed every destination: narration at unity gain scheduled once
// at the lead-in, a shared background stage fixed at 0.04 that each unique
// media source is connected to exactly once, and transient whoosh voices
// filtered through a sweeping lowpass. The graph advances only when Render
// is called, so its position is the audio clock of the run.
package mixer
