// Package monitor plays the live mix through the system audio device so a
// realtime render can be heard while it records.
package monitor
