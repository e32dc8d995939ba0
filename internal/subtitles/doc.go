// Package subtitles produces the caption track: Estimate times a script
// against the narration length, and the SRT helpers read user-supplied
// tracks and write the sidecar published next to the video.
package subtitles
