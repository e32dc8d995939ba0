// Package capture records the composited output. Recorder pipes raw RGBA
// frames and float32 audio into one ffmpeg process and publishes the file
// only after a clean stop; Memory keeps everything in process.
//
// Both sinks hold a constant frame rate regardless of how irregularly frames
// arrive: a frame shown at elapsed t is repeated until floor(t*fps)+1 frames
// exist, and Stop pads the video to the audio length.
package capture
