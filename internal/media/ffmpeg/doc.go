// Package ffmpeg runs the ffmpeg jobs the engine depends on: decoding
// narration containers and clip soundtracks to mono float PCM, extracting
// transcription audio, and streaming RGBA frames of a clip's trim window
// already cover-cropped to the canvas.
package ffmpeg
