package ingest

import (
	"context"

	"reelsmith/internal/media/ffprobe"
)

// Speech transcribes an uploaded payload.
type Speech interface {
	Transcribe(ctx context.Context, payload []byte, mimeType, filename string) (string, error)
}

// AudioExtractor writes the first audio stream of a clip to a file that
// transcription endpoints accept.
type AudioExtractor interface {
	ExtractTranscriptionAudio(ctx context.Context, source, dest string) error
}

// Prober inspects a media file.
type Prober func(ctx context.Context, binary, path string) (ffprobe.Result, error)

func defaultProbe(ctx context.Context, binary, path string) (ffprobe.Result, error) {
	return ffprobe.Inspect(ctx, binary, path)
}
