package assets

import (
	"context"

	"reelsmith/internal/media/ffmpeg"
)

// FFmpegOpener decodes frame windows with an ffmpeg subprocess per window.
type FFmpegOpener struct {
	Runner ffmpeg.Runner
}

// OpenFrames implements StreamOpener.
func (o FFmpegOpener) OpenFrames(ctx context.Context, source string, spec ffmpeg.StreamSpec) (FrameStream, error) {
	stream, err := o.Runner.OpenFrameStream(ctx, source, spec)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
