package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// frameQueue bounds decoded frames held ahead of the consumer.
const frameQueue = 4

// StreamSpec selects a trim window of a clip and how to deliver it.
type StreamSpec struct {
	Start    float64
	Duration float64
	// Frames is how many frames to spread evenly over the window.
	Frames int
	Width  int
	Height int
}

// Frame is one decoded RGBA frame. Time is seconds from the window start.
type Frame struct {
	Index int
	Time  float64
	Image *image.RGBA
}

// FrameStream delivers frames of one window from an ffmpeg process. Frames
// are already scaled and cropped to cover Width x Height.
type FrameStream struct {
	frames chan Frame
	cancel context.CancelFunc
	cmd    *exec.Cmd
	stderr bytes.Buffer

	done    chan struct{}
	errOnce sync.Once
	err     error
}

// FrameArgs returns the ffmpeg arguments for spec.
func (r Runner) FrameArgs(source string, spec StreamSpec) []string {
	rate := float64(spec.Frames) / spec.Duration
	filter := fmt.Sprintf(
		"fps=%s,scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d",
		strconv.FormatFloat(rate, 'f', 6, 64), spec.Width, spec.Height, spec.Width, spec.Height,
	)
	return append(r.baseArgs(),
		"-ss", strconv.FormatFloat(spec.Start, 'f', 3, 64),
		"-t", strconv.FormatFloat(spec.Duration, 'f', 3, 64),
		"-i", source,
		"-an", "-sn", "-dn",
		"-vf", filter,
		"-frames:v", strconv.Itoa(spec.Frames),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
}

// OpenFrameStream starts decoding the window described by spec.
func (r Runner) OpenFrameStream(ctx context.Context, source string, spec StreamSpec) (*FrameStream, error) {
	if spec.Width <= 0 || spec.Height <= 0 || spec.Frames <= 0 || spec.Duration <= 0 {
		return nil, fmt.Errorf("ffmpeg frames: invalid spec %+v", spec)
	}
	if strings.TrimSpace(source) == "" {
		return nil, errors.New("ffmpeg frames: empty source")
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &FrameStream{
		frames: make(chan Frame, frameQueue),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.cmd = exec.CommandContext(ctx, r.Binary, r.FrameArgs(source, spec)...) //nolint:gosec
	s.cmd.Stderr = &s.stderr
	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg frames: stdout pipe: %w", err)
	}
	if err := s.cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg frames: start: %w", err)
	}
	go s.read(ctx, stdout, spec)
	return s, nil
}

func (s *FrameStream) read(ctx context.Context, stdout io.Reader, spec StreamSpec) {
	defer close(s.done)
	defer close(s.frames)
	frameSize := spec.Width * spec.Height * 4
	step := spec.Duration / float64(spec.Frames)
	var readErr error
	for index := 0; ; index++ {
		img := image.NewRGBA(image.Rect(0, 0, spec.Width, spec.Height))
		if _, err := io.ReadFull(stdout, img.Pix[:frameSize]); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				readErr = err
			}
			break
		}
		select {
		case s.frames <- Frame{Index: index, Time: float64(index) * step, Image: img}:
		case <-ctx.Done():
			_, _ = io.Copy(io.Discard, stdout)
			_ = s.cmd.Wait()
			return
		}
	}
	waitErr := s.cmd.Wait()
	if ctx.Err() != nil {
		return
	}
	if readErr == nil && waitErr != nil {
		readErr = fmt.Errorf("%w: %s", waitErr, strings.TrimSpace(s.stderr.String()))
	}
	if readErr != nil {
		s.setErr(fmt.Errorf("ffmpeg frames: %w", readErr))
	}
}

func (s *FrameStream) setErr(err error) {
	s.errOnce.Do(func() { s.err = err })
}

// Frames yields decoded frames in order and is closed at the end of the window.
func (s *FrameStream) Frames() <-chan Frame { return s.frames }

// Err reports a decode failure once Frames is closed.
func (s *FrameStream) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close stops the process and waits for the reader to exit.
func (s *FrameStream) Close() error {
	s.cancel()
	<-s.done
	return nil
}
