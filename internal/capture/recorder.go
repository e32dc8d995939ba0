package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/media/ffmpeg"
	"reelsmith/internal/services"
)

const (
	defaultVideoQueue = 8
	defaultAudioQueue = 64
)

// RecorderOptions configure an ffmpeg Recorder.
type RecorderOptions struct {
	Binary     string
	Path       string
	Width      int
	Height     int
	FPS        int
	SampleRate int
	// Container is the muxer: mp4, mov, mkv or webm.
	Container      string
	VideoCodecArgs []string
	AudioCodecArgs []string
	// VideoQueue and AudioQueue bound pending writes per pipe.
	VideoQueue int
	AudioQueue int
	Logger     *slog.Logger
}

// Recorder encodes frames and audio with one ffmpeg process. Raw RGBA frames
// go to stdin and float32 mono audio to fd 3. Output is written next to
// Path with a .part suffix and renamed on a clean Stop.
type Recorder struct {
	opts   RecorderOptions
	logger *slog.Logger

	mu       sync.Mutex
	state    recorderState
	gate     frameGate
	last     *image.RGBA
	samples  int64
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	stderr   lockedBuffer
	videoQ   chan *image.RGBA
	audioQ   chan []float32
	qOnce    sync.Once
	writers  sync.WaitGroup
	failed   chan struct{}
	failOnce sync.Once
	failErr  error
	exited   chan struct{}
	waitErr  error
}

type recorderState int

const (
	stateIdle recorderState = iota
	stateRecording
	stateStopped
	stateAborted
)

// NewRecorder validates opts.
func NewRecorder(opts RecorderOptions) (*Recorder, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("capture: output path required")
	}
	if opts.Width <= 0 || opts.Height <= 0 || opts.FPS <= 0 || opts.SampleRate <= 0 {
		return nil, fmt.Errorf("capture: invalid geometry %dx%d@%d, %d Hz", opts.Width, opts.Height, opts.FPS, opts.SampleRate)
	}
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "ffmpeg"
	}
	if opts.Container == "" {
		opts.Container = "mp4"
	}
	if opts.VideoQueue <= 0 {
		opts.VideoQueue = defaultVideoQueue
	}
	if opts.AudioQueue <= 0 {
		opts.AudioQueue = defaultAudioQueue
	}
	return &Recorder{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "capture"),
		gate:   frameGate{fps: opts.FPS},
	}, nil
}

func (r *Recorder) partPath() string { return r.opts.Path + fileutil.PartSuffix }

func muxer(container string) string {
	if container == "mkv" {
		return "matroska"
	}
	return container
}

// Args returns the ffmpeg arguments for the recording.
func (r *Recorder) Args() []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", r.opts.Width, r.opts.Height),
		"-r", strconv.Itoa(r.opts.FPS),
		"-i", "pipe:0",
		"-f", "f32le", "-ar", strconv.Itoa(r.opts.SampleRate), "-ac", "1",
		"-i", "pipe:3",
		"-map", "0:v:0", "-map", "1:a:0",
	}
	args = append(args, r.opts.VideoCodecArgs...)
	args = append(args, r.opts.AudioCodecArgs...)
	if r.opts.Container == "mp4" || r.opts.Container == "mov" {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, "-f", muxer(r.opts.Container), r.partPath())
}

// Start launches ffmpeg.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != stateIdle {
		return errors.New("capture: recorder already used")
	}
	audioRead, audioWrite, err := os.Pipe()
	if err != nil {
		return services.Wrap(services.ErrCapture, "capture", "start", "audio pipe", err)
	}
	procCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(procCtx, r.opts.Binary, r.Args()...) //nolint:gosec
	cmd.Stderr = &r.stderr
	cmd.ExtraFiles = []*os.File{audioRead}
	videoWrite, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		_ = audioRead.Close()
		_ = audioWrite.Close()
		return services.Wrap(services.ErrCapture, "capture", "start", "video pipe", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		_ = audioRead.Close()
		_ = audioWrite.Close()
		return services.Wrap(services.ErrCapture, "capture", "start", r.opts.Binary, err)
	}
	// the child holds its own copy
	_ = audioRead.Close()

	r.cmd = cmd
	r.cancel = cancel
	r.videoQ = make(chan *image.RGBA, r.opts.VideoQueue)
	r.audioQ = make(chan []float32, r.opts.AudioQueue)
	r.failed = make(chan struct{})
	r.exited = make(chan struct{})
	r.state = stateRecording

	r.writers.Add(2)
	go r.pumpVideo(videoWrite)
	go r.pumpAudio(audioWrite)
	go func() {
		r.writers.Wait()
		r.waitErr = cmd.Wait()
		close(r.exited)
	}()
	r.logger.Info("recording started",
		logging.String("path", r.opts.Path),
		logging.String("size", fmt.Sprintf("%dx%d", r.opts.Width, r.opts.Height)),
		logging.Int("fps", r.opts.FPS),
	)
	return nil
}

func (r *Recorder) fail(err error) {
	r.failOnce.Do(func() {
		r.failErr = err
		close(r.failed)
	})
}

// pumpVideo drains the queue even after a write error so producers never
// block on a dead pipe.
func (r *Recorder) pumpVideo(w io.WriteCloser) {
	defer r.writers.Done()
	broken := false
	for frame := range r.videoQ {
		if broken {
			continue
		}
		if _, err := w.Write(frame.Pix); err != nil {
			broken = true
			r.fail(fmt.Errorf("write video: %w", err))
		}
	}
	_ = w.Close()
}

func (r *Recorder) pumpAudio(w io.WriteCloser) {
	defer r.writers.Done()
	broken := false
	var buf []byte
	for chunk := range r.audioQ {
		if broken {
			continue
		}
		buf = ffmpeg.EncodeF32LE(buf[:0], chunk)
		if _, err := w.Write(buf); err != nil {
			broken = true
			r.fail(fmt.Errorf("write audio: %w", err))
		}
	}
	_ = w.Close()
}

func (r *Recorder) checkRecording() error {
	if r.state != stateRecording {
		return services.Wrap(services.ErrCapture, "capture", "write", "recorder is not recording", nil)
	}
	select {
	case <-r.failed:
		return services.Wrap(services.ErrCapture, "capture", "write", r.stderrTail(), r.failErr)
	default:
		return nil
	}
}

// WriteFrame copies frame and queues it as many times as the frame gate
// requires. It blocks while the video queue is full.
func (r *Recorder) WriteFrame(frame *image.RGBA, elapsed float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkRecording(); err != nil {
		return err
	}
	n := r.gate.due(elapsed)
	if n == 0 {
		return nil
	}
	clone := image.NewRGBA(frame.Rect)
	copy(clone.Pix, frame.Pix)
	r.last = clone
	return r.enqueueFrames(clone, n)
}

func (r *Recorder) enqueueFrames(frame *image.RGBA, n int) error {
	for range n {
		select {
		case r.videoQ <- frame:
		case <-r.failed:
			return services.Wrap(services.ErrCapture, "capture", "write frame", r.stderrTail(), r.failErr)
		case <-r.exited:
			return services.Wrap(services.ErrCapture, "capture", "write frame", "encoder exited", r.waitErr)
		}
	}
	return nil
}

// WriteAudio queues a copy of samples. It blocks while the audio queue is full.
func (r *Recorder) WriteAudio(samples []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkRecording(); err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}
	chunk := append([]float32(nil), samples...)
	select {
	case r.audioQ <- chunk:
		r.samples += int64(len(chunk))
		return nil
	case <-r.failed:
		return services.Wrap(services.ErrCapture, "capture", "write audio", r.stderrTail(), r.failErr)
	case <-r.exited:
		return services.Wrap(services.ErrCapture, "capture", "write audio", "encoder exited", r.waitErr)
	}
}

// Stop pads video to the audio length, closes both pipes, waits for ffmpeg
// and publishes the file. Any failure removes the partial output.
func (r *Recorder) Stop(ctx context.Context) (Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != stateRecording {
		return Artifact{}, services.Wrap(services.ErrCapture, "capture", "stop", "recorder is not recording", nil)
	}
	pad := r.gate.padTo(float64(r.samples) / float64(r.opts.SampleRate))
	if pad > 0 {
		last := r.last
		if last == nil {
			last = blackFrame(r.opts.Width, r.opts.Height)
		}
		if err := r.enqueueFrames(last, pad); err != nil {
			r.abortLocked()
			return Artifact{}, err
		}
	}
	r.closeQueues()

	select {
	case <-r.exited:
	case <-ctx.Done():
		r.abortLocked()
		return Artifact{}, services.Wrap(services.ErrCapture, "capture", "stop", "waiting for encoder", ctx.Err())
	}
	r.cancel()
	if err := r.finishErr(); err != nil {
		r.state = stateAborted
		_ = os.Remove(r.partPath())
		return Artifact{}, err
	}
	if err := fileutil.FinalizePart(r.opts.Path); err != nil {
		r.state = stateAborted
		_ = os.Remove(r.partPath())
		return Artifact{}, services.Wrap(services.ErrCapture, "capture", "stop", "publish", err)
	}
	r.state = stateStopped
	art := Artifact{
		Path:         r.opts.Path,
		Frames:       r.gate.written,
		AudioSamples: r.samples,
		SampleRate:   r.opts.SampleRate,
	}
	if info, err := os.Stat(r.opts.Path); err == nil {
		art.SizeBytes = info.Size()
	}
	r.logger.Info("recording finished",
		logging.String("path", art.Path),
		logging.Int("frames", art.Frames),
		logging.Duration("duration", art.Duration()),
		logging.String("size", humanize.Bytes(uint64(max(art.SizeBytes, 0)))),
	)
	return art, nil
}

func (r *Recorder) finishErr() error {
	select {
	case <-r.failed:
		return services.Wrap(services.ErrCapture, "capture", "stop", r.stderrTail(), r.failErr)
	default:
	}
	if r.waitErr != nil {
		return services.Wrap(services.ErrCapture, "capture", "stop", r.stderrTail(), r.waitErr)
	}
	return nil
}

// Abort kills ffmpeg and removes the partial output. Safe to call in any
// state.
func (r *Recorder) Abort() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != stateRecording {
		if r.state == stateIdle {
			r.state = stateAborted
		}
		return nil
	}
	r.abortLocked()
	return nil
}

func (r *Recorder) abortLocked() {
	r.cancel()
	r.fail(errors.New("recording aborted"))
	r.closeQueues()
	<-r.exited
	r.state = stateAborted
	if err := os.Remove(r.partPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("partial output not removed", logging.String("path", r.partPath()), logging.Error(err))
	}
	r.logger.Info("recording aborted", logging.String("path", r.opts.Path))
}

func (r *Recorder) closeQueues() {
	r.qOnce.Do(func() {
		close(r.videoQ)
		close(r.audioQ)
	})
}

// lockedBuffer lets error paths read stderr while ffmpeg still writes it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (r *Recorder) stderrTail() string {
	msg := strings.TrimSpace(r.stderr.String())
	if msg == "" {
		return "ffmpeg failed"
	}
	if lines := strings.Split(msg, "\n"); len(lines) > 3 {
		msg = strings.Join(lines[len(lines)-3:], "\n")
	}
	return msg
}

func blackFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}
