package capture

import (
	"context"
	"errors"
	"image"
	"sync"
)

// Memory is an in-process sink for tests and dry runs. It applies the same
// frame gate as the recorder.
type Memory struct {
	FPS        int
	SampleRate int
	// KeepFrames stores a copy of every emitted frame.
	KeepFrames bool

	mu      sync.Mutex
	gate    frameGate
	started bool
	stopped bool
	aborted bool
	frames  []*image.RGBA
	count   int
	times   []float64
	audio   []float32
}

// Start implements Sink.
func (m *Memory) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return errors.New("capture: already started")
	}
	m.started = true
	m.gate = frameGate{fps: max(m.FPS, 1)}
	return nil
}

// WriteFrame implements Sink.
func (m *Memory) WriteFrame(frame *image.RGBA, elapsed float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writableLocked(); err != nil {
		return err
	}
	m.times = append(m.times, elapsed)
	n := m.gate.due(elapsed)
	m.emitLocked(frame, n)
	return nil
}

func (m *Memory) emitLocked(frame *image.RGBA, n int) {
	m.count += n
	if !m.KeepFrames || n == 0 || frame == nil {
		return
	}
	clone := image.NewRGBA(frame.Rect)
	copy(clone.Pix, frame.Pix)
	for range n {
		m.frames = append(m.frames, clone)
	}
}

// WriteAudio implements Sink.
func (m *Memory) WriteAudio(samples []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writableLocked(); err != nil {
		return err
	}
	m.audio = append(m.audio, samples...)
	return nil
}

func (m *Memory) writableLocked() error {
	switch {
	case !m.started:
		return errors.New("capture: not started")
	case m.stopped || m.aborted:
		return errors.New("capture: already finished")
	}
	return nil
}

// Stop implements Sink; video is padded to the audio length.
func (m *Memory) Stop(context.Context) (Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writableLocked(); err != nil {
		return Artifact{}, err
	}
	if m.SampleRate > 0 {
		var last *image.RGBA
		if len(m.frames) > 0 {
			last = m.frames[len(m.frames)-1]
		}
		m.emitLocked(last, m.gate.padTo(float64(len(m.audio))/float64(m.SampleRate)))
	}
	m.stopped = true
	return Artifact{
		Path:         "memory",
		Frames:       m.count,
		AudioSamples: int64(len(m.audio)),
		SampleRate:   m.SampleRate,
	}, nil
}

// Abort implements Sink.
func (m *Memory) Abort() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aborted = true
	m.frames = nil
	m.audio = nil
	m.count = 0
	return nil
}

// Aborted reports whether Abort was called.
func (m *Memory) Aborted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aborted
}

// Stopped reports whether Stop succeeded.
func (m *Memory) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// FrameCount is how many frames the gate emitted.
func (m *Memory) FrameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Frames returns stored frames when KeepFrames is set.
func (m *Memory) Frames() []*image.RGBA {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*image.RGBA(nil), m.frames...)
}

// WriteTimes lists the elapsed value of every WriteFrame call.
func (m *Memory) WriteTimes() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.times...)
}

// Audio returns everything written so far.
func (m *Memory) Audio() []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float32(nil), m.audio...)
}
