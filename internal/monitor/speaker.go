package monitor

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/hajimehoshi/oto/v2"

	"reelsmith/internal/logging"
)

// DefaultLatency is the ring buffer length in seconds.
const DefaultLatency = 0.5

const bytesPerSample = 4

// Speaker plays the mix on the default output device. Mixed audio is pushed
// with WriteAudio and pulled by the device through Read; an empty buffer
// plays silence and an overfull one drops its oldest samples.
type Speaker struct {
	ctx    *oto.Context
	player oto.Player
	logger *slog.Logger

	mu        sync.Mutex
	ring      []float32
	head      int
	size      int
	underruns int
	dropped   int
	closed    bool
}

// Open creates an output context at sampleRate, waits for the device and
// starts playback.
func Open(ctx context.Context, sampleRate int, latency float64, logger *slog.Logger) (*Speaker, error) {
	otoCtx, ready, err := oto.NewContext(sampleRate, 1, oto.FormatFloat32LE)
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	select {
	case <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s := newSpeaker(sampleRate, latency)
	s.ctx = otoCtx
	s.logger = logging.NewComponentLogger(logger, "monitor")
	s.player = otoCtx.NewPlayer(s)
	s.player.Play()
	s.logger.Info("monitor output started", logging.Int("sample_rate", sampleRate))
	return s, nil
}

func newSpeaker(sampleRate int, latency float64) *Speaker {
	if latency <= 0 {
		latency = DefaultLatency
	}
	capacity := max(1, int(math.Ceil(float64(sampleRate)*latency)))
	return &Speaker{ring: make([]float32, capacity), logger: logging.NewNop()}
}

// WriteAudio queues samples for playback. It never blocks.
func (s *Speaker) WriteAudio(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	for _, v := range samples {
		if s.size == len(s.ring) {
			s.head = (s.head + 1) % len(s.ring)
			s.size--
			s.dropped++
		}
		s.ring[(s.head+s.size)%len(s.ring)] = v
		s.size++
	}
	return nil
}

// Read implements io.Reader for the output player.
func (s *Speaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.EOF
	}
	n := len(p) / bytesPerSample
	short := false
	for i := range n {
		var v float32
		if s.size > 0 {
			v = s.ring[s.head]
			s.head = (s.head + 1) % len(s.ring)
			s.size--
		} else {
			short = true
		}
		binary.LittleEndian.PutUint32(p[i*bytesPerSample:], math.Float32bits(v))
	}
	if short {
		s.underruns++
	}
	return n * bytesPerSample, nil
}

// Buffered is how many samples wait for playback.
func (s *Speaker) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Stats reports reads that ran dry and samples dropped on overflow.
func (s *Speaker) Stats() (underruns, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.underruns, s.dropped
}

// Close stops playback.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	underruns, dropped := s.underruns, s.dropped
	s.mu.Unlock()
	var err error
	if s.player != nil {
		err = s.player.Close()
	}
	s.logger.Info("monitor output stopped",
		logging.Int("underruns", underruns),
		logging.Int("dropped_samples", dropped),
	)
	return err
}
