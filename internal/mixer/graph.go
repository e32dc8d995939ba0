package mixer

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"reelsmith/internal/audio"
)

const (
	// NarrationGain is applied to the narration path.
	NarrationGain = 1.0
	// BackgroundGain is the fixed gain of the shared background stage.
	BackgroundGain = 0.04
)

// Destination receives every rendered block of the mix.
type Destination interface {
	WriteAudio(samples []float32) error
}

// Source is a live background input such as a video element's soundtrack.
// ReadAudio fills dst and returns the number of samples written; the rest of
// dst is treated as silence.
type Source interface {
	ReadAudio(dst []float32) int
}

// Graph is a pull-based mono mix graph driven by a sample clock.
type Graph struct {
	mu sync.Mutex

	rate     int
	position int64

	destinations []Destination

	narration          audio.Buffer
	narrationStart     int64
	narrationScheduled bool

	background map[string]Source
	bgOrder    []string

	voices    []*Voice
	triggered int
	rng       *rand.Rand

	mix     []float32
	scratch []float32
}

// NewGraph returns a graph at sampleRate. A nil rng uses the global source
// for effect noise.
func NewGraph(sampleRate int, rng *rand.Rand) *Graph {
	return &Graph{
		rate:       sampleRate,
		background: make(map[string]Source),
		rng:        rng,
	}
}

// SampleRate of the graph.
func (g *Graph) SampleRate() int { return g.rate }

// Position is the number of samples rendered so far.
func (g *Graph) Position() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.position
}

// SampleAt converts seconds on the graph clock to a sample index.
func (g *Graph) SampleAt(seconds float64) int64 {
	return int64(math.Round(seconds * float64(g.rate)))
}

// AddDestination routes the mix to d (monitor, capture).
func (g *Graph) AddDestination(d Destination) {
	if d == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.destinations = append(g.destinations, d)
}

// ScheduleNarration starts buf at startSample with unity gain. It may be
// called once per run.
func (g *Graph) ScheduleNarration(buf audio.Buffer, startSample int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.narrationScheduled {
		return errors.New("mixer: narration already scheduled")
	}
	if startSample < 0 {
		return fmt.Errorf("mixer: negative narration start %d", startSample)
	}
	if buf.SampleRate != g.rate {
		buf = audio.Resample(buf, g.rate)
	}
	g.narration = buf
	g.narrationStart = startSample
	g.narrationScheduled = true
	return nil
}

// ConnectBackground routes src through the background stage once per id.
// It reports false when id is already connected.
func (g *Graph) ConnectBackground(id string, src Source) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.background[id]; ok || src == nil {
		return false
	}
	g.background[id] = src
	g.bgOrder = append(g.bgOrder, id)
	return true
}

// BackgroundConnections is the number of connected background sources.
func (g *Graph) BackgroundConnections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.bgOrder)
}

// TriggerSFX starts a whoosh voice at the current position.
func (g *Graph) TriggerSFX() *Voice {
	g.mu.Lock()
	defer g.mu.Unlock()
	v := newVoice(audio.Whoosh(g.rate, g.rng), g.rate, g.position)
	g.voices = append(g.voices, v)
	g.triggered++
	return v
}

// Triggered counts effects started since the graph was created.
func (g *Graph) Triggered() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.triggered
}

// ActiveVoices counts effects still playing.
func (g *Graph) ActiveVoices() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.voices)
}

// Render mixes n samples, advances the clock and writes the block to every
// destination. The returned slice is only valid until the next call.
func (g *Graph) Render(n int) ([]float32, error) {
	if n <= 0 {
		return nil, nil
	}
	g.mu.Lock()
	block := g.renderLocked(n)
	destinations := append([]Destination(nil), g.destinations...)
	g.mu.Unlock()

	for _, d := range destinations {
		if err := d.WriteAudio(block); err != nil {
			return block, err
		}
	}
	return block, nil
}

// RenderUntil renders up to the absolute sample index target.
func (g *Graph) RenderUntil(target int64) ([]float32, error) {
	return g.Render(int(target - g.Position()))
}

func (g *Graph) renderLocked(n int) []float32 {
	if cap(g.mix) < n {
		g.mix = make([]float32, n)
		g.scratch = make([]float32, n)
	}
	mix := g.mix[:n]
	clear(mix)

	if g.narrationScheduled {
		offset := g.position - g.narrationStart
		samples := g.narration.Samples
		for i := range mix {
			idx := offset + int64(i)
			if idx >= 0 && idx < int64(len(samples)) {
				mix[i] += samples[idx] * NarrationGain
			}
		}
	}

	scratch := g.scratch[:n]
	for _, id := range g.bgOrder {
		clear(scratch)
		got := g.background[id].ReadAudio(scratch)
		for i := 0; i < got && i < n; i++ {
			mix[i] += scratch[i] * BackgroundGain
		}
	}

	live := g.voices[:0]
	for _, v := range g.voices {
		v.mixInto(mix, g.position)
		if v.done() {
			v.Release()
			continue
		}
		live = append(live, v)
	}
	clear(g.voices[len(live):])
	g.voices = live

	for i, s := range mix {
		mix[i] = max(-1, min(1, s))
	}
	g.position += int64(n)
	return mix
}

// Close releases every active voice and disconnects background sources.
func (g *Graph) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, v := range g.voices {
		v.Release()
	}
	g.voices = nil
	g.background = make(map[string]Source)
	g.bgOrder = nil
}
