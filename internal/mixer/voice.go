package mixer

import (
	"math"
	"sync"

	"reelsmith/internal/audio"
)

const (
	sfxCutoffStart = 2000.0
	sfxCutoffEnd   = 100.0
	sfxGainStart   = 0.15
	sfxGainEnd     = 0.01
	// coefficients are refreshed at this interval while the cutoff sweeps
	controlInterval = 32
)

var butterworthQ = 1 / math.Sqrt2

// Voice is one transition effect: a whoosh through a lowpass whose cutoff and
// gain both fall exponentially over the effect's length.
type Voice struct {
	buf      audio.Buffer
	rate     int
	start    int64
	duration float64

	filter biquad

	releaseOnce sync.Once
	released    bool
	onRelease   func()
}

func newVoice(buf audio.Buffer, rate int, start int64) *Voice {
	return &Voice{
		buf:      buf,
		rate:     rate,
		start:    start,
		duration: audio.WhooshSeconds,
	}
}

// OnRelease registers fn to run when the voice finishes or is released.
func (v *Voice) OnRelease(fn func()) { v.onRelease = fn }

// Released reports whether the voice has been released.
func (v *Voice) Released() bool { return v.released }

// Release frees the voice. It is safe to call more than once.
func (v *Voice) Release() {
	v.releaseOnce.Do(func() {
		v.released = true
		v.buf.Samples = nil
		if v.onRelease != nil {
			v.onRelease()
		}
	})
}

// CutoffAt is the lowpass cutoff t seconds into the effect.
func (v *Voice) CutoffAt(t float64) float64 {
	return expRamp(sfxCutoffStart, sfxCutoffEnd, t/v.duration)
}

// GainAt is the effect gain t seconds into the effect.
func (v *Voice) GainAt(t float64) float64 {
	return expRamp(sfxGainStart, sfxGainEnd, t/v.duration)
}

func expRamp(from, to, frac float64) float64 {
	frac = max(0, min(1, frac))
	return from * math.Pow(to/from, frac)
}

func (v *Voice) done() bool {
	return v.released || len(v.buf.Samples) == 0
}

func (v *Voice) end() int64 {
	return v.start + int64(len(v.buf.Samples))
}

// mixInto adds the voice's contribution to mix, whose first sample sits at
// absolute position pos.
func (v *Voice) mixInto(mix []float32, pos int64) {
	if v.released {
		return
	}
	samples := v.buf.Samples
	for i := range mix {
		idx := pos + int64(i) - v.start
		if idx < 0 {
			continue
		}
		if idx >= int64(len(samples)) {
			break
		}
		t := float64(idx) / float64(v.rate)
		if idx%controlInterval == 0 {
			v.filter.lowpass(v.CutoffAt(t), float64(v.rate), butterworthQ)
		}
		y := v.filter.process(float64(samples[idx]))
		mix[i] += float32(y * v.GainAt(t))
	}
	if pos+int64(len(mix)) >= v.end() {
		v.buf.Samples = nil
	}
}

// biquad is an RBJ cookbook filter in transposed direct form II.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	z1, z2             float64
}

func (f *biquad) lowpass(cutoff, rate, q float64) {
	cutoff = min(cutoff, rate*0.49)
	w0 := 2 * math.Pi * cutoff / rate
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	a0 := 1 + alpha
	f.b0 = (1 - cosw) / 2 / a0
	f.b1 = (1 - cosw) / a0
	f.b2 = (1 - cosw) / 2 / a0
	f.a1 = -2 * cosw / a0
	f.a2 = (1 - alpha) / a0
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.z1
	f.z1 = f.b1*x - f.a1*y + f.z2
	f.z2 = f.b2*x - f.a2*y
	return y
}
