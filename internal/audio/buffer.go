package audio

import (
	"math"
	"time"
)

// PCMSampleRate is the rate of raw narration payloads.
const PCMSampleRate = 24000

// Buffer is mono float PCM in [-1, 1].
type Buffer struct {
	SampleRate int
	Samples    []float32
}

// Duration is len(Samples)/SampleRate.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// Seconds is Duration as a float.
func (b Buffer) Seconds() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// Resample converts b to rate with linear interpolation.
func Resample(b Buffer, rate int) Buffer {
	if rate <= 0 || b.SampleRate <= 0 || b.SampleRate == rate || len(b.Samples) == 0 {
		return Buffer{SampleRate: max(rate, b.SampleRate), Samples: b.Samples}
	}
	ratio := float64(b.SampleRate) / float64(rate)
	n := int(math.Round(float64(len(b.Samples)) / ratio))
	out := make([]float32, n)
	last := len(b.Samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= last {
			out[i] = b.Samples[last]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = b.Samples[idx] + (b.Samples[idx+1]-b.Samples[idx])*frac
	}
	return Buffer{SampleRate: rate, Samples: out}
}
