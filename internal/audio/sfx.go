package audio

import (
	"math"
	"math/rand/v2"
)

const (
	// WhooshSeconds is the length of the transition effect.
	WhooshSeconds = 0.4
	whooshDecay   = 6.0
)

// Whoosh synthesizes the transition effect: uniform noise under an e^(-6t)
// envelope. A nil rng uses the global source.
func Whoosh(sampleRate int, rng *rand.Rand) Buffer {
	n := int(math.Round(WhooshSeconds * float64(sampleRate)))
	samples := make([]float32, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		var noise float64
		if rng != nil {
			noise = rng.Float64()*2 - 1
		} else {
			noise = rand.Float64()*2 - 1
		}
		samples[i] = float32(noise * math.Exp(-whooshDecay*t))
	}
	return Buffer{SampleRate: sampleRate, Samples: samples}
}
