package timeline

import (
	"fmt"
	"math"
)

// Subtitle is a caption shown while start <= t <= end (milliseconds).
type Subtitle struct {
	Text        string `json:"text"`
	StartMillis int64  `json:"start_ms"`
	EndMillis   int64  `json:"end_ms"`
}

// CaptionAt returns the first subtitle covering elapsed seconds.
func CaptionAt(subs []Subtitle, elapsed float64) (Subtitle, bool) {
	ms := int64(math.Round(elapsed * 1000))
	for _, sub := range subs {
		if sub.StartMillis <= ms && ms <= sub.EndMillis {
			return sub, true
		}
	}
	return Subtitle{}, false
}

// Overlap describes two cues that cover the same instant.
type Overlap struct {
	First, Second int
}

func (o Overlap) String() string {
	return fmt.Sprintf("cues %d and %d overlap", o.First, o.Second)
}

// ValidateSubtitles reports inverted cues as an error and overlapping cues
// as a list. Overlaps are tolerated: the earlier cue wins at lookup.
func ValidateSubtitles(subs []Subtitle) ([]Overlap, error) {
	var overlaps []Overlap
	for i, sub := range subs {
		if sub.EndMillis < sub.StartMillis {
			return nil, fmt.Errorf("subtitle %d ends before it starts (%d < %d)", i, sub.EndMillis, sub.StartMillis)
		}
		for j := i + 1; j < len(subs); j++ {
			other := subs[j]
			if sub.StartMillis <= other.EndMillis && other.StartMillis <= sub.EndMillis {
				overlaps = append(overlaps, Overlap{First: i, Second: j})
			}
		}
	}
	return overlaps, nil
}
