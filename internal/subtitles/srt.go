package subtitles

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"reelsmith/internal/fileutil"
	"reelsmith/internal/timeline"
)

// FormatSRT renders cues as SubRip text.
func FormatSRT(subs []timeline.Subtitle) string {
	var b strings.Builder
	for i, sub := range subs {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, formatTimestamp(sub.StartMillis), formatTimestamp(sub.EndMillis), strings.TrimSpace(sub.Text))
	}
	return b.String()
}

// WriteSRT writes cues to path atomically.
func WriteSRT(path string, subs []timeline.Subtitle) error {
	return fileutil.WriteFileAtomic(path, []byte(FormatSRT(subs)), 0o644)
}

// ReadSRT parses the SubRip file at path.
func ReadSRT(path string) ([]timeline.Subtitle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	return ParseSRT(string(data))
}

// ParseSRT parses SubRip text. Cue numbers are ignored; blocks without a
// timing line are skipped.
func ParseSRT(content string) ([]timeline.Subtitle, error) {
	content = strings.ReplaceAll(strings.TrimPrefix(content, "\uFEFF"), "\r\n", "\n")
	var subs []timeline.Subtitle
	for _, block := range strings.Split(strings.TrimSpace(content), "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		timing := -1
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				timing = i
				break
			}
		}
		if timing < 0 {
			continue
		}
		startText, endText, _ := strings.Cut(lines[timing], "-->")
		start, err := parseSRTTimestamp(startText)
		if err != nil {
			return nil, err
		}
		// drop position hints such as "X1:100"
		endFields := strings.Fields(endText)
		if len(endFields) == 0 {
			return nil, fmt.Errorf("srt: missing end timestamp in %q", lines[timing])
		}
		end, err := parseSRTTimestamp(endFields[0])
		if err != nil {
			return nil, err
		}
		text := strings.TrimSpace(strings.Join(lines[timing+1:], " "))
		if text == "" {
			continue
		}
		subs = append(subs, timeline.Subtitle{Text: text, StartMillis: start, EndMillis: end})
	}
	return subs, nil
}

func formatTimestamp(ms int64) string {
	ms = max(0, ms)
	h := ms / 3_600_000
	m := (ms / 60_000) % 60
	s := (ms / 1000) % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

func parseSRTTimestamp(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	// some writers use a period before the milliseconds
	value = strings.ReplaceAll(value, ".", ",")
	clock, frac, ok := strings.Cut(value, ",")
	if !ok {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(clock, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(frac)
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return int64(hours*3600+minutes*60+seconds)*1000 + int64(millis), nil
}

// Validate lists problems with cues against the narration length. An empty
// result means the track is usable.
func Validate(subs []timeline.Subtitle, narrationSeconds float64) []string {
	if len(subs) == 0 {
		return []string{"empty_subtitle_track"}
	}
	var issues []string
	overlaps, err := timeline.ValidateSubtitles(subs)
	if err != nil {
		return append(issues, fmt.Sprintf("timestamp_error: %v", err))
	}
	for _, o := range overlaps {
		issues = append(issues, "overlap: "+o.String())
	}
	if narrationSeconds > 0 {
		last := subs[len(subs)-1].EndMillis
		delta := float64(last)/1000 - narrationSeconds
		if math.Abs(delta) > 5 {
			issues = append(issues, fmt.Sprintf("duration_mismatch: delta=%.1fs", delta))
		}
	}
	return issues
}
