package subtitles

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"reelsmith/internal/timeline"
)

// maxCueChars splits long sentences so a cue stays readable on a phone.
const maxCueChars = 90

// Estimate spreads script across narrationSeconds: one cue per sentence (long
// sentences are split on word boundaries), each cue's share of time
// proportional to its character count. Cues are ascending and never overlap.
func Estimate(script string, narrationSeconds float64) []timeline.Subtitle {
	chunks := splitCues(script)
	if len(chunks) == 0 || narrationSeconds <= 0 {
		return nil
	}
	totalChars := 0
	for _, chunk := range chunks {
		totalChars += utf8.RuneCountInString(chunk)
	}
	totalMillis := int64(math.Round(narrationSeconds * 1000))
	out := make([]timeline.Subtitle, 0, len(chunks))
	consumed := 0
	start := int64(0)
	for i, chunk := range chunks {
		consumed += utf8.RuneCountInString(chunk)
		end := totalMillis * int64(consumed) / int64(totalChars)
		if i == len(chunks)-1 {
			end = totalMillis
		}
		// inclusive bounds: leave a 1 ms gap so adjacent cues never share an instant
		cueEnd := max(start, end-1)
		out = append(out, timeline.Subtitle{Text: chunk, StartMillis: start, EndMillis: cueEnd})
		start = end
	}
	return out
}

func splitCues(script string) []string {
	var cues []string
	for _, sentence := range splitSentences(script) {
		cues = append(cues, wrapWords(sentence, maxCueChars)...)
	}
	return cues
}

func splitSentences(script string) []string {
	script = strings.Join(strings.Fields(script), " ")
	var out []string
	var b strings.Builder
	runes := []rune(script)
	for i, r := range runes {
		b.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func wrapWords(sentence string, limit int) []string {
	if utf8.RuneCountInString(sentence) <= limit {
		return []string{sentence}
	}
	var out []string
	var line []string
	length := 0
	for _, word := range strings.Fields(sentence) {
		n := utf8.RuneCountInString(word)
		if len(line) > 0 && length+1+n > limit {
			out = append(out, strings.Join(line, " "))
			line, length = nil, 0
		}
		if len(line) > 0 {
			length++
		}
		line = append(line, word)
		length += n
	}
	if len(line) > 0 {
		out = append(out, strings.Join(line, " "))
	}
	return out
}
