package textutil

import "strings"

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// Distinct drops blank entries and entries whose similarity to an earlier
// kept entry reaches threshold. Order is preserved. Entries without tokens
// are compared by exact (case-insensitive) text only.
func Distinct(values []string, threshold float64) []string {
	type kept struct {
		text string
		fp   *Fingerprint
	}
	out := make([]string, 0, len(values))
	seen := make([]kept, 0, len(values))
next:
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		fp := NewFingerprint(value)
		for _, prior := range seen {
			if strings.EqualFold(prior.text, value) {
				continue next
			}
			if fp != nil && CosineSimilarity(prior.fp, fp) >= threshold {
				continue next
			}
		}
		seen = append(seen, kept{text: value, fp: fp})
		out = append(out, value)
	}
	return out
}
