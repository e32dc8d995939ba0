package textutil

import (
	"math"
	"reflect"
	"testing"
)

func TestCosineSimilarityNil(t *testing.T) {
	tests := []struct {
		name string
		a    *Fingerprint
		b    *Fingerprint
	}{
		{"both nil", nil, nil},
		{"a nil", nil, NewFingerprint("hello world")},
		{"b nil", NewFingerprint("hello world"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineSimilarity(tt.a, tt.b); got != 0 {
				t.Errorf("CosineSimilarity() = %v, want 0", got)
			}
		})
	}
}

func TestCosineSimilarityBounds(t *testing.T) {
	same := CosineSimilarity(NewFingerprint("misty pine forest at dawn"), NewFingerprint("Misty pine forest at DAWN"))
	if math.Abs(same-1) > 1e-9 {
		t.Fatalf("identical text similarity = %v", same)
	}
	disjoint := CosineSimilarity(NewFingerprint("misty pine forest"), NewFingerprint("neon city traffic"))
	if disjoint != 0 {
		t.Fatalf("disjoint similarity = %v", disjoint)
	}
}

func TestTokenizeDropsShortTokens(t *testing.T) {
	got := Tokenize("An owl, at 3am, in a barn!")
	want := []string{"owl", "3am", "barn"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
	if NewFingerprint("a b c") != nil {
		t.Fatal("expected nil fingerprint without tokens")
	}
}

func TestDistinctDropsNearDuplicates(t *testing.T) {
	in := []string{
		"Close-up of a hummingbird drinking nectar",
		"  ",
		"close-up of a hummingbird drinking nectar",
		"Hummingbird drinking nectar close-up of a",
		"Wide shot of a rainforest canopy at sunrise",
		"?!",
		"?!",
	}
	got := Distinct(in, 0.9)
	want := []string{
		"Close-up of a hummingbird drinking nectar",
		"Wide shot of a rainforest canopy at sunrise",
		"?!",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Distinct = %q, want %q", got, want)
	}
}
