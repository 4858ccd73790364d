package resolver

import (
	"math"
	"testing"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"Identical", "google", "google", 1.0},
		{"BothEmpty", "", "", 1.0},
		{"LeftEmpty", "", "google", 0.0},
		{"RightEmpty", "google", "", 0.0},
		{"Disjoint", "abc", "xyz", 0.0},
		{"Shifted", "abcd", "bcde", 0.75},
		{"KittenSitting", "kitten", "sitting", 8.0 / 13.0},
		{"Plural", "snowflake", "snowflakes", 18.0 / 19.0},
		{"SingleChar", "a", "a", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Ratio(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Ratio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRatioSymmetricOnEqualLengths(t *testing.T) {
	// Matched character count is symmetric when both strings have the
	// same length, so the ratio is too.
	if a, b := Ratio("abcd", "bcde"), Ratio("bcde", "abcd"); math.Abs(a-b) > 1e-9 {
		t.Errorf("ratio not symmetric: %v vs %v", a, b)
	}
}

func TestRatioUnicode(t *testing.T) {
	// Multi-byte runes count as single elements.
	got := Ratio("héllo", "héllo")
	if got != 1.0 {
		t.Errorf("Ratio over runes = %v, want 1.0", got)
	}
}
