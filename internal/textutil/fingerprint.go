package textutil

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Fingerprint represents a term-frequency vector for text similarity comparison.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint creates a fingerprint from the provided text.
// Returns nil if the text produces no valid tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return &Fingerprint{
		tokens: counts,
		norm:   math.Sqrt(norm),
	}
}

// Tokenize splits text into lowercase tokens. Words shorter than three runes
// are dropped; runs of Han characters, which carry no word boundaries, become
// overlapping two-rune tokens instead.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if IsHanRun(word) {
			terms = append(terms, RuneBigrams(word)...)
			continue
		}
		if utf8.RuneCountInString(word) < 3 {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

// IsHanRun reports whether s is non-empty and made only of Han ideographs.
func IsHanRun(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.Is(unicode.Han, r) {
			return false
		}
	}
	return true
}

// RuneBigrams returns every overlapping two-rune substring of s. A single rune
// yields itself.
func RuneBigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 2 {
		if len(runes) == 1 {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		out = append(out, string(runes[i:i+2]))
	}
	return out
}
