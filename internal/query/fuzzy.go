package query

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// fuzzyThreshold is the minimum similarity, 0..100, for a correction.
const fuzzyThreshold = 80

var knownKeywords = func() map[string]bool {
	m := make(map[string]bool, len(fuzzyKeywords))
	for _, k := range fuzzyKeywords {
		m[k] = true
	}
	return m
}()

// similarity returns 100 * (1 - distance / longer length).
func similarity(a, b string) float64 {
	longer := len([]rune(a))
	if n := len([]rune(b)); n > longer {
		longer = n
	}
	if longer == 0 {
		return 100
	}
	return 100 * (1 - float64(levenshtein.ComputeDistance(a, b))/float64(longer))
}

// correctWord returns the best keyword for word, or word itself when none
// is close enough. Words shorter than 3 runes are never corrected.
func correctWord(word string) string {
	lower := strings.ToLower(word)
	if len([]rune(lower)) < 3 || knownKeywords[lower] {
		return word
	}

	best, bestScore := "", 0.0
	for _, k := range fuzzyKeywords {
		if score := similarity(lower, k); score > bestScore {
			best, bestScore = k, score
		}
	}
	if bestScore >= fuzzyThreshold {
		return best
	}
	return word
}

// fuzzyCorrect rewrites each whitespace-separated word and reports what changed.
func fuzzyCorrect(s string) (string, []Correction) {
	words := strings.Fields(s)
	var corrections []Correction
	for i, w := range words {
		if c := correctWord(w); c != w {
			corrections = append(corrections, Correction{From: w, To: c})
			words[i] = c
		}
	}
	return strings.Join(words, " "), corrections
}
