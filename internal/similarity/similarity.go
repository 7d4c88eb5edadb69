// Package similarity scores retrieval candidates against a query.
//
// Two modes exist: vector scoring (cosine similarity between embeddings)
// and text scoring (term-frequency matching used when a chunk or the query
// has no embedding). Both are deterministic for identical inputs so the
// ranking produced by a search is reproducible across backends.
package similarity

import (
	"math"
	"strings"
)

// Default score thresholds. Vector scores below DefaultVectorThreshold and
// text scores below DefaultTextThreshold are dropped from search results.
const (
	DefaultVectorThreshold = 0.7
	DefaultTextThreshold   = 0.3
)

// textScoreDenominator normalizes raw term-occurrence counts into [0,1].
// Empirically chosen: ten term hits in a chunk saturate the score.
const textScoreDenominator = 10.0

// phraseBonus is added when the chunk contains the full query as a phrase.
const phraseBonus = 0.3

// minTermLength filters out short stopword-like query terms.
const minTermLength = 2

// Cosine returns the cosine similarity between two vectors:
// dot(a,b) / (|a|·|b|).
//
// It returns exactly 0 when either vector is empty, the lengths differ, or
// either magnitude is zero; it never panics. The result is symmetric in its
// arguments and ≈1 for any non-zero vector compared with itself.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Text scores a chunk against a query without embeddings.
//
// The query is split on whitespace and terms longer than minTermLength are
// counted case-insensitively within the chunk text; the summed occurrence
// count is normalized into [0,1]. Exact containment of the whole query as a
// phrase adds a fixed bonus, but only when at least one counted term
// matched; a query made entirely of filtered terms scores 0. The final
// score is clamped to [0,1].
func Text(query, text string) float64 {
	query = strings.TrimSpace(query)
	if query == "" || text == "" {
		return 0
	}

	lowerText := strings.ToLower(text)
	lowerQuery := strings.ToLower(query)

	var occurrences, matched int
	for _, term := range strings.Fields(lowerQuery) {
		if len(term) <= minTermLength {
			continue
		}
		if n := strings.Count(lowerText, term); n > 0 {
			occurrences += n
			matched++
		}
	}

	score := float64(occurrences) / textScoreDenominator
	if matched > 0 && strings.Contains(lowerText, lowerQuery) {
		score += phraseBonus
	}

	return Clamp(score)
}

// Clamp bounds a score to [0,1] for display. Cosine similarity is in
// [-1,1] in theory; negative matches never pass the threshold but the
// boundary is enforced here so callers can rely on it.
func Clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
