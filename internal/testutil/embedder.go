package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

// StaticEmbedder is a deterministic in-process embedding provider for
// tests. Vectors are derived from word hashes, so identical texts embed
// identically and texts sharing words land near each other under cosine
// similarity. No network, no API key.
//
// Safe for concurrent use.
type StaticEmbedder struct {
	// Dim is the vector dimension; 0 means 768.
	Dim int

	// Err, when set, is returned by every Embed call.
	Err error

	mu    sync.Mutex
	calls []string
}

// Embed returns a normalized word-hash vector for text, or Err when set.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, text)
	e.mu.Unlock()

	if e.Err != nil {
		return nil, e.Err
	}

	dim := e.Dim
	if dim <= 0 {
		dim = 768
	}

	vec := make([]float32, dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%uint32(dim)]++ //nolint:gosec // dim is a small positive int
	}

	var mag float64
	for _, v := range vec {
		mag += float64(v) * float64(v)
	}
	if mag > 0 {
		scale := float32(1 / math.Sqrt(mag))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// Calls returns the texts passed to Embed, in call order.
func (e *StaticEmbedder) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	copy(out, e.calls)
	return out
}
