// Package embedding converts text into fixed-length vectors through a
// remote embedding API.
//
// Provider failures are recoverable: callers catch ErrUnavailable
// (via errors.Is) and fall back to storing a chunk without an embedding or
// to text-mode search. A missing API key, a non-success upstream status and
// a malformed response all surface as ErrUnavailable.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// Dimension is the fixed embedding vector length. text-embedding-004
// produces 768-dimension vectors; the pgvector column in db/migrations is
// declared with the same size.
const Dimension = 768

// MaxInputChars bounds the text sent to the provider per call. Upstream
// models truncate silently beyond ~2048 tokens; cutting at 8000 characters
// keeps requests inside that budget.
const MaxInputChars = 8000

// DefaultTimeout is the upper bound for a single embedding call. On
// timeout the call fails with ErrUnavailable and the caller degrades
// gracefully rather than aborting the whole request.
const DefaultTimeout = 15 * time.Second

// ErrUnavailable indicates the embedding provider could not produce a
// vector. Check with errors.Is; treat as recoverable.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Provider produces a fixed-length vector for a piece of text.
// Implementations must truncate input to MaxInputChars before sending and
// must wrap every failure in ErrUnavailable.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Truncate bounds text to MaxInputChars, cutting on a rune boundary so the
// truncated text stays valid UTF-8. Exposed so tests and callers can predict
// exactly what a provider will send upstream.
func Truncate(text string) string {
	if len(text) <= MaxInputChars {
		return text
	}
	cut := MaxInputChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// unavailable wraps a provider failure in the ErrUnavailable sentinel.
func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}
