// Package chunker splits raw document text into bounded, overlapping
// segments at sentence boundaries. Chunking is a pure function: the same
// input always produces the same chunk sequence, which makes ingestion
// restartable and the chunker trivially testable in isolation.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Default chunking parameters. Tuned for embedding models with a few
// thousand token input limit; see embedding.MaxInputChars.
const (
	// DefaultMaxSize is the default maximum chunk length in characters.
	DefaultMaxSize = 1000

	// DefaultOverlap is the default number of characters shared between
	// consecutive chunks, so sentences cut near a boundary stay retrievable.
	DefaultOverlap = 200
)

// Segment is one chunk-shaped record produced by Chunk. Index is the
// 0-based position within the source text; Text is trimmed; WordCount and
// CharacterCount are derived at creation time.
type Segment struct {
	Index          int
	Text           string
	WordCount      int
	CharacterCount int
}

// Chunk splits text into segments of at most maxSize characters.
//
// Each window except the final one tries to end at the last sentence
// terminator ('.', '?', '!') found after the window's midpoint; if no
// terminator appears past that mark, the window is cut at maxSize, snapped
// back so a multi-byte rune is never split. The next window starts overlap
// characters before the previous end, clamped so the scan always advances.
//
// Degenerate inputs: empty or whitespace-only text yields no segments;
// text shorter than maxSize yields a single segment. Non-positive maxSize
// and negative overlap fall back to the package defaults.
func Chunk(text string, maxSize, overlap int) []Segment {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= maxSize {
		overlap = maxSize / 2
	}

	if strings.TrimSpace(text) == "" {
		return nil
	}

	var segments []Segment
	start := 0
	for start < len(text) {
		end := start + maxSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = runeBoundary(text, end)
			// Prefer a sentence boundary in the second half of the window.
			if cut := lastSentenceEnd(text[start:end]); cut > maxSize/2 {
				end = start + cut
			}
		}
		if end <= start {
			// maxSize is smaller than the rune at start; take the whole rune.
			_, size := utf8.DecodeRuneInString(text[start:])
			end = start + size
		}

		if seg := strings.TrimSpace(text[start:end]); seg != "" {
			segments = append(segments, Segment{
				Index:          len(segments),
				Text:           seg,
				WordCount:      len(strings.Fields(seg)),
				CharacterCount: len(seg),
			})
		}

		if end == len(text) {
			break
		}
		next := runeBoundary(text, end-overlap)
		if next <= start {
			// Overlap would rewind past the previous start; advance anyway.
			next = end
		}
		start = next
	}

	return segments
}

// runeBoundary snaps the byte offset i back to the start of the rune it
// falls inside, so window cuts never split a multi-byte character.
func runeBoundary(text string, i int) int {
	if i >= len(text) {
		return len(text)
	}
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

// lastSentenceEnd returns the position just past the last sentence
// terminator in window, or -1 if the window contains none.
func lastSentenceEnd(window string) int {
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '.', '?', '!':
			return i + 1
		}
	}
	return -1
}
