// Package chunker splits extracted text into overlapping chunks for embedding.
package chunker

import (
	"fmt"
	"strings"
)

const (
	// DefaultSize is the default chunk size in runes.
	DefaultSize = 1000
	// DefaultOverlap is the default overlap between consecutive chunks in runes.
	DefaultOverlap = 200
)

// separators in preference order. A split point is searched from the end of
// the window, highest-priority separator first.
var separators = []string{"\n\n", "\n", ". ", " "}

// Splitter cuts text into chunks of at most Size runes with Overlap runes
// shared between consecutive chunks. Splitting is deterministic: the same
// input always yields the same chunks.
type Splitter struct {
	size    int
	overlap int
}

// New creates a Splitter. Overlap must be smaller than half the size so a
// split always makes forward progress.
func New(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size/2 {
		return nil, fmt.Errorf("chunk overlap must be in [0, size/2), got %d", overlap)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Split cuts text into chunks. Chunk boundaries prefer, in order, paragraph
// breaks, line breaks, sentence ends, and word boundaries; only when none
// falls in the second half of the window is the text cut mid-word.
// Whitespace-only chunks are dropped.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	n := len(runes)

	var chunks []string
	start := 0
	for start < n {
		if n-start <= s.size {
			appendChunk(&chunks, runes[start:n])
			break
		}

		window := runes[start : start+s.size]
		cut, resume := splitPoint(window)

		appendChunk(&chunks, window[:cut])

		next := start + resume - s.overlap
		if next <= start {
			next = start + resume
		}
		start = next
	}

	return chunks
}

// splitPoint returns the end of the chunk within window and the offset at
// which the next chunk's content resumes (before overlap is applied).
func splitPoint(window []rune) (cut, resume int) {
	minCut := len(window) / 2

	for _, sep := range separators {
		i := lastSeparator(window, []rune(sep))
		if i < minCut {
			continue
		}
		switch sep {
		case ". ":
			// keep the period with the sentence
			return i + 1, i + 2
		default:
			return i, i + len([]rune(sep))
		}
	}

	// hard cut mid-word
	return len(window), len(window)
}

// lastSeparator returns the start index of the last occurrence of sep in
// window, or -1.
func lastSeparator(window, sep []rune) int {
	for i := len(window) - len(sep); i > 0; i-- {
		match := true
		for j := range sep {
			if window[i+j] != sep[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func appendChunk(chunks *[]string, runes []rune) {
	chunk := strings.TrimSpace(string(runes))
	if chunk != "" {
		*chunks = append(*chunks, chunk)
	}
}
