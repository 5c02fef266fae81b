// Package chunker splits document text into bounded, overlapping spans used
// as retrieval units.
package chunker

import "strings"

// Span is a half-open byte range [Start, End) into the source text.
type Span struct {
	Start int
	End   int
}

// Chunker splits text into spans of at most maxSize bytes with adjacent
// spans overlapping by overlap bytes. Splitting prefers paragraph breaks,
// then sentence breaks, then word breaks, falling back to a hard cut when
// no boundary exists inside the window.
type Chunker struct {
	maxSize int
	overlap int
}

// New creates a Chunker. maxSize must be positive and overlap must be
// smaller than maxSize; out-of-range values fall back to 1000/200.
func New(maxSize, overlap int) *Chunker {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if overlap < 0 || overlap >= maxSize {
		overlap = 200
		if overlap >= maxSize {
			overlap = maxSize / 5
		}
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}
}

// Split returns ordered spans covering text completely. Every span is an
// exact substring reference; no content is trimmed or dropped, so the
// original text can be reconstructed from the spans minus their overlaps.
// Empty text yields no spans.
func (c *Chunker) Split(text string) []Span {
	if len(text) == 0 {
		return nil
	}

	var spans []Span
	start := 0
	for start < len(text) {
		end := start + c.maxSize
		if end >= len(text) {
			spans = append(spans, Span{Start: start, End: len(text)})
			break
		}
		if cut := findBoundary(text, start, end); cut > start {
			end = cut
		}
		spans = append(spans, Span{Start: start, End: end})

		next := end - c.overlap
		if next <= start {
			// Overlap would stall the scan; always advance.
			next = start + 1
		}
		start = next
	}
	return spans
}

// findBoundary returns the best split position in (start, limit], preferring
// paragraph breaks over sentence breaks over word breaks. Returns start when
// no boundary exists, which forces a hard cut at the length limit.
func findBoundary(text string, start, limit int) int {
	window := text[start:limit]

	if i := strings.LastIndex(window, "\n\n"); i > 0 {
		return start + i + 2
	}
	if i := strings.LastIndex(window, ". "); i > 0 {
		return start + i + 2
	}
	if i := strings.LastIndex(window, " "); i > 0 {
		return start + i + 1
	}
	return start
}
