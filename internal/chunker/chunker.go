// Package chunker splits extracted document text into fixed-size windows
// that are embedded independently.
package chunker

import "unicode/utf8"

// DefaultSize is the window length, in characters, used when none is configured.
const DefaultSize = 1000

// Chunker splits text into non-overlapping windows of Size characters.
type Chunker struct {
	Size int
}

// New returns a Chunker, falling back to DefaultSize for non-positive sizes.
func New(size int) Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	return Chunker{Size: size}
}

// Split applies the configured size to text.
func (c Chunker) Split(text string) []string {
	return Split(text, c.Size)
}

// Split cuts text into consecutive windows of size characters (runes). The
// final window may be shorter. Empty text yields no chunks. Concatenating
// the result always reproduces text exactly.
func Split(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultSize
	}

	chunks := make([]string, 0, utf8.RuneCountInString(text)/size+1)
	start, count := 0, 0
	for i := range text {
		if count == size {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}
