// Package splitter chunks document text before embedding.
package splitter

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is large enough that a typical discharge summary
// stays in one chunk; only very long exports get split.
const DefaultChunkSize = 100000

// WordSplitter splits text into chunks of at most ChunkSize runes,
// breaking at whitespace when any exists inside the window.
type WordSplitter struct {
	ChunkSize int
}

// NewWordSplitter creates a splitter; size <= 0 uses DefaultChunkSize.
func NewWordSplitter(size int) *WordSplitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &WordSplitter{ChunkSize: size}
}

// SplitText breaks text into chunks. Empty input yields no chunks.
func (s *WordSplitter) SplitText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= s.ChunkSize {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= s.ChunkSize {
			chunks = append(chunks, strings.TrimSpace(string(runes)))
			break
		}

		cut := s.ChunkSize
		// Back up to the nearest whitespace so words stay whole.
		for i := cut; i > 0; i-- {
			if isSpace(runes[i-1]) {
				cut = i
				break
			}
		}

		chunk := strings.TrimSpace(string(runes[:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[cut:]
	}
	return chunks
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// RuneLen reports the rune count of a string, the unit ChunkSize is
// measured in.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
