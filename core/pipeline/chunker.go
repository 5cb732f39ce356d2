package pipeline

import (
	"strings"
	"unicode/utf8"

	"github.com/siherrmann/scholar/helper"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100
)

// CountTokens counts whitespace delimited tokens.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

// DefaultChunker creates a TokenChunker with 500 token windows and 100 tokens of overlap.
func DefaultChunker() ChunkFunc {
	return TokenChunker(DefaultChunkSize, DefaultChunkOverlap)
}

// TokenChunker creates a chunker with windows of size tokens where each window
// starts overlap tokens before the end of the previous one.
// A window end is moved back to the last sentence end in its second half,
// so sentences are only split when one sentence fills half a window.
func TokenChunker(size int, overlap int) ChunkFunc {
	return func(text string) ([]TextChunk, error) {
		if size <= 0 {
			return nil, helper.Wrap(helper.ErrInvalidInput, "chunk size must be positive")
		}
		if overlap < 0 || overlap >= size {
			return nil, helper.Wrap(helper.ErrInvalidInput, "chunk overlap must be in [0, %d), got %d", size, overlap)
		}
		if !utf8.ValidString(text) || strings.ContainsRune(text, 0) {
			return nil, helper.Wrap(helper.ErrInvalidInput, "text is not valid UTF-8 text")
		}

		tokens := strings.Fields(text)
		if len(tokens) == 0 {
			return []TextChunk{}, nil
		}

		var chunks []TextChunk
		start := 0
		for {
			end := start + size
			if end >= len(tokens) {
				end = len(tokens)
			} else if boundary := sentenceEnd(tokens, start+size/2, end); boundary > start+overlap {
				end = boundary
			}

			chunks = append(chunks, TextChunk{
				Content:    strings.Join(tokens[start:end], " "),
				TokenCount: end - start,
				Start:      start,
				End:        end,
			})

			if end == len(tokens) {
				return chunks, nil
			}
			start = end - overlap
		}
	}
}

// sentenceEnd returns the exclusive end of the last token in [from, to) that
// closes a sentence, or -1.
func sentenceEnd(tokens []string, from int, to int) int {
	for i := to - 1; i >= from; i-- {
		if closesSentence(tokens[i]) {
			return i + 1
		}
	}
	return -1
}

var abbreviations = map[string]bool{
	"e.g.":    true,
	"i.e.":    true,
	"al.":     true,
	"fig.":    true,
	"vs.":     true,
	"approx.": true,
}

func closesSentence(token string) bool {
	token = strings.TrimRight(token, `"')]`)
	if token == "" || abbreviations[strings.ToLower(token)] {
		return false
	}
	switch token[len(token)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
