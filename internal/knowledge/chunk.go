package knowledge

import (
	"regexp"
	"strings"
)

// Chunking defaults tuned for embedding input, sized in runes.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100
)

// sentenceEnd marks sentence boundaries used as preferred split points.
var sentenceEnd = regexp.MustCompile(`[.!?]+[\s\n]+`)

// Split breaks text into chunks of at most chunkSize runes, preferring
// sentence boundaries and carrying overlap runes of trailing context
// into the next chunk. Zero or negative arguments fall back to the
// package defaults.
func Split(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlap
		if overlap >= chunkSize {
			overlap = chunkSize / 4
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len([]rune(text)) <= chunkSize {
		return []string{text}
	}

	sentences := splitSentences(text)

	var chunks []string
	var current []rune
	for _, sentence := range sentences {
		runes := []rune(sentence)
		if len(current)+len(runes) > chunkSize && len(current) > 0 {
			chunks = append(chunks, strings.TrimSpace(string(current)))
			current = tail(current, overlap)
			// Drop the overlap when the next sentence alone nearly
			// fills the chunk.
			if len(current)+len(runes) > chunkSize {
				current = nil
			}
		}
		// A single sentence longer than the chunk size is split hard.
		for len(runes) > chunkSize {
			head := runes[:chunkSize-len(current)]
			chunks = append(chunks, strings.TrimSpace(string(current)+string(head)))
			runes = runes[len(head):]
			current = nil
		}
		current = append(current, runes...)
	}
	if s := strings.TrimSpace(string(current)); s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

// splitSentences splits on sentence-ending punctuation, keeping the
// punctuation and trailing whitespace with the preceding sentence.
func splitSentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		out = append(out, text[last:loc[1]])
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, text[last:])
	}
	return out
}

// tail returns the last n runes, snapped forward to a word boundary so
// overlap never starts mid-word.
func tail(runes []rune, n int) []rune {
	if n <= 0 || len(runes) <= n {
		if n <= 0 {
			return nil
		}
		return append([]rune(nil), runes...)
	}
	cut := runes[len(runes)-n:]
	for i, r := range cut {
		if r == ' ' || r == '\n' {
			return append([]rune(nil), cut[i+1:]...)
		}
	}
	return append([]rune(nil), cut...)
}
