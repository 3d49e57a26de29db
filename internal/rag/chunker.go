package rag

import (
	"regexp"
	"strings"
)

const (
	// DefaultChunkSize is the target chunk length in words.
	DefaultChunkSize = 300
	// DefaultChunkOverlap is the number of words carried between chunks.
	DefaultChunkOverlap = 50

	// Lines longer than this are split at sentence punctuation by the
	// fallback splitter.
	longLineThreshold = 500
)

// Matches a sentence up to its terminating punctuation, or a trailing
// fragment without one.
var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+|[^.!?]+$`)

// Chunk splits cleaned text into overlapping chunks of roughly size words.
// Sentences are accumulated word by word; every time the buffer reaches
// size words a chunk is emitted and the last overlap words seed the next
// one. The final partial buffer is flushed as a short tail chunk and
// duplicate chunk strings are dropped, keeping first-occurrence order.
//
// Whitespace-only input yields nil. overlap >= size is clamped to size/2
// so the buffer always shrinks.
func Chunk(text string, size, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}

	sentences := splitSentences(text)
	if len(sentences) <= 1 {
		sentences = splitLines(text)
	}

	var (
		chunks []string
		buffer []string
	)
	for _, sentence := range sentences {
		words := strings.Fields(sentence)
		if len(words) == 0 {
			continue
		}
		buffer = append(buffer, words...)

		for len(buffer) >= size {
			chunks = append(chunks, strings.Join(buffer[:size], " "))
			rest := buffer[size-overlap:]
			buffer = append([]string(nil), rest...)
		}
	}
	if len(buffer) > 0 {
		chunks = append(chunks, strings.Join(buffer, " "))
	}

	return dedupe(chunks)
}

func splitSentences(text string) []string {
	matches := sentenceRe.FindAllString(text, -1)
	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		if s := strings.TrimSpace(m); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// splitLines is the fallback strategy: one unit per non-empty line, with
// very long lines further split at sentence-ending punctuation followed by
// whitespace.
func splitLines(text string) []string {
	var parts []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > longLineThreshold {
			parts = append(parts, splitAtPunctuation(line)...)
		} else {
			parts = append(parts, line)
		}
	}
	return parts
}

func splitAtPunctuation(line string) []string {
	var parts []string
	start := 0
	for i := 0; i+1 < len(line); i++ {
		if isSentenceEnd(line[i]) && (line[i+1] == ' ' || line[i+1] == '\t') {
			if p := strings.TrimSpace(line[start : i+1]); p != "" {
				parts = append(parts, p)
			}
			start = i + 1
		}
	}
	if p := strings.TrimSpace(line[start:]); p != "" {
		parts = append(parts, p)
	}
	return parts
}

func isSentenceEnd(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func dedupe(chunks []string) []string {
	seen := make(map[string]struct{}, len(chunks))
	unique := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		unique = append(unique, c)
	}
	return unique
}
