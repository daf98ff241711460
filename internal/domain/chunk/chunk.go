// Package chunk splits CV text into bounded-size pieces for embedding.
//
// Two splitters are provided: Split works in whitespace tokens and produces
// overlapping windows; SplitBytes works in raw characters under a UTF-8
// byte budget and is used ahead of embedding-API calls with hard payload
// limits. Both are pure functions.
package chunk

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/talentops/cvindex/internal/domain"
)

// minSnapChars is the smallest window (in characters) a boundary snap is
// allowed to shrink a byte-budget chunk to.
const minSnapChars = 50

// Normalize collapses carriage returns to newlines, tabs to single spaces,
// and runs of newlines to one newline, then trims.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\t", " ")
	for strings.Contains(text, "\n\n") {
		text = strings.ReplaceAll(text, "\n\n", "\n")
	}
	return strings.TrimSpace(text)
}

// Split cuts text into overlapping windows of at most maxTokens whitespace
// tokens, joined with single spaces. Adjacent chunks share exactly
// overlapTokens tokens (the final chunk may be shorter). Tokens are never
// split, so a single token longer than maxTokens still yields a chunk
// containing it. Blank input yields nil.
func Split(text string, maxTokens, overlapTokens int) ([]string, error) {
	if maxTokens < 1 {
		return nil, fmt.Errorf("maxTokens must be >= 1, got %d: %w", maxTokens, domain.ErrInvalidArgument)
	}
	// Clamp overlap so the window always advances.
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	if overlapTokens > maxTokens-1 {
		overlapTokens = maxTokens - 1
	}

	tokens := strings.Fields(Normalize(text))
	if len(tokens) == 0 {
		return nil, nil
	}

	step := maxTokens - overlapTokens
	chunks := make([]string, 0, (len(tokens)+step-1)/step)

	for start := 0; start < len(tokens); start += step {
		end := start + maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, strings.Join(tokens[start:end], " "))
		if end == len(tokens) {
			break
		}
	}

	return chunks, nil
}

// SplitBytes cuts text into chunks whose UTF-8 encoding never exceeds
// byteBudget. Each window is snapped backward to the nearest sentence
// boundary (". "), else newline, else space, unless the snap would shrink
// the window below minSnapChars characters or back past its start.
// Multi-byte characters are never split; progress is at least one
// character per iteration even when a single rune exceeds the budget.
func SplitBytes(text string, byteBudget int) ([]string, error) {
	if byteBudget < 1 {
		return nil, fmt.Errorf("byteBudget must be >= 1, got %d: %w", byteBudget, domain.ErrInvalidArgument)
	}

	var chunks []string
	start := 0

	for start < len(text) {
		end := windowEnd(text, start, byteBudget)
		if end > start {
			end = snapToBoundary(text, start, end)
		} else {
			// A single rune wider than the budget. Take it whole rather
			// than split it; the forward-progress guarantee wins over the
			// budget for this degenerate input.
			_, size := utf8.DecodeRuneInString(text[start:])
			end = start + size
		}

		piece := strings.TrimSpace(text[start:end])
		if piece != "" {
			chunks = append(chunks, piece)
		}
		start = end
	}

	return chunks, nil
}

// windowEnd returns the byte offset of the largest character window
// starting at start whose encoding fits byteBudget.
func windowEnd(text string, start, byteBudget int) int {
	end := start
	for end < len(text) {
		_, size := utf8.DecodeRuneInString(text[end:])
		if end+size-start > byteBudget {
			break
		}
		end += size
	}
	return end
}

// snapToBoundary moves end backward to a natural break inside
// text[start:end]. Sentence ends are preferred over newlines over spaces.
// The snap is rejected when it would leave fewer than minSnapChars
// characters or an empty window.
func snapToBoundary(text string, start, end int) int {
	if end >= len(text) {
		return end // final chunk, nothing to snap for
	}
	window := text[start:end]

	for _, sep := range []string{". ", "\n", " "} {
		idx := strings.LastIndex(window, sep)
		if idx <= 0 {
			continue
		}
		cut := idx + len(sep)
		if utf8.RuneCountInString(window[:cut]) < minSnapChars {
			continue
		}
		return start + cut
	}
	return end
}
