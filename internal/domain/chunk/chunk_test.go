package chunk

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/talentops/cvindex/internal/domain"
)

func TestSplit_WindowAndOverlap(t *testing.T) {
	chunks, err := Split("a b c d e f g h", 3, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"a b c", "c d e", "e f g", "g h"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %v", len(want), len(chunks), chunks)
	}
	for i, c := range chunks {
		if c != want[i] {
			t.Errorf("chunk %d: got %q, want %q", i, c, want[i])
		}
	}

	// Each chunk's first token equals the previous chunk's last token.
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1])
		cur := strings.Fields(chunks[i])
		if prev[len(prev)-1] != cur[0] {
			t.Errorf("chunks %d/%d do not overlap: %q vs %q", i-1, i, chunks[i-1], chunks[i])
		}
	}
}

func TestSplit_CoversAllTokens(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog again and again"
	tokens := strings.Fields(text)

	for _, overlap := range []int{0, 1, 3} {
		chunks, err := Split(text, 4, overlap)
		if err != nil {
			t.Fatalf("overlap=%d: unexpected error: %v", overlap, err)
		}

		step := 4 - overlap
		var rebuilt []string
		for i, c := range chunks {
			ct := strings.Fields(c)
			if i == len(chunks)-1 {
				rebuilt = append(rebuilt, ct...)
			} else {
				rebuilt = append(rebuilt, ct[:step]...)
			}
		}
		if strings.Join(rebuilt, " ") != strings.Join(tokens, " ") {
			t.Errorf("overlap=%d: overlap-stripped concatenation does not rebuild input:\ngot  %v\nwant %v",
				overlap, rebuilt, tokens)
		}
	}
}

func TestSplit_TerminatesAtMaxOverlap(t *testing.T) {
	// overlap = maxTokens-1 is the pathological case: step is 1.
	tokens := make([]string, 200)
	for i := range tokens {
		tokens[i] = "t"
	}
	chunks, err := Split(strings.Join(tokens, " "), 5, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) == 0 || len(chunks) > 200 {
		t.Fatalf("expected at most one chunk per token, got %d", len(chunks))
	}
}

func TestSplit_OverlapClamped(t *testing.T) {
	chunks, err := Split("a b c d", 2, 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Clamped to maxTokens-1 = 1.
	want := []string{"a b", "b c", "c d"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %v", len(want), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d: got %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestSplit_SingleOversizedToken(t *testing.T) {
	long := strings.Repeat("x", 500)
	chunks, err := Split(long, 3, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != long {
		t.Fatalf("expected one chunk containing the whole token, got %v", chunks)
	}
}

func TestSplit_BlankInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t\r\n"} {
		chunks, err := Split(text, 10, 2)
		if err != nil {
			t.Fatalf("input %q: unexpected error: %v", text, err)
		}
		if len(chunks) != 0 {
			t.Errorf("input %q: expected no chunks, got %v", text, chunks)
		}
	}
}

func TestSplit_InvalidMaxTokens(t *testing.T) {
	_, err := Split("a b", 0, 0)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize("  a\tb\r\nc\n\n\nd  ")
	if got != "a b\nc\nd" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}

func TestSplitBytes_BudgetHolds(t *testing.T) {
	text := strings.Repeat("Consultants deliver projects. ", 100)
	chunks, err := SplitBytes(text, 256)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 256 {
			t.Errorf("chunk %d exceeds budget: %d bytes", i, len(c))
		}
		if strings.TrimSpace(c) == "" {
			t.Errorf("chunk %d is blank", i)
		}
	}
}

func TestSplitBytes_SnapsToSentence(t *testing.T) {
	text := strings.Repeat("a", 60) + ". " + strings.Repeat("b", 60)
	chunks, err := SplitBytes(text, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %v", chunks)
	}
	if !strings.HasSuffix(chunks[0], ".") {
		t.Errorf("expected first chunk to end at sentence boundary, got %q", chunks[0])
	}
	if !strings.HasPrefix(chunks[1], "b") {
		t.Errorf("expected second chunk to start after boundary, got %q", chunks[1])
	}
}

func TestSplitBytes_NoSnapBelowMinimum(t *testing.T) {
	// Boundary at char 10 — snapping there would shrink below the minimum,
	// so the window must stay at its full size instead.
	text := strings.Repeat("a", 9) + ". " + strings.Repeat("b", 200)
	chunks, err := SplitBytes(text, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks[0]) < minSnapChars {
		t.Errorf("snap shrank chunk below minimum: %d chars", len(chunks[0]))
	}
}

func TestSplitBytes_NeverSplitsRunes(t *testing.T) {
	text := strings.Repeat("æøå", 100) // 2-byte runes, no break candidates
	chunks, err := SplitBytes(text, 33) // odd budget cannot align with rune width
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	total := 0
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk %d splits a multi-byte character: %q", i, c)
		}
		if len(c) > 33 {
			t.Errorf("chunk %d exceeds budget: %d bytes", i, len(c))
		}
		total += len(c)
	}
	if total != len(text) {
		t.Errorf("chunks drop content: %d of %d bytes", total, len(text))
	}
}

func TestSplitBytes_ForwardProgressOnOversizedRune(t *testing.T) {
	// 4-byte rune with a 1-byte budget: must still advance.
	chunks, err := SplitBytes("𝄞𝄞𝄞", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 single-rune chunks, got %v", chunks)
	}
}

func TestSplitBytes_BlankAndInvalid(t *testing.T) {
	chunks, err := SplitBytes("   ", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for blank input, got %v", chunks)
	}

	if _, err := SplitBytes("text", 0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for zero budget, got %v", err)
	}
}
