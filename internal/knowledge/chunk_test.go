package knowledge

import (
	"strings"
	"testing"
)

func TestSplitShortText(t *testing.T) {
	got := Split("Texto curto.", 500, 100)
	if len(got) != 1 || got[0] != "Texto curto." {
		t.Errorf("Split short text = %v, want single unchanged chunk", got)
	}
}

func TestSplitEmpty(t *testing.T) {
	if got := Split("   ", 500, 100); got != nil {
		t.Errorf("Split blank text = %v, want nil", got)
	}
}

func TestSplitRespectsChunkSize(t *testing.T) {
	sentence := "Esta é uma frase de teste com algumas palavras. "
	text := strings.Repeat(sentence, 40)

	chunks := Split(text, 200, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n > 200 {
			t.Errorf("chunk %d has %d runes, want <= 200", i, n)
		}
		if strings.TrimSpace(c) == "" {
			t.Errorf("chunk %d is blank", i)
		}
	}
}

func TestSplitCarriesOverlap(t *testing.T) {
	sentence := "Uma frase razoavelmente longa para efeitos de teste. "
	text := strings.Repeat(sentence, 20)

	chunks := Split(text, 200, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// The head of each later chunk repeats text from its predecessor.
	for i := 1; i < len(chunks); i++ {
		head := strings.Fields(chunks[i])
		if len(head) == 0 {
			t.Fatalf("chunk %d is empty", i)
		}
		if !strings.Contains(chunks[i-1], head[0]) {
			t.Errorf("chunk %d does not overlap its predecessor", i)
		}
	}
}

func TestSplitHardBreaksLongSentence(t *testing.T) {
	text := strings.Repeat("palavra", 100) // one 700-rune "sentence", no boundaries

	chunks := Split(text, 200, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected hard split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n > 200 {
			t.Errorf("chunk %d has %d runes, want <= 200", i, n)
		}
	}
}
