package embedding

import (
	"strings"
	"testing"
)

func TestChunkText_Empty(t *testing.T) {
	if chunks := ChunkText("", 100, 10); chunks != nil {
		t.Fatalf("expected nil for empty text, got %d chunks", len(chunks))
	}
}

func TestChunkText_ShortText(t *testing.T) {
	chunks := ChunkText("hello world", 100, 10)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "hello world" || chunks[0].Offset != 0 {
		t.Errorf("unexpected chunk: %+v", chunks[0])
	}
}

func TestChunkText_PrefersSentenceBreak(t *testing.T) {
	text := "First sentence ends here. Second sentence continues for a while after that point."
	chunks := ChunkText(text, 40, 0)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, ".") {
		t.Errorf("first chunk should end at sentence terminator, got %q", chunks[0].Text)
	}
}

func TestChunkText_CoverageAndSize(t *testing.T) {
	text := strings.Repeat("some words separated by spaces to allow clean breaks ", 30)
	chunkSize, overlap := 120, 20
	chunks := ChunkText(text, chunkSize, overlap)

	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}

	// Every chunk respects chunkSize and its recorded offset.
	for i, c := range chunks {
		if len(c.Text) > chunkSize {
			t.Errorf("chunk %d exceeds size: %d > %d", i, len(c.Text), chunkSize)
		}
		if text[c.Offset:c.Offset+len(c.Text)] != c.Text {
			t.Errorf("chunk %d offset does not match content", i)
		}
	}

	// De-overlapped chunks must reconstruct the original text: each chunk
	// must reach at least as far as the next chunk's start.
	for i := 0; i < len(chunks)-1; i++ {
		if chunks[i].Offset+len(chunks[i].Text) < chunks[i+1].Offset {
			t.Errorf("gap between chunk %d and %d", i, i+1)
		}
	}
	last := chunks[len(chunks)-1]
	if last.Offset+len(last.Text) != len(text) {
		t.Error("chunks do not cover the end of the text")
	}
}

func TestChunkText_EarlyBreakLeavesNoGap(t *testing.T) {
	// Sentence terminators land well before each naive cut point, so every
	// window is shortened by the break search. With a small overlap the
	// next window must still start at or before the previous chunk's end.
	text := strings.Repeat(strings.Repeat("w", 59)+". ", 10)
	chunks := ChunkText(text, 100, 10)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	covered := make([]bool, len(text))
	for _, c := range chunks {
		for i := c.Offset; i < c.Offset+len(c.Text); i++ {
			covered[i] = true
		}
	}
	for i, ok := range covered {
		if !ok {
			t.Fatalf("byte %d of input appears in no chunk", i)
		}
	}
}

func TestChunkText_NoBreakPoint(t *testing.T) {
	// One long unbroken token: the chunker has no valid break point and
	// must still terminate with hard cuts.
	text := strings.Repeat("x", 500)
	chunks := ChunkText(text, 100, 10)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Text) > 100 {
			t.Errorf("chunk %d too large: %d", i, len(c.Text))
		}
	}
}

func TestChunkText_MinimumAdvance(t *testing.T) {
	// overlap >= chunkSize is rejected and replaced with a sane default, so
	// the walk terminates.
	chunks := ChunkText(strings.Repeat("a b ", 100), 10, 10)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
}
