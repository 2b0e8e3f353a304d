package embedding

// Chunk is a substring of a larger document plus its byte offset.
type Chunk struct {
	// Text is the chunk content.
	Text string `json:"text"`

	// Offset is the byte offset of the chunk within the original text.
	Offset int `json:"offset"`
}

// breakWindow is how far back from the naive cut point we look for a
// sentence terminator, newline, or whitespace before splitting mid-word.
const breakWindow = 50

// ChunkText splits text into overlapping chunks of at most chunkSize bytes.
// Each window prefers to break at the nearest sentence terminator, then
// newline, then whitespace within the look-back window before the naive cut
// point. The next window starts overlap bytes before where the previous
// chunk actually ended, advancing at least one byte, so every input byte
// lands in at least one chunk even when a break shortens a window.
//
// Text shorter than chunkSize yields a single chunk; empty text yields nil.
func ChunkText(text string, chunkSize, overlap int) []Chunk {
	if text == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 8
	}
	if len(text) <= chunkSize {
		return []Chunk{{Text: text, Offset: 0}}
	}

	var chunks []Chunk
	start := 0
	for start < len(text) {
		end := start + chunkSize
		if end >= len(text) {
			chunks = append(chunks, Chunk{Text: text[start:], Offset: start})
			break
		}

		end = breakPoint(text, start, end)
		chunks = append(chunks, Chunk{Text: text[start:end], Offset: start})

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// breakPoint finds the best split position at or before end, never at or
// before start.
func breakPoint(text string, start, end int) int {
	lo := end - breakWindow
	if lo <= start {
		lo = start + 1
	}

	// Sentence terminators first, then newlines, then plain whitespace.
	for i := end - 1; i >= lo; i-- {
		switch text[i] {
		case '.', '!', '?':
			return i + 1
		}
	}
	for i := end - 1; i >= lo; i-- {
		if text[i] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i >= lo; i-- {
		if text[i] == ' ' || text[i] == '\t' {
			return i + 1
		}
	}
	return end
}
