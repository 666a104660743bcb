// Package ingestion turns uploaded documents into indexed knowledge: extract,
// chunk, embed, upsert.
package ingestion

import "fmt"

// Chunk splits text into windows of size runes, each window starting
// size-overlap runes after the previous one. The final window may be shorter.
// overlap must be strictly smaller than size so the window always advances.
func Chunk(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", overlap, size)
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
		start = end - overlap
	}
	return chunks, nil
}
