package rag

import (
	"fmt"
	"iter"
)

// Chunk is a bounded segment of a source document. Embedding is populated
// once the chunk has been embedded.
type Chunk struct {
	Text      string
	SourceID  string
	Position  int
	Embedding []float32
}

// Chunker splits text with a sliding window measured in runes.
type Chunker struct {
	maxSize int
	overlap int
}

// NewChunker requires 0 <= overlap < maxSize.
func NewChunker(maxSize, overlap int) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: chunk max size must be positive, got %d", ErrInvalidInput, maxSize)
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", ErrInvalidInput, maxSize, overlap)
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// Split returns a lazy sequence of chunks for text. Each window holds at most
// maxSize runes and starts maxSize-overlap runes after the previous one; the
// last window may be shorter. Positions start at 0. The sequence can be
// ranged over any number of times and yields nothing for empty text.
func (c *Chunker) Split(sourceID, text string) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		if text == "" {
			return
		}
		runes := []rune(text)
		n := len(runes)
		step := c.maxSize - c.overlap

		for start, pos := 0, 0; ; start, pos = start+step, pos+1 {
			end := min(start+c.maxSize, n)
			if !yield(Chunk{Text: string(runes[start:end]), SourceID: sourceID, Position: pos}) {
				return
			}
			if end == n {
				return
			}
		}
	}
}
