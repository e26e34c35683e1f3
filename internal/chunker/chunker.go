// Package chunker splits extracted document text into overlapping
// word-based chunks sized for embedding and retrieval.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// Default chunking parameters. Chunk size is measured in words as a rough
// approximation of model tokens (roughly 600-750 tokens for English text);
// it is a configurable approximation, not a guaranteed token budget.
const (
	DefaultChunkSize = 800
	DefaultOverlap   = 100
)

// ErrInvalidConfig indicates invalid chunking parameters.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// Chunker produces overlapping word-based chunks from page text.
//
// Consecutive chunks share Overlap words to preserve semantic continuity
// across chunk boundaries for retrieval. Splitting is a pure function of the
// input text: no state is kept between calls.
type Chunker struct {
	chunkSize int
	overlap   int
}

// New creates a Chunker with the given chunk size and overlap, both in words.
//
// Returns ErrInvalidConfig if chunkSize is not positive, overlap is negative,
// or overlap >= chunkSize. The last case would make the window advance by
// zero or a negative step and never terminate, so it is rejected outright.
func New(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap cannot be negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, overlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// NewDefault creates a Chunker with DefaultChunkSize and DefaultOverlap.
func NewDefault() *Chunker {
	c, err := New(DefaultChunkSize, DefaultOverlap)
	if err != nil {
		// Unreachable with the package defaults.
		panic(err)
	}
	return c
}

// ChunkSize returns the configured chunk size in words.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap in words.
func (c *Chunker) Overlap() int { return c.overlap }

// Split splits text on runs of whitespace and groups the words into chunks
// of at most ChunkSize words, advancing ChunkSize-Overlap words per step.
//
// Empty input, or input consisting only of whitespace, yields no chunks.
// A chunk that is empty after joining and trimming is dropped; with
// non-empty words that can only happen at the tail.
func (c *Chunker) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := c.chunkSize - c.overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[start:end], " ")
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}
