package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeWords produces n distinct words so overlap regions can be compared.
func makeWords(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return words
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		overlap   int
		wantErr   bool
	}{
		{name: "defaults are valid", chunkSize: DefaultChunkSize, overlap: DefaultOverlap},
		{name: "zero overlap is valid", chunkSize: 10, overlap: 0},
		{name: "zero chunk size rejected", chunkSize: 0, overlap: 0, wantErr: true},
		{name: "negative chunk size rejected", chunkSize: -5, overlap: 0, wantErr: true},
		{name: "negative overlap rejected", chunkSize: 10, overlap: -1, wantErr: true},
		{name: "overlap equal to chunk size rejected", chunkSize: 10, overlap: 10, wantErr: true},
		{name: "overlap larger than chunk size rejected", chunkSize: 10, overlap: 20, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.chunkSize, tt.overlap)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.chunkSize, c.ChunkSize())
			assert.Equal(t, tt.overlap, c.Overlap())
		})
	}
}

func TestSplitEmpty(t *testing.T) {
	c := NewDefault()

	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \n\t  "))
}

func TestSplitDefaults(t *testing.T) {
	c := NewDefault()

	t.Run("1600 words yield two full chunks and a tail", func(t *testing.T) {
		words := makeWords(1600)
		chunks := c.Split(strings.Join(words, " "))

		require.Len(t, chunks, 3)
		first := strings.Fields(chunks[0])
		second := strings.Fields(chunks[1])
		third := strings.Fields(chunks[2])
		assert.Len(t, first, 800)
		assert.Len(t, second, 800)
		assert.Len(t, third, 200)

		// Consecutive chunks share the configured overlap.
		assert.Equal(t, first[700:], second[:100])
		assert.Equal(t, second[700:], third[:100])
	})

	t.Run("801 words yield two chunks", func(t *testing.T) {
		words := makeWords(801)
		chunks := c.Split(strings.Join(words, " "))

		require.Len(t, chunks, 2)
		assert.Len(t, strings.Fields(chunks[0]), 800)
		// Tail chunk starts at word 700 and runs to the end.
		assert.Equal(t, words[700:], strings.Fields(chunks[1]))
	})

	t.Run("short text yields one chunk", func(t *testing.T) {
		chunks := c.Split("one two three")
		require.Len(t, chunks, 1)
		assert.Equal(t, "one two three", chunks[0])
	})
}

func TestSplitReconstructsWordSequence(t *testing.T) {
	c, err := New(10, 3)
	require.NoError(t, err)

	words := makeWords(47)
	chunks := c.Split(strings.Join(words, " "))
	require.NotEmpty(t, chunks)

	// Dropping the overlap prefix of every chunk after the first must
	// reconstruct the original word sequence.
	var rebuilt []string
	for i, chunk := range chunks {
		cw := strings.Fields(chunk)
		if i == 0 {
			rebuilt = append(rebuilt, cw...)
			continue
		}
		require.GreaterOrEqual(t, len(cw), 1)
		skip := c.Overlap()
		if skip > len(cw) {
			skip = len(cw)
		}
		rebuilt = append(rebuilt, cw[skip:]...)
	}
	assert.Equal(t, words, rebuilt)
}

func TestSplitAdjacentOverlap(t *testing.T) {
	c, err := New(10, 4)
	require.NoError(t, err)

	words := makeWords(40)
	chunks := c.Split(strings.Join(words, " "))
	require.Greater(t, len(chunks), 1)

	for i := 0; i < len(chunks)-1; i++ {
		cur := strings.Fields(chunks[i])
		next := strings.Fields(chunks[i+1])
		if len(cur) < c.ChunkSize() {
			// Tail chunk, no successor with full overlap.
			continue
		}
		n := c.Overlap()
		if n > len(next) {
			n = len(next)
		}
		assert.Equal(t, cur[len(cur)-c.Overlap():len(cur)-c.Overlap()+n], next[:n],
			"chunks %d and %d must share the overlap window", i, i+1)
	}
}

func TestSplitCollapsesWhitespaceRuns(t *testing.T) {
	c := NewDefault()

	chunks := c.Split("alpha \t beta\n\n gamma")
	require.Len(t, chunks, 1)
	assert.Equal(t, "alpha beta gamma", chunks[0])
}

func TestSplitDeterministic(t *testing.T) {
	c, err := New(25, 5)
	require.NoError(t, err)

	text := strings.Join(makeWords(203), " ")
	assert.Equal(t, c.Split(text), c.Split(text))
}
