package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_Split_ShortTextSingleChunk(t *testing.T) {
	c := NewChunker(100, 20)

	chunks := c.Split("short text")
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0])
}

func TestChunker_Split_Overlap(t *testing.T) {
	c := NewChunker(10, 4)

	text := strings.Repeat("abcdefghij", 3)
	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 10, "chunk %d", i)
	}
	// Consecutive chunks share the configured overlap.
	assert.Equal(t, chunks[0][6:], chunks[1][:4])
}

func TestChunker_Split_MultibyteRunes(t *testing.T) {
	c := NewChunker(5, 0)

	text := strings.Repeat("日本語テキスト", 3)
	chunks := c.Split(text)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 5, "chunk %d", i)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestChunker_ChunkResult_PageAttribution(t *testing.T) {
	c := NewChunker(50, 10)

	result := &Result{
		PageTexts: []string{
			strings.Repeat("page one content. ", 5),
			strings.Repeat("page two content. ", 5),
		},
		Pages: 2,
	}

	chunks := c.ChunkResult(result)
	require.NotEmpty(t, chunks)

	pages := make(map[int]bool)
	for _, chunk := range chunks {
		pages[chunk.Page] = true
	}
	assert.True(t, pages[1])
	assert.True(t, pages[2])
}

func TestChunker_ChunkResult_DropsTinyFragments(t *testing.T) {
	c := NewChunker(1000, 0)

	result := &Result{
		PageTexts: []string{"tiny", "this fragment is long enough to keep"},
		Pages:     2,
	}

	chunks := c.ChunkResult(result)
	require.Len(t, chunks, 1)
	assert.Equal(t, 2, chunks[0].Page)
}

func TestNewChunker_SanitizesBadConfig(t *testing.T) {
	c := NewChunker(0, -5)
	assert.Equal(t, 1000, c.size)
	assert.Equal(t, 0, c.overlap)

	c = NewChunker(100, 100)
	assert.Equal(t, 0, c.overlap)
}
