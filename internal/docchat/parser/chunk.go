package parser

import (
	"strings"
)

// minChunkRunes drops fragments too short to carry meaning.
const minChunkRunes = 10

// Chunker splits parsed text into overlapping chunks.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. Size and overlap are measured in runes.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Chunker{size: size, overlap: overlap}
}

// PageChunk is a chunk with its originating page.
type PageChunk struct {
	// Content is the chunk text.
	Content string
	// Page is the 1-based page the chunk came from.
	Page int
}

// ChunkResult splits each page of a parse result, keeping page attribution.
// Chunks shorter than minChunkRunes are dropped.
func (c *Chunker) ChunkResult(result *Result) []PageChunk {
	var chunks []PageChunk
	for i, pageText := range result.PageTexts {
		for _, content := range c.Split(pageText) {
			if len([]rune(strings.TrimSpace(content))) < minChunkRunes {
				continue
			}
			chunks = append(chunks, PageChunk{
				Content: content,
				Page:    i + 1,
			})
		}
	}
	return chunks
}

// Split splits text into overlapping chunks of the configured size.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) <= c.size {
		return []string{text}
	}

	var chunks []string
	for i := 0; i < len(runes); i += c.size - c.overlap {
		end := i + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks
}
