package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/internal/docchat/parser"
)

func newTestIngestor(vs *mockVectorStore, embed *mockEmbeddingProvider) *Ingestor {
	parsers := parser.NewDispatcher()
	parsers.Register(parser.NewTextParser(), ".txt", ".md")

	return NewIngestor(vs, embed, parsers, &IngestorConfig{
		AllowedExtensions: []string{".txt", ".md"},
		MaxFileSize:       1 << 20,
		ChunkSize:         100,
		ChunkOverlap:      20,
		Collection:        "test_chunks",
		EmbeddingDim:      4,
		EmbedWorkers:      2,
	})
}

func TestIngestor_RejectsUnsupportedExtension(t *testing.T) {
	ingestor := newTestIngestor(&mockVectorStore{}, newMockEmbeddingProvider(4))

	_, err := ingestor.Ingest(context.Background(), "malware.exe", []byte("content"))
	require.Error(t, err)

	var unsupportedErr *UnsupportedFileError
	require.ErrorAs(t, err, &unsupportedErr)
	assert.Equal(t, ".exe", unsupportedErr.Extension)
}

func TestIngestor_RejectsEmptyAndOversizedFiles(t *testing.T) {
	ingestor := newTestIngestor(&mockVectorStore{}, newMockEmbeddingProvider(4))
	ctx := context.Background()

	_, err := ingestor.Ingest(ctx, "empty.txt", nil)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = ingestor.Ingest(ctx, "big.txt", make([]byte, 2<<20))
	require.ErrorAs(t, err, &validationErr)
}

func TestIngestor_ParseFailure(t *testing.T) {
	ingestor := newTestIngestor(&mockVectorStore{}, newMockEmbeddingProvider(4))

	// Invalid UTF-8 cannot be parsed as text.
	_, err := ingestor.Ingest(context.Background(), "broken.txt", []byte{0xff, 0xfe, 0xfd})
	require.Error(t, err)

	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestIngestor_IngestsTextDocument(t *testing.T) {
	vs := &mockVectorStore{}
	embed := newMockEmbeddingProvider(4)
	ingestor := newTestIngestor(vs, embed)

	content := []byte(repeat("The quick brown fox jumps over the lazy dog. ", 10))
	result, err := ingestor.Ingest(context.Background(), "notes.txt", content)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "notes.txt", result.Filename)
	assert.NotEmpty(t, result.DocumentID)
	assert.Equal(t, int64(len(content)), result.Size)
	assert.Equal(t, 1, result.Pages)
	assert.Greater(t, result.ChunksProcessed, 1)
	assert.Equal(t, result.ChunksProcessed, result.ChunksEmbedded)

	assert.True(t, vs.ensured)
	require.Len(t, vs.inserted, result.ChunksEmbedded)
	for _, chunk := range vs.inserted {
		assert.Equal(t, result.DocumentID, chunk.DocumentID)
		assert.Equal(t, "notes.txt", chunk.Source)
		assert.Equal(t, 1, chunk.Page)
		assert.Len(t, chunk.Embedding, 4)
	}
}

func TestIngestor_FallsBackToPerChunkEmbedding(t *testing.T) {
	vs := &mockVectorStore{}
	embed := newMockEmbeddingProvider(4)
	embed.batchErr = errMockEmbed
	ingestor := newTestIngestor(vs, embed)

	content := []byte(repeat("Chunked content for fallback embedding test. ", 10))
	result, err := ingestor.Ingest(context.Background(), "notes.txt", content)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, result.ChunksProcessed, result.ChunksEmbedded)
	assert.Len(t, vs.inserted, result.ChunksEmbedded)
}

func TestIngestor_PartialEmbedIsReported(t *testing.T) {
	vs := &mockVectorStore{}
	embed := newMockEmbeddingProvider(4)
	embed.batchErr = errMockEmbed

	// Chunk size 100 with overlap 20 splits this into exactly two chunks;
	// the second one is made to fail its per-chunk embed.
	firstChunk := repeat("a", 100)
	secondChunk := repeat("a", 20) + repeat("z", 60)
	embed.failTexts[secondChunk] = true
	ingestor := newTestIngestor(vs, embed)

	result, err := ingestor.Ingest(context.Background(), "notes.txt", []byte(repeat("a", 100)+repeat("z", 60)))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.ChunksProcessed)
	assert.Equal(t, 1, result.ChunksEmbedded)
	assert.Contains(t, result.Message, "1 of 2")
	assert.Contains(t, result.Message, "failed to embed")

	require.Len(t, vs.inserted, 1)
	assert.Equal(t, firstChunk, vs.inserted[0].Content)
}

func TestIngestor_AllChunksFailingIsAnError(t *testing.T) {
	embed := newMockEmbeddingProvider(4)
	embed.batchErr = errMockEmbed
	embed.singleErr = errMockEmbed
	ingestor := newTestIngestor(&mockVectorStore{}, embed)

	content := []byte(repeat("Content that will never embed. ", 10))
	_, err := ingestor.Ingest(context.Background(), "notes.txt", content)
	require.Error(t, err)

	var collabErr *CollaboratorError
	assert.ErrorAs(t, err, &collabErr)
}

func TestIngestor_InsertFailure(t *testing.T) {
	vs := &mockVectorStore{insertErr: errMockEmbed}
	ingestor := newTestIngestor(vs, newMockEmbeddingProvider(4))

	content := []byte(repeat("Insert failure path content. ", 10))
	_, err := ingestor.Ingest(context.Background(), "notes.txt", content)
	require.Error(t, err)

	var collabErr *CollaboratorError
	require.ErrorAs(t, err, &collabErr)
	assert.Equal(t, "vector store", collabErr.Collaborator)
}
