// Package store defines the vector store abstraction used by the document
// chat service, plus its Milvus and in-memory implementations.
package store

import (
	"context"
)

// Chunk is a single embedded slice of an uploaded document.
type Chunk struct {
	// ID is the chunk ID assigned by the store.
	ID string
	// DocumentID identifies the upload the chunk came from.
	DocumentID string
	// Source is the original filename.
	Source string
	// Page is the 1-based page number, 0 when the format has no pages.
	Page int
	// Content is the chunk text.
	Content string
	// Embedding is the chunk vector.
	Embedding []float32
}

// SearchResult is a retrieved chunk with its similarity score.
type SearchResult struct {
	// ID is the chunk ID.
	ID string
	// DocumentID identifies the upload the chunk came from.
	DocumentID string
	// Source is the original filename.
	Source string
	// Page is the 1-based page number.
	Page int
	// Content is the chunk text.
	Content string
	// Score is the cosine similarity in [-1, 1], higher is closer. Every
	// implementation must report this metric so threshold filtering works.
	Score float32
}

// CollectionConfig describes a collection.
type CollectionConfig struct {
	// Name is the collection name.
	Name string
	// Description is a human-readable description.
	Description string
	// Dimension is the embedding vector dimension.
	Dimension int
}

// CollectionStats holds collection-level counters.
type CollectionStats struct {
	// RowCount is the number of stored chunks.
	RowCount int64
	// Status describes the collection state (green, unavailable).
	Status string
}

// VectorStore is the vector storage interface.
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, config *CollectionConfig) error

	// Insert stores embedded chunks and returns the assigned chunk IDs.
	Insert(ctx context.Context, collection string, chunks []*Chunk) ([]string, error)

	// Search runs a vector similarity search. Results are ordered by
	// descending cosine similarity.
	Search(ctx context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error)

	// Stats returns collection counters.
	Stats(ctx context.Context, collection string) (*CollectionStats, error)

	// Drop removes the collection and all its data.
	Drop(ctx context.Context, collection string) error

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
