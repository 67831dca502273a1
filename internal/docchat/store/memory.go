package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is a brute-force in-memory VectorStore. It backs tests and
// single-node development setups where Milvus is not running.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
	nextID      int64
}

type memoryCollection struct {
	dimension int
	chunks    []*Chunk
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memoryCollection),
	}
}

var _ VectorStore = (*MemoryStore)(nil)

// EnsureCollection creates the collection if it does not exist.
func (s *MemoryStore) EnsureCollection(_ context.Context, config *CollectionConfig) error {
	if config.Dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", config.Dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[config.Name]; ok {
		return nil
	}
	s.collections[config.Name] = &memoryCollection{dimension: config.Dimension}
	return nil
}

// Insert stores embedded chunks and assigns sequential IDs.
func (s *MemoryStore) Insert(_ context.Context, collection string, chunks []*Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %q does not exist", collection)
	}

	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		if len(chunk.Embedding) != coll.dimension {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(chunk.Embedding), coll.dimension)
		}
		s.nextID++
		stored := *chunk
		stored.ID = fmt.Sprintf("%d", s.nextID)
		coll.chunks = append(coll.chunks, &stored)
		ids[i] = stored.ID
	}

	return ids, nil
}

// Search ranks chunks by cosine similarity against the query embedding.
func (s *MemoryStore) Search(_ context.Context, collection string, embedding []float32, topK int) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %q does not exist", collection)
	}
	if topK <= 0 {
		topK = 5
	}

	results := make([]*SearchResult, 0, len(coll.chunks))
	for _, chunk := range coll.chunks {
		results = append(results, &SearchResult{
			ID:         chunk.ID,
			DocumentID: chunk.DocumentID,
			Source:     chunk.Source,
			Page:       chunk.Page,
			Content:    chunk.Content,
			Score:      cosineSimilarity(embedding, chunk.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Stats returns the chunk count for the collection.
func (s *MemoryStore) Stats(_ context.Context, collection string) (*CollectionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[collection]
	if !ok {
		return &CollectionStats{RowCount: 0, Status: "missing"}, nil
	}
	return &CollectionStats{RowCount: int64(len(coll.chunks)), Status: "green"}, nil
}

// Drop removes the collection and its chunks.
func (s *MemoryStore) Drop(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, collection)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
