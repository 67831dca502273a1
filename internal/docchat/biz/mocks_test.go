package biz

import (
	"context"
	"strings"
	"sync"

	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/pkg/llm"
)

// mockEmbeddingProvider fakes an embedding backend for tests.
type mockEmbeddingProvider struct {
	mu         sync.Mutex
	dim        int
	batchErr   error
	singleErr  error
	failTexts  map[string]bool
	embedCalls int
	pingErr    error
}

func newMockEmbeddingProvider(dim int) *mockEmbeddingProvider {
	return &mockEmbeddingProvider{dim: dim, failTexts: make(map[string]bool)}
}

func (m *mockEmbeddingProvider) vector() []float32 {
	v := make([]float32, m.dim)
	for i := range v {
		v[i] = 0.5
	}
	return v
}

func (m *mockEmbeddingProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.embedCalls++
	m.mu.Unlock()
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.vector()
	}
	return out, nil
}

func (m *mockEmbeddingProvider) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	if m.singleErr != nil {
		return nil, m.singleErr
	}
	m.mu.Lock()
	failed := m.failTexts[text]
	m.mu.Unlock()
	if failed {
		return nil, errMockEmbed
	}
	return m.vector(), nil
}

func (m *mockEmbeddingProvider) Name() string { return "mock-embed" }

func (m *mockEmbeddingProvider) Ping(_ context.Context) error { return m.pingErr }

// mockChatProvider fakes a chat backend for tests.
type mockChatProvider struct {
	response    string
	err         error
	pingErr     error
	lastPrompt  string
	lastSystem  string
	generateCnt int
}

func (m *mockChatProvider) Chat(_ context.Context, messages []llm.Message) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockChatProvider) Generate(_ context.Context, prompt string, systemPrompt string) (string, error) {
	m.generateCnt++
	m.lastPrompt = prompt
	m.lastSystem = systemPrompt
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockChatProvider) Name() string { return "mock-chat" }

func (m *mockChatProvider) Ping(_ context.Context) error { return m.pingErr }

// mockVectorStore fakes the vector store for tests.
type mockVectorStore struct {
	mu            sync.Mutex
	rowCount      int64
	statsErr      error
	searchErr     error
	insertErr     error
	dropErr       error
	searchResults []*store.SearchResult
	inserted      []*store.Chunk
	dropped       bool
	ensured       bool
}

func (m *mockVectorStore) EnsureCollection(_ context.Context, _ *store.CollectionConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensured = true
	return nil
}

func (m *mockVectorStore) Insert(_ context.Context, _ string, chunks []*store.Chunk) ([]string, error) {
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, chunks...)
	m.rowCount += int64(len(chunks))
	ids := make([]string, len(chunks))
	return ids, nil
}

func (m *mockVectorStore) Search(_ context.Context, _ string, _ []float32, topK int) ([]*store.SearchResult, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if len(m.searchResults) > topK {
		return m.searchResults[:topK], nil
	}
	return m.searchResults, nil
}

func (m *mockVectorStore) Stats(_ context.Context, collection string) (*store.CollectionStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return &store.CollectionStats{RowCount: m.rowCount, Status: "green"}, nil
}

func (m *mockVectorStore) Drop(_ context.Context, _ string) error {
	if m.dropErr != nil {
		return m.dropErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped = true
	m.rowCount = 0
	return nil
}

func (m *mockVectorStore) Close(_ context.Context) error { return nil }

var errMockEmbed = &mockError{"embedding backend unavailable"}

type mockError struct{ msg string }

func (e *mockError) Error() string { return e.msg }

// repeat builds chunk-sized test content.
func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
