package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/internal/docchat/metrics"
	"github.com/kart-io/docchat/internal/docchat/parser"
)

func newTestHealthChecker(vs *mockVectorStore, embed *mockEmbeddingProvider, chat *mockChatProvider) *HealthChecker {
	parsers := parser.NewDispatcher()
	parsers.Register(parser.NewTextParser(), ".txt", ".md")
	return NewHealthChecker(vs, embed, chat, parsers, "test_chunks", 4)
}

func TestHealthChecker_AllHealthy(t *testing.T) {
	checker := newTestHealthChecker(&mockVectorStore{rowCount: 5}, newMockEmbeddingProvider(4), &mockChatProvider{})

	report := checker.Check(context.Background())
	assert.Equal(t, "healthy", report.Status)
	require.Len(t, report.Components, 4)
	for name, component := range report.Components {
		assert.Equal(t, "healthy", component.Status, "component %s", name)
		assert.Empty(t, component.Error)
	}
	assert.NotNil(t, report.Metrics)
	require.NotNil(t, report.Documents)
	assert.True(t, report.Documents.StoreHealthy)
	assert.Equal(t, int64(5), report.Documents.IndexedChunks)
}

func TestHealthChecker_DegradedWhenStoreFails(t *testing.T) {
	checker := newTestHealthChecker(&mockVectorStore{statsErr: errMockEmbed}, newMockEmbeddingProvider(4), &mockChatProvider{})

	report := checker.Check(context.Background())
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, "unhealthy", report.Components["vector_store"].Status)
	assert.NotEmpty(t, report.Components["vector_store"].Error)

	// The other probes still ran.
	assert.Equal(t, "healthy", report.Components["chat_provider"].Status)
	assert.Equal(t, "healthy", report.Components["parser"].Status)
}

func TestHealthChecker_DegradedWhenProviderFails(t *testing.T) {
	embed := newMockEmbeddingProvider(4)
	embed.pingErr = errMockEmbed
	checker := newTestHealthChecker(&mockVectorStore{}, embed, &mockChatProvider{})

	report := checker.Check(context.Background())
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, "unhealthy", report.Components["embedding_provider"].Status)
}

func TestHealthChecker_Stats(t *testing.T) {
	metrics.Get().Reset()
	metrics.Get().RecordUpload(1, 42, false, nil)
	checker := newTestHealthChecker(&mockVectorStore{rowCount: 42}, newMockEmbeddingProvider(4), &mockChatProvider{})

	stats := checker.Stats(context.Background())
	assert.Equal(t, "test_chunks", stats.Collection)
	assert.Equal(t, int64(1), stats.TotalDocuments)
	assert.Equal(t, int64(42), stats.IndexedChunks)
	assert.Equal(t, "green", stats.CollectionStatus)
	assert.True(t, stats.StoreHealthy)
	assert.Equal(t, "mock-embed", stats.EmbedProvider)
	assert.Equal(t, "mock-chat", stats.ChatProvider)
}

func TestHealthChecker_StatsDegradesOnStoreFailure(t *testing.T) {
	checker := newTestHealthChecker(&mockVectorStore{statsErr: errMockEmbed}, newMockEmbeddingProvider(4), &mockChatProvider{})

	stats := checker.Stats(context.Background())
	assert.False(t, stats.StoreHealthy)
	assert.Equal(t, "error", stats.CollectionStatus)
	assert.Zero(t, stats.TotalDocuments)
	assert.Zero(t, stats.IndexedChunks)
}

func TestHealthChecker_ClearAllDocuments(t *testing.T) {
	metrics.Get().Reset()
	metrics.Get().RecordUpload(1, 42, false, nil)
	vs := &mockVectorStore{rowCount: 42}
	checker := newTestHealthChecker(vs, newMockEmbeddingProvider(4), &mockChatProvider{})

	require.NoError(t, checker.ClearAllDocuments(context.Background()))
	assert.True(t, vs.dropped)
	assert.True(t, vs.ensured)
	assert.Equal(t, int64(0), vs.rowCount)
	assert.Zero(t, metrics.Get().DocumentsIngested())
}
