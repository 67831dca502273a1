package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/metrics"
	"github.com/kart-io/docchat/internal/docchat/parser"
	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/pkg/llm"
)

// probeTimeout bounds each individual health probe.
const probeTimeout = 5 * time.Second

// ComponentHealth is the probe outcome for one dependency.
type ComponentHealth struct {
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// HealthReport aggregates dependency probes, document stats, and service
// counters.
type HealthReport struct {
	Status     string                      `json:"status"`
	Components map[string]*ComponentHealth `json:"components"`
	Documents  *DocumentStats              `json:"documents"`
	Metrics    map[string]interface{}      `json:"metrics"`
}

// DocumentStats describes the state of the document collection.
type DocumentStats struct {
	Collection       string `json:"collection"`
	TotalDocuments   int64  `json:"total_documents"`
	IndexedChunks    int64  `json:"indexed_chunks"`
	CollectionStatus string `json:"collection_status"`
	StoreHealthy     bool   `json:"store_healthy"`
	EmbedProvider    string `json:"embed_provider"`
	ChatProvider     string `json:"chat_provider"`
}

// HealthChecker probes the service's dependencies and reports document
// collection stats.
type HealthChecker struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	chatProvider  llm.ChatProvider
	parsers       *parser.Dispatcher
	collection    string
	embeddingDim  int
	metrics       *metrics.ServiceMetrics
}

// NewHealthChecker creates the dependency prober.
func NewHealthChecker(vectorStore store.VectorStore, embedProvider llm.EmbeddingProvider, chatProvider llm.ChatProvider, parsers *parser.Dispatcher, collection string, embeddingDim int) *HealthChecker {
	return &HealthChecker{
		store:         vectorStore,
		embedProvider: embedProvider,
		chatProvider:  chatProvider,
		parsers:       parsers,
		collection:    collection,
		embeddingDim:  embeddingDim,
		metrics:       metrics.Get(),
	}
}

// Check probes every dependency independently. One failing dependency
// degrades the report but never aborts the other probes.
func (h *HealthChecker) Check(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Status:     "healthy",
		Components: make(map[string]*ComponentHealth),
		Documents:  h.Stats(ctx),
		Metrics:    h.metrics.Stats(),
	}

	report.Components["vector_store"] = h.probe(ctx, func(ctx context.Context) error {
		_, err := h.store.Stats(ctx, h.collection)
		return err
	})

	report.Components["embedding_provider"] = h.probe(ctx, func(ctx context.Context) error {
		return pingProvider(ctx, h.embedProvider)
	})

	report.Components["chat_provider"] = h.probe(ctx, func(ctx context.Context) error {
		return pingProvider(ctx, h.chatProvider)
	})

	report.Components["parser"] = h.probe(ctx, h.parsers.Ping)

	for _, c := range report.Components {
		if c.Status != "healthy" {
			report.Status = "degraded"
			break
		}
	}
	return report
}

func (h *HealthChecker) probe(ctx context.Context, fn func(ctx context.Context) error) *ComponentHealth {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	err := fn(probeCtx)
	health := &ComponentHealth{
		Status:    "healthy",
		LatencyMS: float64(time.Since(start).Microseconds()) / 1000.0,
	}
	if err != nil {
		health.Status = "unhealthy"
		health.Error = err.Error()
	}
	return health
}

// pingProvider probes a provider when it supports it.
func pingProvider(ctx context.Context, provider any) error {
	if p, ok := provider.(llm.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Stats returns document collection counters. A store failure degrades to a
// zeroed report with the healthy flag down rather than an error.
func (h *HealthChecker) Stats(ctx context.Context) *DocumentStats {
	docStats := &DocumentStats{
		Collection:    h.collection,
		EmbedProvider: h.embedProvider.Name(),
		ChatProvider:  h.chatProvider.Name(),
	}

	stats, err := h.store.Stats(ctx, h.collection)
	if err != nil {
		logger.Warnw("failed to read collection stats", "collection", h.collection, "error", err.Error())
		docStats.CollectionStatus = "error"
		return docStats
	}

	docStats.TotalDocuments = int64(h.metrics.DocumentsIngested())
	docStats.IndexedChunks = stats.RowCount
	docStats.CollectionStatus = stats.Status
	docStats.StoreHealthy = true
	return docStats
}

// ClearAllDocuments drops the collection and recreates it empty.
func (h *HealthChecker) ClearAllDocuments(ctx context.Context) error {
	if err := h.store.Drop(ctx, h.collection); err != nil {
		return NewCollaboratorError("vector store", err)
	}
	if err := h.store.EnsureCollection(ctx, &store.CollectionConfig{
		Name:        h.collection,
		Description: "Uploaded document chunks",
		Dimension:   h.embeddingDim,
	}); err != nil {
		return NewCollaboratorError("vector store", err)
	}
	h.metrics.ResetDocumentCounters()
	logger.Infow("document collection cleared", "collection", h.collection)
	return nil
}
