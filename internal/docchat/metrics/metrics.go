// Package metrics collects service-level counters for the document chat
// service.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// ServiceMetrics holds atomic counters for the main operations.
type ServiceMetrics struct {
	uploadsTotal       uint64
	uploadsErrors      uint64
	uploadsPartial     uint64
	documentsIngested  uint64
	chunksIngested     uint64

	chatsTotal     uint64
	chatsErrors    uint64
	chatsNoContext uint64

	retrievalTotal    uint64
	retrievalErrors   uint64
	retrievalDuration float64

	llmCallsTotal    uint64
	llmCallsErrors   uint64
	llmCallsDuration float64

	sessionsCleared uint64

	startTime  time.Time
	durationMu sync.Mutex
}

var (
	globalMetrics *ServiceMetrics
	metricsOnce   sync.Once
)

// Get returns the global metrics instance.
func Get() *ServiceMetrics {
	metricsOnce.Do(func() {
		globalMetrics = &ServiceMetrics{
			startTime: time.Now(),
		}
	})
	return globalMetrics
}

// RecordUpload records one upload. Partial means some chunks failed to embed.
func (m *ServiceMetrics) RecordUpload(documents, chunks int, partial bool, err error) {
	atomic.AddUint64(&m.uploadsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.uploadsErrors, 1)
		return
	}
	if partial {
		atomic.AddUint64(&m.uploadsPartial, 1)
	}
	atomic.AddUint64(&m.documentsIngested, uint64(documents))
	atomic.AddUint64(&m.chunksIngested, uint64(chunks))
}

// RecordChat records one chat turn. noContext means the answer was produced
// without retrieved chunks.
func (m *ServiceMetrics) RecordChat(noContext bool, err error) {
	atomic.AddUint64(&m.chatsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.chatsErrors, 1)
		return
	}
	if noContext {
		atomic.AddUint64(&m.chatsNoContext, 1)
	}
}

// RecordRetrieval records one vector search.
func (m *ServiceMetrics) RecordRetrieval(duration time.Duration, err error) {
	atomic.AddUint64(&m.retrievalTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.retrievalErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.retrievalDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordLLMCall records one generation call.
func (m *ServiceMetrics) RecordLLMCall(duration time.Duration, err error) {
	atomic.AddUint64(&m.llmCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.llmCallsErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.llmCallsDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// DocumentsIngested returns how many documents have been ingested.
func (m *ServiceMetrics) DocumentsIngested() uint64 {
	return atomic.LoadUint64(&m.documentsIngested)
}

// ResetDocumentCounters zeroes the document and chunk counters. Called when
// the collection is cleared so the counters track the store contents.
func (m *ServiceMetrics) ResetDocumentCounters() {
	atomic.StoreUint64(&m.documentsIngested, 0)
	atomic.StoreUint64(&m.chunksIngested, 0)
}

// RecordSessionCleared records one session history wipe.
func (m *ServiceMetrics) RecordSessionCleared() {
	atomic.AddUint64(&m.sessionsCleared, 1)
}

// Stats returns a snapshot of the counters for the health endpoint.
func (m *ServiceMetrics) Stats() map[string]interface{} {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()

	retrievalTotal := atomic.LoadUint64(&m.retrievalTotal)
	avgRetrieval := 0.0
	if retrievalTotal > 0 {
		avgRetrieval = retrievalDuration / float64(retrievalTotal)
	}

	llmTotal := atomic.LoadUint64(&m.llmCallsTotal)
	avgLLM := 0.0
	if llmTotal > 0 {
		avgLLM = llmDuration / float64(llmTotal)
	}

	return map[string]interface{}{
		"uploads": map[string]interface{}{
			"total":              atomic.LoadUint64(&m.uploadsTotal),
			"errors":             atomic.LoadUint64(&m.uploadsErrors),
			"partial":            atomic.LoadUint64(&m.uploadsPartial),
			"documents_ingested": atomic.LoadUint64(&m.documentsIngested),
			"chunks_ingested":    atomic.LoadUint64(&m.chunksIngested),
		},
		"chats": map[string]interface{}{
			"total":      atomic.LoadUint64(&m.chatsTotal),
			"errors":     atomic.LoadUint64(&m.chatsErrors),
			"no_context": atomic.LoadUint64(&m.chatsNoContext),
		},
		"retrieval": map[string]interface{}{
			"total":             retrievalTotal,
			"errors":            atomic.LoadUint64(&m.retrievalErrors),
			"avg_duration_secs": avgRetrieval,
		},
		"llm": map[string]interface{}{
			"calls_total":       llmTotal,
			"errors":            atomic.LoadUint64(&m.llmCallsErrors),
			"avg_duration_secs": avgLLM,
		},
		"sessions_cleared": atomic.LoadUint64(&m.sessionsCleared),
		"uptime_seconds":   time.Since(m.startTime).Seconds(),
	}
}

// Reset clears all counters. Test helper.
func (m *ServiceMetrics) Reset() {
	atomic.StoreUint64(&m.uploadsTotal, 0)
	atomic.StoreUint64(&m.uploadsErrors, 0)
	atomic.StoreUint64(&m.uploadsPartial, 0)
	atomic.StoreUint64(&m.documentsIngested, 0)
	atomic.StoreUint64(&m.chunksIngested, 0)
	atomic.StoreUint64(&m.chatsTotal, 0)
	atomic.StoreUint64(&m.chatsErrors, 0)
	atomic.StoreUint64(&m.chatsNoContext, 0)
	atomic.StoreUint64(&m.retrievalTotal, 0)
	atomic.StoreUint64(&m.retrievalErrors, 0)
	atomic.StoreUint64(&m.llmCallsTotal, 0)
	atomic.StoreUint64(&m.llmCallsErrors, 0)
	atomic.StoreUint64(&m.sessionsCleared, 0)

	m.durationMu.Lock()
	m.retrievalDuration = 0
	m.llmCallsDuration = 0
	m.startTime = time.Now()
	m.durationMu.Unlock()
}
