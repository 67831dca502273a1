package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ReturnsSingleton(t *testing.T) {
	assert.Same(t, Get(), Get())
}

func TestRecordUpload(t *testing.T) {
	m := &ServiceMetrics{startTime: time.Now()}

	m.RecordUpload(1, 5, false, nil)
	m.RecordUpload(1, 3, true, nil)
	m.RecordUpload(0, 0, false, assert.AnError)

	stats := m.Stats()
	uploads := stats["uploads"].(map[string]interface{})
	assert.Equal(t, uint64(3), uploads["total"])
	assert.Equal(t, uint64(1), uploads["errors"])
	assert.Equal(t, uint64(1), uploads["partial"])
	assert.Equal(t, uint64(2), uploads["documents_ingested"])
	assert.Equal(t, uint64(8), uploads["chunks_ingested"])
}

func TestRecordChat(t *testing.T) {
	m := &ServiceMetrics{startTime: time.Now()}

	m.RecordChat(false, nil)
	m.RecordChat(true, nil)
	m.RecordChat(false, assert.AnError)

	chats := m.Stats()["chats"].(map[string]interface{})
	assert.Equal(t, uint64(3), chats["total"])
	assert.Equal(t, uint64(1), chats["errors"])
	assert.Equal(t, uint64(1), chats["no_context"])
}

func TestRecordRetrieval_AverageDuration(t *testing.T) {
	m := &ServiceMetrics{startTime: time.Now()}

	m.RecordRetrieval(100*time.Millisecond, nil)
	m.RecordRetrieval(300*time.Millisecond, nil)
	m.RecordRetrieval(0, assert.AnError)

	retrieval := m.Stats()["retrieval"].(map[string]interface{})
	assert.Equal(t, uint64(3), retrieval["total"])
	assert.Equal(t, uint64(1), retrieval["errors"])
	// Failed calls contribute to the count but not the duration sum.
	assert.InDelta(t, 0.4/3.0, retrieval["avg_duration_secs"].(float64), 1e-9)
}

func TestRecordLLMCall(t *testing.T) {
	m := &ServiceMetrics{startTime: time.Now()}

	m.RecordLLMCall(2*time.Second, nil)
	m.RecordLLMCall(0, assert.AnError)

	llm := m.Stats()["llm"].(map[string]interface{})
	assert.Equal(t, uint64(2), llm["calls_total"])
	assert.Equal(t, uint64(1), llm["errors"])
	assert.InDelta(t, 1.0, llm["avg_duration_secs"].(float64), 1e-9)
}

func TestReset(t *testing.T) {
	m := &ServiceMetrics{startTime: time.Now()}

	m.RecordUpload(1, 5, false, nil)
	m.RecordChat(false, nil)
	m.RecordSessionCleared()
	m.Reset()

	stats := m.Stats()
	uploads := stats["uploads"].(map[string]interface{})
	assert.Equal(t, uint64(0), uploads["total"])
	chats := stats["chats"].(map[string]interface{})
	assert.Equal(t, uint64(0), chats["total"])
	assert.Equal(t, uint64(0), stats["sessions_cleared"])
}

func TestConcurrentRecording(t *testing.T) {
	m := &ServiceMetrics{startTime: time.Now()}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordChat(false, nil)
				m.RecordRetrieval(time.Millisecond, nil)
			}
		}()
	}
	wg.Wait()

	stats := m.Stats()
	chats := stats["chats"].(map[string]interface{})
	require.Equal(t, uint64(1000), chats["total"])
	retrieval := stats["retrieval"].(map[string]interface{})
	require.Equal(t, uint64(1000), retrieval["total"])
}
