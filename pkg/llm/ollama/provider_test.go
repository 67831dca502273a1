package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/pkg/llm"
)

func newTestProvider(baseURL string) *Provider {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.MaxRetries = 1
	return NewProviderWithConfig(cfg)
}

func TestNewProvider_ConfigMap(t *testing.T) {
	p, err := NewProvider(map[string]any{
		"base_url":    "http://example:11434",
		"embed_model": "custom-embed",
		"chat_model":  "custom-chat",
	})
	require.NoError(t, err)
	assert.Equal(t, ProviderName, p.Name())

	provider := p.(*Provider)
	assert.Equal(t, "http://example:11434", provider.config.BaseURL)
	assert.Equal(t, "custom-embed", provider.config.EmbedModel)
	assert.Equal(t, "custom-chat", provider.config.ChatModel)
}

func TestNewProvider_Defaults(t *testing.T) {
	p, err := NewProvider(map[string]any{})
	require.NoError(t, err)

	provider := p.(*Provider)
	assert.Equal(t, "http://localhost:11434", provider.config.BaseURL)
	assert.Equal(t, "nomic-embed-text", provider.config.EmbedModel)
	assert.Equal(t, "llama3.2", provider.config.ChatModel)
}

func TestProvider_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, []string{"hello", "world"}, req.Input)

		_ = json.NewEncoder(w).Encode(embedResponse{
			Model:      req.Model,
			Embeddings: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	embeddings, err := p.Embed(context.Background(), []string{"hello", "world"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{0.1, 0.2}, embeddings[0])
}

func TestProvider_EmbedSingle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float32{{1, 2, 3}},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	embedding, err := p.EmbedSingle(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, embedding)
}

func TestProvider_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		_ = json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "hi there"},
			Done:    true,
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	answer, err := p.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "be brief"},
		{Role: llm.RoleUser, Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", answer)
}

func TestProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "answer me", req.Prompt)
		assert.Equal(t, "stay grounded", req.System)

		_ = json.NewEncoder(w).Encode(generateResponse{Response: "the answer", Done: true})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	answer, err := p.Generate(context.Background(), "answer me", "stay grounded")
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
}

func TestProvider_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)

	_, err := p.Embed(context.Background(), []string{"x"})
	assert.Error(t, err)

	_, err = p.Generate(context.Background(), "x", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestProvider_RetryResendsBody(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		mu.Lock()
		bodies = append(bodies, string(data))
		attempt := len(bodies)
		mu.Unlock()

		if attempt == 1 {
			// Drop the connection so the client retries.
			conn, _, hjErr := w.(http.Hijacker).Hijack()
			require.NoError(t, hjErr)
			_ = conn.Close()
			return
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	_, err := p.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
	assert.Contains(t, bodies[1], "hello")
}

func TestProvider_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2"}]}`))
	}))
	defer srv.Close()

	assert.NoError(t, newTestProvider(srv.URL).Ping(context.Background()))
	assert.Error(t, newTestProvider("http://127.0.0.1:1").Ping(context.Background()))
}

func TestProvider_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2"},{"name":"nomic-embed-text"}]}`))
	}))
	defer srv.Close()

	models, err := newTestProvider(srv.URL).ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.2", "nomic-embed-text"}, models)
}
