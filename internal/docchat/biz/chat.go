package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/metrics"
	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/pkg/llm"
)

const (
	// noContextAnswer is returned when retrieval finds nothing relevant.
	noContextAnswer = "I couldn't find any relevant information in the uploaded documents to answer your question. Try uploading a document first, or rephrase the question."

	// errorAnswer is returned when answer generation fails downstream.
	errorAnswer = "I'm sorry, something went wrong while answering your question. Please try again."

	// sourcePreviewLen caps source content previews in responses.
	sourcePreviewLen = 200
)

// ChatterConfig configures the answer pipeline.
type ChatterConfig struct {
	// Collection is the vector collection name.
	Collection string
	// TopK is the number of chunks to retrieve.
	TopK int
	// ScoreThreshold drops retrieved chunks scoring below it.
	ScoreThreshold float32
	// SystemPrompt is prepended to every generation.
	SystemPrompt string
	// MaxQuestionLen caps the question length in runes.
	MaxQuestionLen int
	// HistoryWindow is how many past turns go into the prompt.
	HistoryWindow int
}

// Source is a retrieved chunk reference returned with an answer.
type Source struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Page       int     `json:"page,omitempty"`
	Preview    string  `json:"preview"`
	Score      float32 `json:"score"`
}

// ChatResult is the outcome of one chat turn.
type ChatResult struct {
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Sources   []*Source `json:"sources"`
	Error     bool      `json:"error,omitempty"`
}

// Chatter answers questions over the uploaded documents.
type Chatter struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	chatProvider  llm.ChatProvider
	sessions      SessionStore
	config        *ChatterConfig
	metrics       *metrics.ServiceMetrics
}

// NewChatter creates the answer pipeline.
func NewChatter(vectorStore store.VectorStore, embedProvider llm.EmbeddingProvider, chatProvider llm.ChatProvider, sessions SessionStore, config *ChatterConfig) *Chatter {
	if config.TopK <= 0 {
		config.TopK = 5
	}
	if config.HistoryWindow <= 0 {
		config.HistoryWindow = 5
	}
	return &Chatter{
		store:         vectorStore,
		embedProvider: embedProvider,
		chatProvider:  chatProvider,
		sessions:      sessions,
		config:        config,
		metrics:       metrics.Get(),
	}
}

// Chat answers one question in the context of a session. Downstream failures
// do not surface as errors: the turn is recorded with an apologetic answer
// and the error flag set, so the conversation stays usable.
func (c *Chatter) Chat(ctx context.Context, sessionID, question string) (*ChatResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, NewValidationError("question", "question is required")
	}
	if c.config.MaxQuestionLen > 0 && len([]rune(question)) > c.config.MaxQuestionLen {
		return nil, NewValidationError("question", fmt.Sprintf("question exceeds %d characters", c.config.MaxQuestionLen))
	}
	if sessionID == "" {
		return nil, NewValidationError("session_id", "session_id is required")
	}

	stats, err := c.store.Stats(ctx, c.config.Collection)
	if err != nil {
		return c.errorTurn(ctx, sessionID, question, NewCollaboratorError("vector store", err)), nil
	}
	if stats.RowCount == 0 {
		c.metrics.RecordChat(true, nil)
		return c.recordTurn(ctx, sessionID, question, noContextAnswer, nil, false), nil
	}

	results, err := c.retrieve(ctx, question)
	if err != nil {
		return c.errorTurn(ctx, sessionID, question, err), nil
	}
	if len(results) == 0 {
		c.metrics.RecordChat(true, nil)
		return c.recordTurn(ctx, sessionID, question, noContextAnswer, nil, false), nil
	}

	history, err := c.sessions.History(ctx, sessionID)
	if err != nil {
		logger.Warnw("failed to load session history", "session_id", sessionID, "error", err.Error())
		history = nil
	}

	prompt := c.buildPrompt(question, history, results)

	llmStart := time.Now()
	answer, err := c.chatProvider.Generate(ctx, prompt, c.config.SystemPrompt)
	c.metrics.RecordLLMCall(time.Since(llmStart), err)
	if err != nil {
		return c.errorTurn(ctx, sessionID, question, NewCollaboratorError("chat provider", err)), nil
	}

	c.metrics.RecordChat(false, nil)
	return c.recordTurn(ctx, sessionID, question, answer, buildSources(results), false), nil
}

// retrieve embeds the question and searches the collection, dropping results
// below the score threshold.
func (c *Chatter) retrieve(ctx context.Context, question string) ([]*store.SearchResult, error) {
	embedding, err := c.embedProvider.EmbedSingle(ctx, question)
	if err != nil {
		return nil, NewCollaboratorError("embedding provider", err)
	}

	searchStart := time.Now()
	results, err := c.store.Search(ctx, c.config.Collection, embedding, c.config.TopK)
	c.metrics.RecordRetrieval(time.Since(searchStart), err)
	if err != nil {
		return nil, NewCollaboratorError("vector store", err)
	}

	filtered := results[:0]
	for _, r := range results {
		if r.Score >= c.config.ScoreThreshold {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// buildPrompt assembles conversation history and retrieved context around the
// question.
func (c *Chatter) buildPrompt(question string, history []*Turn, results []*store.SearchResult) string {
	var sb strings.Builder

	if len(history) > 0 {
		window := history
		if len(window) > c.config.HistoryWindow {
			window = window[len(window)-c.config.HistoryWindow:]
		}
		sb.WriteString("--- Previous Conversation ---\n")
		for _, turn := range window {
			sb.WriteString("Human: ")
			sb.WriteString(turn.Question)
			sb.WriteString("\nAssistant: ")
			sb.WriteString(turn.Answer)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("--- Document Context ---\n")
	for idx, r := range results {
		sb.WriteString(fmt.Sprintf("[%d] (source: %s", idx+1, r.Source))
		if r.Page > 0 {
			sb.WriteString(fmt.Sprintf(", page %d", r.Page))
		}
		sb.WriteString(")\n")
		sb.WriteString(r.Content)
		sb.WriteString("\n\n")
	}

	sb.WriteString("--- Question ---\n")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer based on the document context above. If the context does not contain the answer, say so.")

	return sb.String()
}

// errorTurn records a failed turn with an apologetic answer.
func (c *Chatter) errorTurn(ctx context.Context, sessionID, question string, err error) *ChatResult {
	logger.Errorw("chat turn failed", "session_id", sessionID, "error", err.Error())
	c.metrics.RecordChat(false, err)
	return c.recordTurn(ctx, sessionID, question, errorAnswer, nil, true)
}

// recordTurn appends the turn to the session and builds the result.
func (c *Chatter) recordTurn(ctx context.Context, sessionID, question, answer string, sources []*Source, isError bool) *ChatResult {
	turn := &Turn{
		Question:  question,
		Answer:    answer,
		Error:     isError,
		Timestamp: time.Now(),
	}
	if err := c.sessions.Append(ctx, sessionID, turn); err != nil {
		logger.Warnw("failed to record session turn", "session_id", sessionID, "error", err.Error())
	}

	if sources == nil {
		sources = []*Source{}
	}
	return &ChatResult{
		SessionID: sessionID,
		Question:  question,
		Answer:    answer,
		Sources:   sources,
		Error:     isError,
	}
}

func buildSources(results []*store.SearchResult) []*Source {
	sources := make([]*Source, len(results))
	for idx, r := range results {
		preview := r.Content
		if runes := []rune(preview); len(runes) > sourcePreviewLen {
			preview = string(runes[:sourcePreviewLen]) + "..."
		}
		sources[idx] = &Source{
			DocumentID: r.DocumentID,
			Filename:   r.Source,
			Page:       r.Page,
			Preview:    preview,
			Score:      r.Score,
		}
	}
	return sources
}
