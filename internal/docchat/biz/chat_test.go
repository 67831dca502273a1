package biz

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/internal/docchat/store"
)

func newTestChatter(vs *mockVectorStore, embed *mockEmbeddingProvider, chat *mockChatProvider) (*Chatter, SessionStore) {
	sessions := NewMemorySessionStore(10)
	chatter := NewChatter(vs, embed, chat, sessions, &ChatterConfig{
		Collection:     "test_chunks",
		TopK:           5,
		ScoreThreshold: 0.1,
		SystemPrompt:   "You are a document assistant.",
		MaxQuestionLen: 2000,
		HistoryWindow:  5,
	})
	return chatter, sessions
}

func searchResult(content string, score float32) *store.SearchResult {
	return &store.SearchResult{
		DocumentID: "doc-1",
		Source:     "manual.pdf",
		Page:       2,
		Content:    content,
		Score:      score,
	}
}

func TestChatter_RejectsEmptyQuestion(t *testing.T) {
	chatter, _ := newTestChatter(&mockVectorStore{}, newMockEmbeddingProvider(4), &mockChatProvider{})

	_, err := chatter.Chat(context.Background(), "s1", "   ")
	require.Error(t, err)

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestChatter_RejectsOverlongQuestion(t *testing.T) {
	chatter, _ := newTestChatter(&mockVectorStore{}, newMockEmbeddingProvider(4), &mockChatProvider{})

	_, err := chatter.Chat(context.Background(), "s1", repeat("x", 2001))
	require.Error(t, err)

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestChatter_EmptyCollectionSkipsLLM(t *testing.T) {
	chat := &mockChatProvider{response: "should not be called"}
	chatter, sessions := newTestChatter(&mockVectorStore{rowCount: 0}, newMockEmbeddingProvider(4), chat)

	result, err := chatter.Chat(context.Background(), "s1", "what is this about?")
	require.NoError(t, err)
	assert.Zero(t, chat.generateCnt)
	assert.False(t, result.Error)
	assert.Contains(t, result.Answer, "couldn't find any relevant information")
	assert.Empty(t, result.Sources)

	turns, _ := sessions.History(context.Background(), "s1")
	require.Len(t, turns, 1)
	assert.Equal(t, result.Answer, turns[0].Answer)
}

func TestChatter_NoResultsAboveThresholdSkipsLLM(t *testing.T) {
	vs := &mockVectorStore{
		rowCount:      10,
		searchResults: []*store.SearchResult{searchResult("weak match", 0.05)},
	}
	chat := &mockChatProvider{response: "should not be called"}
	chatter, _ := newTestChatter(vs, newMockEmbeddingProvider(4), chat)

	result, err := chatter.Chat(context.Background(), "s1", "anything?")
	require.NoError(t, err)
	assert.Zero(t, chat.generateCnt)
	assert.Contains(t, result.Answer, "couldn't find any relevant information")
}

func TestChatter_AnswersWithSources(t *testing.T) {
	longContent := repeat("warranty terms ", 20)
	vs := &mockVectorStore{
		rowCount: 10,
		searchResults: []*store.SearchResult{
			searchResult(longContent, 0.9),
			searchResult("short chunk", 0.4),
		},
	}
	chat := &mockChatProvider{response: "The warranty lasts two years."}
	chatter, sessions := newTestChatter(vs, newMockEmbeddingProvider(4), chat)

	result, err := chatter.Chat(context.Background(), "s1", "how long is the warranty?")
	require.NoError(t, err)

	assert.Equal(t, "how long is the warranty?", result.Question)
	assert.Equal(t, "The warranty lasts two years.", result.Answer)
	assert.False(t, result.Error)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, "manual.pdf", result.Sources[0].Filename)
	assert.Equal(t, 2, result.Sources[0].Page)
	assert.LessOrEqual(t, len([]rune(result.Sources[0].Preview)), 203)
	assert.True(t, strings.HasSuffix(result.Sources[0].Preview, "..."))
	assert.Equal(t, "short chunk", result.Sources[1].Preview)

	assert.Contains(t, chat.lastPrompt, "--- Document Context ---")
	assert.Contains(t, chat.lastPrompt, "--- Question ---")
	assert.Contains(t, chat.lastPrompt, "how long is the warranty?")
	assert.Equal(t, "You are a document assistant.", chat.lastSystem)

	turns, _ := sessions.History(context.Background(), "s1")
	require.Len(t, turns, 1)
	assert.False(t, turns[0].Error)
}

func TestChatter_ThresholdIsMinimumSimilarity(t *testing.T) {
	// Scores are cosine similarities, so the threshold keeps close matches
	// and drops distant ones, never the other way around.
	vs := &mockVectorStore{
		rowCount: 10,
		searchResults: []*store.SearchResult{
			searchResult("near exact match", 0.92),
			searchResult("decent match", 0.31),
			searchResult("noise", 0.04),
		},
	}
	chat := &mockChatProvider{response: "answered"}
	chatter, _ := newTestChatter(vs, newMockEmbeddingProvider(4), chat)

	result, err := chatter.Chat(context.Background(), "s1", "which chunks survive?")
	require.NoError(t, err)

	require.Len(t, result.Sources, 2)
	assert.Equal(t, float32(0.92), result.Sources[0].Score)
	assert.Equal(t, float32(0.31), result.Sources[1].Score)
	assert.Contains(t, chat.lastPrompt, "near exact match")
	assert.NotContains(t, chat.lastPrompt, "noise")
}

func TestChatter_HistoryWindowInPrompt(t *testing.T) {
	vs := &mockVectorStore{
		rowCount:      10,
		searchResults: []*store.SearchResult{searchResult("context chunk", 0.9)},
	}
	chat := &mockChatProvider{response: "ok"}
	chatter, sessions := newTestChatter(vs, newMockEmbeddingProvider(4), chat)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		require.NoError(t, sessions.Append(ctx, "s1", &Turn{
			Question: "old question " + string(rune('a'+i)),
			Answer:   "old answer",
		}))
	}

	_, err := chatter.Chat(ctx, "s1", "new question")
	require.NoError(t, err)

	assert.Contains(t, chat.lastPrompt, "--- Previous Conversation ---")
	// Window is 5 turns, the two oldest must be gone.
	assert.NotContains(t, chat.lastPrompt, "old question a")
	assert.NotContains(t, chat.lastPrompt, "old question b")
	assert.Contains(t, chat.lastPrompt, "old question c")
	assert.Contains(t, chat.lastPrompt, "old question g")
}

func TestChatter_GenerationFailureRecordsErrorTurn(t *testing.T) {
	vs := &mockVectorStore{
		rowCount:      10,
		searchResults: []*store.SearchResult{searchResult("context chunk", 0.9)},
	}
	chat := &mockChatProvider{err: errMockEmbed}
	chatter, sessions := newTestChatter(vs, newMockEmbeddingProvider(4), chat)

	result, err := chatter.Chat(context.Background(), "s1", "will this fail?")
	require.NoError(t, err)
	assert.True(t, result.Error)
	assert.Equal(t, "will this fail?", result.Question)
	assert.Contains(t, result.Answer, "something went wrong")

	turns, _ := sessions.History(context.Background(), "s1")
	require.Len(t, turns, 1)
	assert.True(t, turns[0].Error)
	assert.Equal(t, "will this fail?", turns[0].Question)
}

func TestChatter_EmbeddingFailureRecordsErrorTurn(t *testing.T) {
	embed := newMockEmbeddingProvider(4)
	embed.singleErr = errMockEmbed
	vs := &mockVectorStore{rowCount: 10}
	chatter, _ := newTestChatter(vs, embed, &mockChatProvider{response: "unused"})

	result, err := chatter.Chat(context.Background(), "s1", "question")
	require.NoError(t, err)
	assert.True(t, result.Error)
}
