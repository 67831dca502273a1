package biz

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// Turn is one question/answer exchange in a session.
type Turn struct {
	// Question is what the user asked.
	Question string `json:"question"`
	// Answer is the generated reply.
	Answer string `json:"answer"`
	// Error marks turns where answer generation failed.
	Error bool `json:"error,omitempty"`
	// Timestamp is when the turn completed.
	Timestamp time.Time `json:"timestamp"`
}

// SessionStore keeps per-session conversation history.
type SessionStore interface {
	// Append adds a turn to a session, evicting the oldest turn when the
	// session is at capacity.
	Append(ctx context.Context, sessionID string, turn *Turn) error

	// History returns a session's turns, oldest first. Unknown sessions
	// return an empty slice.
	History(ctx context.Context, sessionID string) ([]*Turn, error)

	// Clear removes all turns of a session. Clearing an unknown session
	// is a no-op.
	Clear(ctx context.Context, sessionID string) error
}

const sessionShards = 16

type sessionShard struct {
	mu       sync.RWMutex
	sessions map[string][]*Turn
}

// MemorySessionStore is the default in-process session store. Sessions are
// sharded to reduce lock contention under concurrent chats.
type MemorySessionStore struct {
	shards   [sessionShards]*sessionShard
	maxTurns int
}

// NewMemorySessionStore creates an in-process session store capped at
// maxTurns per session.
func NewMemorySessionStore(maxTurns int) *MemorySessionStore {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	s := &MemorySessionStore{maxTurns: maxTurns}
	for i := range s.shards {
		s.shards[i] = &sessionShard{sessions: make(map[string][]*Turn)}
	}
	return s
}

var _ SessionStore = (*MemorySessionStore)(nil)

func (s *MemorySessionStore) shard(sessionID string) *sessionShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return s.shards[h.Sum32()%sessionShards]
}

// Append adds a turn, evicting the oldest when at capacity.
func (s *MemorySessionStore) Append(_ context.Context, sessionID string, turn *Turn) error {
	shard := s.shard(sessionID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	turns := append(shard.sessions[sessionID], turn)
	if len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}
	shard.sessions[sessionID] = turns
	return nil
}

// History returns a copy of the session's turns, oldest first.
func (s *MemorySessionStore) History(_ context.Context, sessionID string) ([]*Turn, error) {
	shard := s.shard(sessionID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	turns := shard.sessions[sessionID]
	out := make([]*Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Clear removes the session.
func (s *MemorySessionStore) Clear(_ context.Context, sessionID string) error {
	shard := s.shard(sessionID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	delete(shard.sessions, sessionID)
	return nil
}
