package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docchat/pkg/utils/json"
)

// RedisSessionConfig configures the Redis-backed session store.
type RedisSessionConfig struct {
	// MaxTurns caps the turns kept per session.
	MaxTurns int
	// TTL expires idle sessions.
	TTL time.Duration
	// KeyPrefix prefixes all session keys.
	KeyPrefix string
}

// RedisSessionStore keeps session history in Redis lists so it survives
// restarts and can be shared across instances.
type RedisSessionStore struct {
	redis  *goredis.Client
	config *RedisSessionConfig
}

// NewRedisSessionStore creates a Redis-backed session store.
func NewRedisSessionStore(redis *goredis.Client, config *RedisSessionConfig) *RedisSessionStore {
	if config == nil {
		config = &RedisSessionConfig{}
	}
	if config.MaxTurns <= 0 {
		config.MaxTurns = 10
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "docchat:session:"
	}
	return &RedisSessionStore{
		redis:  redis,
		config: config,
	}
}

var _ SessionStore = (*RedisSessionStore)(nil)

func (s *RedisSessionStore) key(sessionID string) string {
	return s.config.KeyPrefix + sessionID
}

// Append pushes the turn and trims the list to the configured capacity.
func (s *RedisSessionStore) Append(ctx context.Context, sessionID string, turn *Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	key := s.key(sessionID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-s.config.MaxTurns), -1)
	pipe.Expire(ctx, key, s.config.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append session turn: %w", err)
	}
	return nil
}

// History returns the session's turns, oldest first.
func (s *RedisSessionStore) History(ctx context.Context, sessionID string) ([]*Turn, error) {
	items, err := s.redis.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		if err == goredis.Nil {
			return []*Turn{}, nil
		}
		return nil, fmt.Errorf("failed to read session history: %w", err)
	}

	turns := make([]*Turn, 0, len(items))
	for _, item := range items {
		var turn Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			logger.Warnw("skipping corrupted session turn", "session_id", sessionID, "error", err.Error())
			continue
		}
		turns = append(turns, &turn)
	}
	return turns, nil
}

// Clear deletes the session key.
func (s *RedisSessionStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
