package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/resumeforge/orchestrator/internal/workflow"
)

// RedisStore backs the intermediate result cache with Redis. Outcomes
// are stored as JSON strings; numbers come back as float64, which
// Outcome.Tokens handles.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(opts RedisOptions, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, logger: logger}, nil
}

// NewRedisStoreWithClient wraps an existing client (tests use this with
// miniredis).
func NewRedisStoreWithClient(client *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

// Get implements Store. A corrupt value is logged and treated as a miss.
func (s *RedisStore) Get(ctx context.Context, sessionID, stepID string) (workflow.Outcome, bool, error) {
	data, err := s.client.Get(ctx, Key(sessionID, stepID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var out workflow.Outcome
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		s.logger.Warn("Discarding corrupt cache entry",
			zap.String("session_id", sessionID),
			zap.String("step_id", stepID),
			zap.Error(err),
		)
		return nil, false, nil
	}
	return out, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, sessionID, stepID string, out workflow.Outcome, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := s.client.Set(ctx, Key(sessionID, stepID), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
