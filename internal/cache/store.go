package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"longform/internal/middleware"
	"longform/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Store is a best-effort JSON cache. A Store with a nil client, or a nil *Store, never
// hits and never fails.
type Store struct {
	client *redis.Client
	name   string
	ttl    time.Duration
}

// NewStore returns a Store named for metrics, writing entries with ttl.
func NewStore(client *redis.Client, name string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = PostTTL
	}
	return &Store{client: client, name: name, ttl: ttl}
}

// Enabled reports whether a Redis client backs the store.
func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func (s *Store) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with the store TTL.
func (s *Store) SetJSON(ctx context.Context, key string, v any) error {
	if !s.Enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, b, s.ttl).Err()
}

// Aside tries Redis first and on a miss calls fetch, which must populate dest, then stores
// dest. Cache failures degrade to a direct fetch; only fetch errors are returned.
func (s *Store) Aside(ctx context.Context, key string, dest any, fetch func() error) error {
	ctx, span := observability.TraceRedisOperation(ctx, "aside", key)
	defer span.End()

	found, err := s.GetJSON(ctx, key, dest)
	switch {
	case err != nil:
		observability.CacheResults.WithLabelValues(s.label(), "error").Inc()
		middleware.Logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	case found:
		observability.CacheResults.WithLabelValues(s.label(), "hit").Inc()
		return nil
	case s.Enabled():
		observability.CacheResults.WithLabelValues(s.label(), "miss").Inc()
	}

	if err := fetch(); err != nil {
		return err
	}

	if err := s.SetJSON(ctx, key, dest); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
	return nil
}

// Invalidate deletes keys, logging failures.
func (s *Store) Invalidate(ctx context.Context, keys ...string) {
	if !s.Enabled() || len(keys) == 0 {
		return
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed", "keys", keys, "error", err)
	}
}

func (s *Store) label() string {
	if s == nil || s.name == "" {
		return "default"
	}
	return s.name
}
