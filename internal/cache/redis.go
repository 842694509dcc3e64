// Package cache provides Redis caching utilities for the application.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"longform/internal/middleware"
	"longform/internal/observability"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// instrumentHook traces every Redis command and counts failures. A miss (redis.Nil) is not
// a failure.
type instrumentHook struct{}

func (instrumentHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (instrumentHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		ctx, span := observability.TraceRedisOperation(ctx, cmd.Name(), commandKey(cmd))
		err := next(ctx, cmd)
		if errors.Is(err, redis.Nil) {
			observability.EndSpan(span, nil)
			return err
		}
		if err != nil {
			observability.RedisErrorRate.WithLabelValues(cmd.Name()).Inc()
		}
		observability.EndSpan(span, err)
		return err
	}
}

func (instrumentHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrorRate.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// commandKey is the first argument after the command name, which is the key for every
// command this service issues.
func commandKey(cmd redis.Cmder) string {
	args := cmd.Args()
	if len(args) < 2 {
		return ""
	}
	return fmt.Sprint(args[1])
}

// NewClient builds a client for addr ("host:port" or a redis:// URL) with the instrumentation hook
// installed. It does not dial.
func NewClient(addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		opts = parsed
	}

	c := redis.NewClient(opts)
	c.AddHook(instrumentHook{})
	return c, nil
}

// InitRedis initializes the Redis client with the given address. When Redis is unreachable
// the client stays nil and callers run without cache, notifications and rate limiting.
func InitRedis(addr string) *redis.Client {
	c, err := NewClient(addr)
	if err != nil {
		middleware.Logger.Warn("Redis connection warning: invalid REDIS_URL (continuing without cache)",
			"addr", addr, "error", err)
		client = nil
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		middleware.Logger.Warn("Redis connection warning (continuing without cache)", "error", err)
		_ = c.Close()
		client = nil
		return nil
	}

	middleware.Logger.Info("Redis connected successfully")
	client = c
	return client
}

// GetClient returns the current Redis client instance.
func GetClient() *redis.Client {
	return client
}
