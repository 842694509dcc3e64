package middleware

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"longform/internal/models"
	"longform/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when Redis cannot be reached.
type FailPolicy int

const (
	FailOpen FailPolicy = iota
	FailClosed
)

// CodeRateLimited is the error code of a 429 response.
const CodeRateLimited = "RATE_LIMITED"

var errNoRedis = errors.New("redis client is nil")

// Window is the state of one fixed rate-limit window after a request was counted.
type Window struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

// countRequest counts one request for id against resource and reports the window it
// landed in. Limits are not enforced in test and development environments.
func countRequest(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (Window, error) {
	if rateLimitBypassed() {
		return Window{Allowed: true, Remaining: limit, ResetIn: window}, nil
	}
	if rdb == nil {
		return Window{}, errNoRedis
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)
	n, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("ratelimit").Inc()
		return Window{}, err
	}
	if n == 1 {
		rdb.Expire(ctx, key, window)
	}

	resetIn, err := rdb.PTTL(ctx, key).Result()
	if err != nil || resetIn < 0 {
		resetIn = window
	}

	remaining := limit - int(n)
	if remaining < 0 {
		remaining = 0
	}
	return Window{Allowed: n <= int64(limit), Remaining: remaining, ResetIn: resetIn}, nil
}

// rateLimitSubject keys anonymous commenters and reactors by address; a verified bearer
// identity is keyed by e-mail so one account cannot spread requests across addresses.
func rateLimitSubject(c *fiber.Ctx) string {
	if user := CurrentUser(c); user != nil {
		return "user:" + user.Email
	}
	return "ip:" + c.IP()
}

// RateLimit enforces limit requests per window for the named resource and fails open.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy is RateLimit with an explicit policy for an unreachable Redis.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		w, err := countRequest(c.UserContext(), rdb, resource, rateLimitSubject(c), limit, window)
		if err != nil {
			if policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing closed",
					"resource", resource, "error", err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
					Error: "Rate limiting is temporarily unavailable",
					Code:  CodeRateLimited,
				})
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(w.Remaining))
		if !w.Allowed {
			observability.RateLimitRejections.WithLabelValues(resource).Inc()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(w.ResetIn.Round(time.Second)/time.Second)))
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please slow down",
				Code:  CodeRateLimited,
			})
		}
		return c.Next()
	}
}
