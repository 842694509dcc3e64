package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"longform/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCountRequest_BypassedOutsideProduction(t *testing.T) {
	for _, env := range []string{"test", "development", "stress"} {
		t.Run(env, func(t *testing.T) {
			t.Setenv("APP_ENV", env)
			w, err := countRequest(context.Background(), nil, "comments", "ip:1", 1, time.Minute)
			assert.NoError(t, err)
			assert.True(t, w.Allowed)
		})
	}
}

func TestCountRequest_NilRedisErrors(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	w, err := countRequest(context.Background(), nil, "comments", "ip:1", 1, time.Minute)
	assert.Error(t, err)
	assert.False(t, w.Allowed)
}

func TestCountRequest_CountsWithinWindow(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		w, err := countRequest(ctx, rdb, "comments", "ip:1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, w.Allowed)
	}
	w, err := countRequest(ctx, rdb, "comments", "ip:1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, w.Allowed)

	assert.Equal(t, time.Minute, mr.TTL("rl:comments:ip:1"))

	mr.FastForward(2 * time.Minute)
	w, err = countRequest(ctx, rdb, "comments", "ip:1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, w.Allowed)
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

	t.Run("FailOpen with nil redis in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		app := fiber.New()
		app.Get("/test", RateLimit(nil, 1, time.Minute), handler)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("FailClosed with nil redis in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		app := fiber.New()
		app.Get("/test", RateLimitWithPolicy(nil, 1, time.Minute, FailClosed), handler)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("Limit exceeded", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		_, rdb := newTestRedis(t)
		app := fiber.New()
		app.Get("/test", RateLimit(rdb, 1, time.Minute, "test"), handler)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "1", resp.Header.Get("X-RateLimit-Limit"))
		assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
		_ = resp.Body.Close()

		resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "60", resp.Header.Get(fiber.HeaderRetryAfter))
		_ = resp.Body.Close()
	})

	t.Run("Verified identity has its own window", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		mr, rdb := newTestRedis(t)
		app := fiber.New()
		app.Get("/test", func(c *fiber.Ctx) error {
			if c.Get("X-Test-User") != "" {
				SetCurrentUser(c, &models.CurrentUser{Email: c.Get("X-Test-User"), Role: models.RoleReader})
			}
			return c.Next()
		}, RateLimit(rdb, 1, time.Minute, "react"), handler)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("X-Test-User", "bob@example.com")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()

		resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()

		assert.True(t, mr.Exists("rl:react:user:bob@example.com"))
	})
}
