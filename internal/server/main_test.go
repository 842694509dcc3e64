package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"longform/internal/config"
	"longform/internal/middleware"
	"longform/internal/models"
	"longform/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

const testSecret = "server-test-secret-0123456789abcdef0123456789"

var (
	authorUser = models.CurrentUser{Email: "ada@example.com", Name: "Ada", Role: models.RoleAuthor}
	adminUser  = models.CurrentUser{Email: "root@example.com", Name: "Root", Role: models.RoleAdmin}
	readerUser = models.CurrentUser{Email: "bob@example.com", Name: "Bob", Role: models.RoleReader}
)

func newTestServer(t *testing.T) (*Server, *fiber.App) {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	cfg := &config.Config{
		Port:         "0",
		Env:          "test",
		JWTSecret:    testSecret,
		FeatureFlags: "comment_notifications=on,post_cache=on",
	}
	s, err := NewServerWithDeps(cfg, testutil.NewTestDB(t), nil)
	require.NoError(t, err)
	return s, s.App()
}

func tokenFor(t *testing.T, user models.CurrentUser) string {
	t.Helper()
	token, err := middleware.IssueToken(testSecret, user, time.Hour)
	require.NoError(t, err)
	return token
}

// call performs a request and decodes a JSON response into out when out is non-nil.
func call(t *testing.T, app *fiber.App, method, path string, body any, token string, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out), "body: %s", raw)
	}
	return resp.StatusCode
}

func createPost(t *testing.T, app *fiber.App, body string) models.Post {
	t.Helper()
	var post models.Post
	status := call(t, app, http.MethodPost, "/api/posts", fiber.Map{
		"title": "Field notes",
		"body":  body,
	}, tokenFor(t, authorUser), &post)
	require.Equal(t, http.StatusCreated, status)
	return post
}
