package server

import (
	"net/http"
	"testing"

	"longform/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestHumanizeParam(t *testing.T) {
	assert.Equal(t, "ID", humanizeParam("id"))
	assert.Equal(t, "comment ID", humanizeParam("commentId"))
	assert.Equal(t, "parent comment ID", humanizeParam("parentCommentId"))
	assert.Equal(t, "token", humanizeParam("token"))
}

func TestParseID_RejectsBadValues(t *testing.T) {
	_, app := newTestServer(t)

	for _, path := range []string{"/api/posts/abc", "/api/posts/0", "/api/posts/-4"} {
		var body models.ErrorResponse
		status := call(t, app, http.MethodGet, path, nil, "", &body)
		assert.Equal(t, http.StatusBadRequest, status, path)
		assert.Equal(t, "Invalid ID", body.Error)
		assert.Equal(t, models.CodeValidation, body.Code)
	}
}
