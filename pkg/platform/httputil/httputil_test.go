package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "veil/pkg/domain-errors"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"bad request", dErrors.New(dErrors.CodeBadRequest, "entity_type is required"), http.StatusBadRequest, "bad_request"},
		{"validation", dErrors.New(dErrors.CodeValidation, "bad"), http.StatusBadRequest, "validation_error"},
		{"not found", dErrors.New(dErrors.CodeNotFound, "entity not found"), http.StatusNotFound, "not_found"},
		{"forbidden", dErrors.New(dErrors.CodeForbidden, "role mismatch"), http.StatusForbidden, "forbidden"},
		{"unauthorized", dErrors.New(dErrors.CodeUnauthorized, "no token"), http.StatusUnauthorized, "unauthorized"},
		{"plain error", errors.New("db exploded"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tc.err)
			assert.Equal(t, tc.status, w.Code)
			body := decodeError(t, w)
			assert.False(t, body.Success)
			assert.Equal(t, tc.code, body.Error)
		})
	}

	t.Run("internal errors do not leak their message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.Wrap(errors.New("pq: relation missing"), dErrors.CodeInternal, "select rules failed"))
		body := decodeError(t, w)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, body.ErrorDescription, "relation")
		assert.NotContains(t, body.ErrorDescription, "select rules")
	})
}

type prepared struct {
	Name string `json:"name"`
}

func (p *prepared) Normalize() { p.Name = strings.TrimSpace(p.Name) }

func (p *prepared) Validate() error {
	if p.Name == "" {
		return dErrors.New(dErrors.CodeBadRequest, "name is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("decodes and normalizes", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"  jane  "}`))
		w := httptest.NewRecorder()
		req, ok := DecodeAndPrepare[prepared](w, r, logger, r.Context(), "req-1")
		require.True(t, ok)
		assert.Equal(t, "jane", req.Name)
	})

	t.Run("malformed json returns 400", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
		w := httptest.NewRecorder()
		_, ok := DecodeAndPrepare[prepared](w, r, logger, r.Context(), "req-1")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation failure keeps domain code", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"   "}`))
		w := httptest.NewRecorder()
		_, ok := DecodeAndPrepare[prepared](w, r, logger, r.Context(), "req-1")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decodeError(t, w).Error)
	})
}
