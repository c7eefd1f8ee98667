package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/deepresearch/api"
	"github.com/BaSui01/deepresearch/types"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name       string
		data       any
		wantStatus int
	}{
		{
			name:       "simple object",
			data:       map[string]string{"message": "hello"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "array",
			data:       []int{1, 2, 3},
			wantStatus: http.StatusOK,
		},
		{
			name:       "error status",
			data:       map[string]string{"detail": "Task not found"},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteJSON(w, tt.wantStatus, tt.data)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestWriteDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteDetail(w, http.StatusNotFound, "Task not found")

	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp api.DetailResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Task not found", resp.Detail)
}

func TestWriteErrorMessage(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorMessage(w, http.StatusBadRequest, "query must not be empty")

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "query must not be empty", resp.Error)
}

func TestWriteError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		err        *types.Error
		wantStatus int
	}{
		{
			name:       "invalid request",
			err:        types.NewError(types.ErrInvalidRequest, "query is required"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "task not found",
			err:        types.NewError(types.ErrTaskNotFound, "no such task"),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "task not completed",
			err:        types.NewError(types.ErrTaskNotDone, "still processing"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "rate limited",
			err:        types.NewError(types.ErrRateLimited, "slow down"),
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "upstream timeout",
			err:        types.NewError(types.ErrUpstreamTimeout, "search timed out"),
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "upstream error",
			err:        types.NewError(types.ErrUpstreamError, "search backend 500"),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "provider unavailable",
			err:        types.NewError(types.ErrProviderUnavailable, "no provider"),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "internal error",
			err:        types.NewError(types.ErrInternalError, "boom"),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "explicit status wins",
			err:        types.NewError(types.ErrInternalError, "full").WithHTTPStatus(http.StatusServiceUnavailable),
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err, logger)

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp api.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.err.Message, resp.Error)
		})
	}
}

func TestDecodeJSONBody(t *testing.T) {
	logger := zap.NewNop()

	type payload struct {
		Query string `json:"query"`
	}

	t.Run("valid body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/research",
			strings.NewReader(`{"query":"What is quantum computing?"}`))

		var p payload
		err := DecodeJSONBody(w, r, &p, logger)

		require.NoError(t, err)
		assert.Equal(t, "What is quantum computing?", p.Query)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/research",
			strings.NewReader(`{"query":`))

		var p payload
		err := DecodeJSONBody(w, r, &p, logger)

		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/research",
			strings.NewReader(`{"query":"q","depth":3}`))

		var p payload
		err := DecodeJSONBody(w, r, &p, logger)

		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("oversized body rejected", func(t *testing.T) {
		big := bytes.Repeat([]byte("a"), maxBodyBytes+1)
		body := append([]byte(`{"query":"`), big...)
		body = append(body, `"}`...)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/research", bytes.NewReader(body))

		var p payload
		err := DecodeJSONBody(w, r, &p, logger)

		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestResponseWriter(t *testing.T) {
	t.Run("captures status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		rw := NewResponseWriter(rec)

		rw.WriteHeader(http.StatusNotFound)

		assert.Equal(t, http.StatusNotFound, rw.StatusCode)
		assert.True(t, rw.Written)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("implicit 200 on write", func(t *testing.T) {
		rec := httptest.NewRecorder()
		rw := NewResponseWriter(rec)

		_, err := rw.Write([]byte("ok"))

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rw.StatusCode)
		assert.True(t, rw.Written)
	})

	t.Run("second WriteHeader ignored", func(t *testing.T) {
		rec := httptest.NewRecorder()
		rw := NewResponseWriter(rec)

		rw.WriteHeader(http.StatusTooManyRequests)
		rw.WriteHeader(http.StatusOK)

		assert.Equal(t, http.StatusTooManyRequests, rw.StatusCode)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})
}
