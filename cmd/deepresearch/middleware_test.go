package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/deepresearch/api"
	"github.com/BaSui01/deepresearch/internal/ratelimit"
)

func TestSecurityHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := SecurityHeaders()(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}

func TestSecurityHeaders_ChainedWithOtherMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	handler := Chain(inner, SecurityHeaders(), RequestID())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	// SecurityHeaders should be present
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
	// RequestID should also be present
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestID_PreservesClientID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	})

	handler := RequestID()(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "req-caller-supplied")
	handler.ServeHTTP(w, r)

	assert.Equal(t, "req-caller-supplied", seen)
	assert.Equal(t, "req-caller-supplied", w.Header().Get("X-Request-ID"))
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/research", "/research"},
		{"/health", "/health"},
		{"/status/0b39cd6a-9d1f-4b2e-8f6a-2f1f7c8c9d10", "/status/:id"},
		{"/results/0b39cd6a-9d1f-4b2e-8f6a-2f1f7c8c9d10", "/results/:id"},
		{"/status/12345", "/status/:id"},
		{"/status/not-a-task-id", "/status/not-a-task-id"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.path), tt.path)
	}
}

func TestClientRateLimit_Rejects(t *testing.T) {
	logger := zap.NewNop()
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: 60,
		BurstLimit:        2,
	}, logger)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := ClientRateLimit(limiter, nil, logger)(inner)

	// Within the burst bound.
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/research", nil)
		r.RemoteAddr = "203.0.113.7:4242"
		handler.ServeHTTP(w, r)
		require.Equal(t, http.StatusOK, w.Code)
	}

	// Third request inside one second trips the burst limit.
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/research", nil)
	r.RemoteAddr = "203.0.113.7:4242"
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp api.RateLimitResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "rate_limit_exceeded", resp.Type)
	assert.Equal(t, "Too many requests in a short time. Please slow down.", resp.Detail)
}

func TestClientRateLimit_SkipPaths(t *testing.T) {
	logger := zap.NewNop()
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: 1,
		BurstLimit:        1,
	}, logger)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := ClientRateLimit(limiter, nil, logger)(inner)

	// Probes bypass the limiter no matter how often they fire.
	for i := 0; i < 10; i++ {
		for _, path := range []string{"/", "/health", "/healthz", "/metrics", "/docs"} {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, path, nil)
			r.RemoteAddr = "203.0.113.7:4242"
			handler.ServeHTTP(w, r)
			require.Equal(t, http.StatusOK, w.Code, path)
		}
	}
}

func TestClientRateLimit_PerClientIsolation(t *testing.T) {
	logger := zap.NewNop()
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: 60,
		BurstLimit:        1,
	}, logger)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := ClientRateLimit(limiter, nil, logger)(inner)

	// First client exhausts its burst allowance.
	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/research", nil)
		r.RemoteAddr = "203.0.113.7:4242"
		handler.ServeHTTP(w, r)
		require.Equal(t, want, w.Code, "request %d", i)
	}

	// A different client is unaffected.
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/research", nil)
	r.RemoteAddr = "198.51.100.9:4242"
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClientAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:4242"
	assert.Equal(t, "203.0.113.7", clientAddr(r))

	r.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")
	assert.Equal(t, "198.51.100.9", clientAddr(r))
}

func TestClientRateLimit_CooldownMessageAfterViolation(t *testing.T) {
	logger := zap.NewNop()
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: 60,
		BurstLimit:        1,
		BlockDuration:     2 * time.Minute,
	}, logger)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := ClientRateLimit(limiter, nil, logger)(inner)

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/research", nil)
		r.RemoteAddr = "203.0.113.7:4242"
		handler.ServeHTTP(w, r)
		return w
	}

	require.Equal(t, http.StatusOK, send().Code)
	require.Equal(t, http.StatusTooManyRequests, send().Code)

	// The violation above started a cooldown, so the next rejection carries
	// the countdown message instead of the burst one.
	w := send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var resp api.RateLimitResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Contains(t, resp.Detail, "Too many requests. Please try again in")
}

func TestCORS_AllowListedOrigin(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := CORS([]string{"https://app.example.com"})(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/research", nil)
	r.Header.Set("Origin", "https://app.example.com")
	handler.ServeHTTP(w, r)

	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_UnknownOrigin(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := CORS([]string{"https://app.example.com"})(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/research", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	handler.ServeHTTP(w, r)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler := Recovery(zap.NewNop())(inner)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/research", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
