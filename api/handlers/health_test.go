package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/deepresearch/llm"
)

type stubProvider struct {
	name string
	err  error
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: "ok"}, nil
}

func (p *stubProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

func TestHealthHandler_HandleHealth(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/health", nil)

	handler.HandleHealth(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.False(t, status.Timestamp.IsZero())
}

func TestHealthHandler_HandleHealthz(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	handler.HandleHealthz(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthHandler_HandleReady_NoChecks(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/ready", nil)

	handler.HandleReady(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
}

func TestHealthHandler_HandleReady_AllPassing(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())
	handler.RegisterCheck(NewPingHealthCheck("registry", func(ctx context.Context) error {
		return nil
	}))
	handler.RegisterCheck(NewProviderHealthCheck(&stubProvider{name: "openai"}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/ready", nil)

	handler.HandleReady(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.Len(t, status.Checks, 2)
	assert.Equal(t, "pass", status.Checks["registry"].Status)
	assert.Equal(t, "pass", status.Checks["openai"].Status)
}

func TestHealthHandler_HandleReady_FailingCheck(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())
	handler.RegisterCheck(NewPingHealthCheck("registry", func(ctx context.Context) error {
		return errors.New("connection refused")
	}))
	handler.RegisterCheck(NewProviderHealthCheck(&stubProvider{name: "openai"}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/ready", nil)

	handler.HandleReady(w, r)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "fail", status.Checks["registry"].Status)
	assert.Equal(t, "connection refused", status.Checks["registry"].Message)
	assert.Equal(t, "pass", status.Checks["openai"].Status)
}

func TestHealthHandler_HandleReady_ProviderDown(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())
	handler.RegisterCheck(NewProviderHealthCheck(&stubProvider{
		name: "openai",
		err:  errors.New("401 unauthorized"),
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/ready", nil)

	handler.HandleReady(w, r)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "fail", status.Checks["openai"].Status)
}

func TestHealthHandler_HandleVersion(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/version", nil)

	handler.HandleVersion("1.2.3", "2026-01-01T00:00:00Z", "abc1234")(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var info map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "2026-01-01T00:00:00Z", info["build_time"])
	assert.Equal(t, "abc1234", info["git_commit"])
}
