package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEmpty(t, cfg.Server.Addr)
	assert.NotZero(t, cfg.RateLimit.RequestsPerMinute)
	assert.NotEmpty(t, cfg.Registry.Backend)
	assert.NotZero(t, cfg.Jobs.MaxWorkers)
	assert.NotZero(t, cfg.Research.MaxResults)
	assert.NotZero(t, cfg.Synthesis.MaxTokens)
	assert.NotEmpty(t, cfg.Log.Level)
	assert.NotEmpty(t, cfg.Metrics.Namespace)
	assert.NotEmpty(t, cfg.Telemetry.ServiceName)
}

func TestDefaultRegistryConfig(t *testing.T) {
	cfg := DefaultRegistryConfig()
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "deepresearch:task:", cfg.Redis.KeyPrefix)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
	assert.True(t, cfg.EnableCaller)
	assert.False(t, cfg.EnableStacktrace)
}

func TestDefaultMetricsConfig(t *testing.T) {
	cfg := DefaultMetricsConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "deepresearch", cfg.Namespace)
}

func TestDefaultTelemetryConfig(t *testing.T) {
	cfg := DefaultTelemetryConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.Equal(t, "deepresearch", cfg.ServiceName)
	assert.InDelta(t, 0.1, cfg.SampleRate, 0.001)
}

func TestDefaultPipelineBranchesEnabled(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Pipeline.EnableQueryRefinement)
	assert.True(t, cfg.Pipeline.EnableFactCheck)
	assert.True(t, cfg.Pipeline.EnableDataAnalysis)
	assert.True(t, cfg.Pipeline.EnableCodeAnalysis)
	assert.True(t, cfg.Pipeline.EnableCitations)
}
