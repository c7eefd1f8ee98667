package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Registry.Backend)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  addr: ":8888"
  read_timeout: 60s

rate_limit:
  requests_per_minute: 120
  burst_limit: 20
  block_duration: 10m

registry:
  backend: "redis"
  redis:
    addr: "redis.example.com:6379"
    password: "secret"
    db: 1

research:
  max_results: 10
  search_depth: "basic"

pipeline:
  enable_fact_check: false

log:
  level: "debug"
  format: "console"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// YAML values override defaults.
	assert.Equal(t, ":8888", cfg.Server.Addr)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, 120, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 20, cfg.RateLimit.BurstLimit)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.BlockDuration)

	assert.Equal(t, "redis", cfg.Registry.Backend)
	assert.Equal(t, "redis.example.com:6379", cfg.Registry.Redis.Addr)
	assert.Equal(t, "secret", cfg.Registry.Redis.Password)
	assert.Equal(t, 1, cfg.Registry.Redis.DB)

	assert.Equal(t, 10, cfg.Research.MaxResults)
	assert.Equal(t, "basic", cfg.Research.SearchDepth)

	assert.False(t, cfg.Pipeline.EnableFactCheck)
	assert.True(t, cfg.Pipeline.EnableCitations) // untouched default

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	envVars := map[string]string{
		"SERVER_ADDR":                   ":7777",
		"REGISTRY_BACKEND":              "redis",
		"REDIS_ADDR":                    "env-redis:6379",
		"TAVILY_API_KEY":                "env-tavily-key",
		"OPENAI_API_KEY":                "env-openai-key",
		"OPENAI_MODEL":                  "gpt-4o",
		"RATELIMIT_REQUESTS_PER_MINUTE": "30",
		"RESEARCH_TIMEOUT":              "45s",
		"SYNTHESIS_TEMPERATURE":         "0.7",
		"PIPELINE_ENABLE_CITATIONS":     "false",
		"LOG_LEVEL":                     "warn",
		"LOG_OUTPUT_PATHS":              "stdout, /var/log/deepresearch.log",
	}

	for k, v := range envVars {
		t.Setenv(k, v)
	}

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, "redis", cfg.Registry.Backend)
	assert.Equal(t, "env-redis:6379", cfg.Registry.Redis.Addr)
	assert.Equal(t, "env-tavily-key", cfg.Research.APIKey)
	assert.Equal(t, "env-openai-key", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 45*time.Second, cfg.Research.Timeout)
	assert.InDelta(t, 0.7, cfg.Synthesis.Temperature, 0.001)
	assert.False(t, cfg.Pipeline.EnableCitations)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{"stdout", "/var/log/deepresearch.log"}, cfg.Log.OutputPaths)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  addr: ":8888"
log:
  level: "debug"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	t.Setenv("LOG_LEVEL", "error")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, ":8888", cfg.Server.Addr) // from YAML
	assert.Equal(t, "error", cfg.Log.Level)   // env wins
}

func TestLoader_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath("/nonexistent/config.yaml").
		Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoader_MalformedYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [not a map"), 0644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("RATELIMIT_REQUESTS_PER_MINUTE", "not-a-number")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATELIMIT_REQUESTS_PER_MINUTE")
}

func TestLoader_WithValidator(t *testing.T) {
	called := false
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			called = true
			return nil
		}).
		Load()
	require.NoError(t, err)
	assert.True(t, called)
}

// --- Validate ---

func TestConfig_Validate_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "empty addr",
			mutate: func(c *Config) { c.Server.Addr = "" },
			want:   "server addr",
		},
		{
			name:   "tls cert without key",
			mutate: func(c *Config) { c.Server.TLSCertFile = "cert.pem" },
			want:   "tls_cert_file and tls_key_file",
		},
		{
			name:   "unknown registry backend",
			mutate: func(c *Config) { c.Registry.Backend = "etcd" },
			want:   "registry backend",
		},
		{
			name:   "zero rate limit",
			mutate: func(c *Config) { c.RateLimit.RequestsPerMinute = 0 },
			want:   "requests_per_minute",
		},
		{
			name:   "negative max results",
			mutate: func(c *Config) { c.Research.MaxResults = -1 },
			want:   "max_results",
		},
		{
			name:   "temperature out of range",
			mutate: func(c *Config) { c.Synthesis.Temperature = 3 },
			want:   "temperature",
		},
		{
			name:   "zero workers",
			mutate: func(c *Config) { c.Jobs.MaxWorkers = 0 },
			want:   "max_workers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
