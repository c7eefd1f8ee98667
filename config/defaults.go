package config

import (
	"github.com/BaSui01/deepresearch/agents"
	"github.com/BaSui01/deepresearch/internal/jobs"
	"github.com/BaSui01/deepresearch/internal/ratelimit"
	"github.com/BaSui01/deepresearch/internal/server"
	"github.com/BaSui01/deepresearch/internal/task"
	"github.com/BaSui01/deepresearch/internal/urlguard"
	"github.com/BaSui01/deepresearch/llm/openai"
	"github.com/BaSui01/deepresearch/workflow"
)

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:       server.DefaultConfig(),
		RateLimit:    ratelimit.DefaultConfig(),
		Registry:     DefaultRegistryConfig(),
		Jobs:         jobs.DefaultConfig(),
		Pipeline:     workflow.DefaultPipelineConfig(),
		Research:     agents.DefaultResearchConfig(),
		Synthesis:    agents.DefaultSynthesisConfig(),
		Refine:       agents.DefaultRefineConfig(),
		FactCheck:    agents.DefaultFactCheckConfig(),
		DataAnalysis: agents.DefaultDataAnalysisConfig(),
		CodeAnalysis: agents.DefaultCodeAnalysisConfig(),
		LLM:          openai.Config{},
		URLGuard:     DefaultURLGuardConfig(),
		Log:          DefaultLogConfig(),
		Metrics:      DefaultMetricsConfig(),
		Telemetry:    DefaultTelemetryConfig(),
	}
}

// DefaultRegistryConfig returns the in-memory registry backend.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Backend: "memory",
		Redis:   task.DefaultRedisConfig(),
	}
}

// DefaultURLGuardConfig returns an empty config; the validator falls back
// to its built-in allowlist and blocklists.
func DefaultURLGuardConfig() urlguard.Config {
	return urlguard.Config{}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultMetricsConfig returns the default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Addr:      ":9090",
		Namespace: "deepresearch",
	}
}

// DefaultTelemetryConfig returns telemetry disabled.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "deepresearch",
		SampleRate:   0.1,
	}
}
