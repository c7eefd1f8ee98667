// Package config loads the service configuration from defaults, an optional
// YAML file and environment variable overrides, in that order.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    Load()
//
// Each leaf field's env tag names the full environment variable that
// overrides it (for example TAVILY_API_KEY).
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/deepresearch/agents"
	"github.com/BaSui01/deepresearch/internal/jobs"
	"github.com/BaSui01/deepresearch/internal/ratelimit"
	"github.com/BaSui01/deepresearch/internal/server"
	"github.com/BaSui01/deepresearch/internal/task"
	"github.com/BaSui01/deepresearch/internal/urlguard"
	"github.com/BaSui01/deepresearch/llm/openai"
	"github.com/BaSui01/deepresearch/workflow"
)

// Config is the complete service configuration.
type Config struct {
	Server       server.Config             `yaml:"server"`
	RateLimit    ratelimit.Config          `yaml:"rate_limit"`
	Registry     RegistryConfig            `yaml:"registry"`
	Jobs         jobs.Config               `yaml:"jobs"`
	Pipeline     workflow.PipelineConfig   `yaml:"pipeline"`
	Research     agents.ResearchConfig     `yaml:"research"`
	Synthesis    agents.SynthesisConfig    `yaml:"synthesis"`
	Refine       agents.RefineConfig       `yaml:"refine"`
	FactCheck    agents.FactCheckConfig    `yaml:"fact_check"`
	DataAnalysis agents.DataAnalysisConfig `yaml:"data_analysis"`
	CodeAnalysis agents.CodeAnalysisConfig `yaml:"code_analysis"`
	LLM          openai.Config             `yaml:"llm"`
	URLGuard     urlguard.Config           `yaml:"url_guard"`
	Log          LogConfig                 `yaml:"log"`
	Metrics      MetricsConfig             `yaml:"metrics"`
	Telemetry    TelemetryConfig           `yaml:"telemetry"`
}

// RegistryConfig selects the task registry backend.
type RegistryConfig struct {
	// Backend is "memory" or "redis".
	Backend string           `yaml:"backend" env:"REGISTRY_BACKEND"`
	Redis   task.RedisConfig `yaml:"redis"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LOG_LEVEL"`
	// Format is json or console.
	Format           string   `yaml:"format" env:"LOG_FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"LOG_OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"LOG_ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"LOG_ENABLE_STACKTRACE"`
}

// MetricsConfig configures Prometheus metrics exposure.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"METRICS_ENABLED"`
	Addr      string `yaml:"addr" env:"METRICS_ADDR"`
	Namespace string `yaml:"namespace" env:"METRICS_NAMESPACE"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"TELEMETRY_ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"TELEMETRY_OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"TELEMETRY_SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"TELEMETRY_SAMPLE_RATE"`
}

// Loader loads configuration with a builder style API.
type Loader struct {
	configPath string
	validators []func(*Config) error
}

// NewLoader creates a loader.
func NewLoader() *Loader {
	return &Loader{
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithValidator appends a validation function run after loading.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves the configuration. Precedence: defaults, then the YAML
// file if present, then environment variables.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Missing file falls back to defaults.
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return setFieldsFromEnv(reflect.ValueOf(cfg).Elem())
}

// setFieldsFromEnv walks the struct and overrides every leaf field whose
// env tag names a set environment variable. Nested structs are visited
// whether or not they carry a tag themselves.
func setFieldsFromEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			if err := setFieldsFromEnv(field); err != nil {
				return err
			}
			continue
		}

		envKey := fieldType.Tag.Get("env")
		if envKey == "" || envKey == "-" {
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// time.Duration accepts values like "30s".
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// Comma separated string slices.
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// MustLoad loads the configuration or panics.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads the configuration from defaults and environment
// variables only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server addr must not be empty")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, "tls_cert_file and tls_key_file must be set together")
	}

	switch c.Registry.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Sprintf("unknown registry backend %q", c.Registry.Backend))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, "rate limit requests_per_minute must be positive")
	}
	if c.RateLimit.BurstLimit <= 0 {
		errs = append(errs, "rate limit burst_limit must be positive")
	}

	if c.Research.MaxResults <= 0 {
		errs = append(errs, "research max_results must be positive")
	}
	if c.Synthesis.Temperature < 0 || c.Synthesis.Temperature > 2 {
		errs = append(errs, "synthesis temperature must be between 0 and 2")
	}
	if c.Jobs.MaxWorkers <= 0 {
		errs = append(errs, "jobs max_workers must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
