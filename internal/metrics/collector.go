// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and records the service's Prometheus metrics. All
// metrics share one namespace and are registered through promauto on the
// default registry.
type Collector struct {
	// HTTP metrics.
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Task lifecycle metrics.
	tasksSubmitted *prometheus.CounterVec
	tasksFinished  *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
	tasksInFlight  prometheus.Gauge

	// Pipeline step metrics.
	stepExecutionsTotal *prometheus.CounterVec
	stepDuration        *prometheus.HistogramVec

	// Upstream call metrics.
	upstreamRequestsTotal   *prometheus.CounterVec
	upstreamRequestDuration *prometheus.HistogramVec
	llmTokensUsed           *prometheus.CounterVec

	// Rate limiting metrics.
	rateLimitRejections *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a collector with all metric vectors registered under
// the given namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP metrics.
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Task lifecycle metrics.
	c.tasksSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_submitted_total",
			Help:      "Total number of research tasks accepted",
		},
		[]string{"registry"},
	)

	c.tasksFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Total number of research tasks that reached a terminal status",
		},
		[]string{"status"},
	)

	c.taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "End to end research task duration in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	c.tasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_in_flight",
			Help:      "Number of research tasks currently executing",
		},
	)

	// Pipeline step metrics.
	c.stepExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_step_executions_total",
			Help:      "Total number of pipeline step executions",
		},
		[]string{"step", "status"},
	)

	c.stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_step_duration_seconds",
			Help:      "Pipeline step duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"step"},
	)

	// Upstream call metrics.
	c.upstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of upstream search and model requests",
		},
		[]string{"upstream", "status"},
	)

	c.upstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"upstream"},
	)

	c.llmTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	// Rate limiting metrics.
	c.rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
		[]string{"reason"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordTaskSubmitted records one accepted research task.
func (c *Collector) RecordTaskSubmitted(registry string) {
	c.tasksSubmitted.WithLabelValues(registry).Inc()
	c.tasksInFlight.Inc()
}

// RecordTaskFinished records one task reaching a terminal status.
func (c *Collector) RecordTaskFinished(status string, duration time.Duration) {
	c.tasksFinished.WithLabelValues(status).Inc()
	c.taskDuration.WithLabelValues(status).Observe(duration.Seconds())
	c.tasksInFlight.Dec()
}

// RecordStepExecution records one pipeline step execution.
func (c *Collector) RecordStepExecution(step, status string, duration time.Duration) {
	c.stepExecutionsTotal.WithLabelValues(step, status).Inc()
	c.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordUpstreamRequest records one search engine or model provider call.
func (c *Collector) RecordUpstreamRequest(upstream, status string, duration time.Duration) {
	c.upstreamRequestsTotal.WithLabelValues(upstream, status).Inc()
	c.upstreamRequestDuration.WithLabelValues(upstream).Observe(duration.Seconds())
}

// RecordLLMTokens records token usage for one model call.
func (c *Collector) RecordLLMTokens(provider, model string, promptTokens, completionTokens int) {
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// RecordRateLimitRejection records one request rejected by the rate limiter.
// The reason is one of "blocked", "burst" or "window".
func (c *Collector) RecordRateLimitRejection(reason string) {
	c.rateLimitRejections.WithLabelValues(reason).Inc()
}

// statusCode buckets an HTTP status code into a class label.
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
