/*
Package metrics provides Prometheus based metrics collection covering the
HTTP surface, the task lifecycle, pipeline steps, upstream calls and the
rate limiter.

# Overview

The package registers all metrics through a single Collector using the
promauto auto registration mechanism, so no manual Registry management is
needed. Metrics are isolated per namespace and grouped by labels for
dashboarding and alerting.

# Capabilities

  - HTTP metrics: request totals and latency, grouped by method/path with
    status codes bucketed into 2xx/3xx/4xx/5xx.
  - Task metrics: submitted and finished counters, end to end duration and
    an in flight gauge, grouped by terminal status.
  - Pipeline metrics: per step execution counts and durations.
  - Upstream metrics: search engine and model provider request counts,
    latencies and token usage.
  - Rate limiting metrics: rejection counts grouped by reason.
*/
package metrics
