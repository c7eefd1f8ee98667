/*
Package main provides the deepresearch server executable.

# Overview

cmd/deepresearch is the service entry point. It loads YAML configuration
with environment overrides, wires the task registry, the research pipeline
and the background runner, and serves the submit/poll/fetch HTTP API with a
separate Prometheus metrics listener.

# Core types

  - Server      - assembles every component and manages startup and shutdown
  - Middleware  - HTTP middleware signature func(http.Handler) http.Handler

# Capabilities

  - Subcommands: serve, version, health
  - Middleware chain: Recovery, RequestID, SecurityHeaders, RequestLogger,
    CORS, MetricsMiddleware, OTelTracing, ClientRateLimit (per client IP)
  - Metrics server: /metrics on its own port (Prometheus)
  - Graceful shutdown: signal wait, stop ingress, drain runner, close
    registry and telemetry
  - Build injection: Version, BuildTime, GitCommit via ldflags
*/
package main
