/*
Package server manages the HTTP/HTTPS server lifecycle: non blocking start,
graceful shutdown and system signal handling.

# Overview

Manager wraps net/http.Server and owns listening, serving, shutdown and
error propagation. It supports plain HTTP and TLS start modes and handles
SIGINT/SIGTERM for graceful stops in production.

# Capabilities

  - Non blocking start: Start/StartTLS serve from a background goroutine.
  - Graceful shutdown: Shutdown drains requests within the configured
    timeout.
  - Signal handling: WaitForShutdown blocks on SIGINT/SIGTERM and then
    triggers a graceful shutdown.
  - Error propagation: Errors() exposes asynchronous serve failures.
  - State queries: IsRunning/Addr report the current state and address.
*/
package server
