/*
Package handlers implements the HTTP request handlers of the research API.

# Core types

  - ResearchHandler   - submit/poll/fetch endpoints for research tasks
  - HealthHandler     - liveness and readiness probes (/health, /healthz, /ready)
  - Scheduler         - hand-off boundary to the background job runner
  - ResponseWriter    - wraps http.ResponseWriter to capture the status code

# Capabilities

  - Response helpers: WriteJSON / WriteDetail / WriteErrorMessage / WriteError
  - Request validation: DecodeJSONBody (1 MB limit, strict field checking)
  - ErrorCode to HTTP status mapping for types.Error values
  - Pluggable readiness checks: RegisterCheck with ping and provider checks
*/
package handlers
