// Package llm defines the provider abstraction for chat completion backends.
// Agents depend only on the Provider interface; concrete backends live in
// subpackages.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a provider-independent completion request.
type ChatRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float32   `json:"temperature,omitempty"`
	TopP        float32   `json:"top_p,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
}

// Usage reports token consumption as counted by the backend.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the completed answer.
type ChatResponse struct {
	ID           string `json:"id,omitempty"`
	Model        string `json:"model,omitempty"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
}

// HealthStatus is the result of a provider health probe.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// Provider is a chat completion backend.
type Provider interface {
	Name() string
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}

// ErrorCode classifies provider failures.
type ErrorCode string

const (
	ErrUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrForbidden       ErrorCode = "FORBIDDEN"
	ErrRateLimited     ErrorCode = "RATE_LIMITED"
	ErrQuotaExceeded   ErrorCode = "QUOTA_EXCEEDED"
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"
	ErrModelOverloaded ErrorCode = "MODEL_OVERLOADED"
	ErrUpstreamError   ErrorCode = "UPSTREAM_ERROR"
)

// Error is a structured provider failure.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Code, e.Message)
}

// IsRetryable reports whether err is a provider error marked retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}
