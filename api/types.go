package api

import "github.com/BaSui01/deepresearch/internal/task"

// ResearchRequest is the body of a task submission.
type ResearchRequest struct {
	Query string `json:"query"`
}

// TaskResponse acknowledges an accepted task.
type TaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// StatusResponse is the polling view of a task. Result is present only for
// completed tasks, Error only for failed ones.
type StatusResponse struct {
	Status string          `json:"status"`
	Result *task.Condensed `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ErrorResponse is the rejection shape of the submission endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DetailResponse is the error shape of the status and results endpoints.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// RateLimitResponse is the body of a rate limited rejection.
type RateLimitResponse struct {
	Detail string `json:"detail"`
	Type   string `json:"type"`
}
