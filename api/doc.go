// Package api defines the wire types of the research HTTP API.
//
// # API Overview
//
// The service exposes a submit/poll/fetch protocol:
//
//	POST /research          submit a query, returns {task_id, status}
//	GET  /status/{task_id}  poll until the task reaches a terminal status
//	GET  /results/{task_id} fetch the full result of a completed task
//
// Clients branch on the status field, not on HTTP status codes, to learn
// about pipeline level failure: a failed task answers 200 on the status
// endpoint with status "failed" and an error message.
//
// Rate limited requests are rejected with HTTP 429 and a body of
// {"detail": message, "type": "rate_limit_exceeded"}.
package api
