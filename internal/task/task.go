// Package task provides the registry that tracks research tasks from
// submission to their terminal state. Two implementations exist: an in-memory
// registry for single-instance deployments and a Redis-backed one for
// deployments where tasks must survive restarts or be shared across replicas.
package task

import (
	"context"
	"time"

	"github.com/BaSui01/deepresearch/workflow"
)

// Task statuses. A task moves from StatusProcessing to exactly one of the
// terminal statuses and never changes again.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Result is the stored outcome of a completed task, the full payload served
// by the results endpoint.
type Result struct {
	Status          string                       `json:"status"`
	ResearchResults []workflow.ResearchResult    `json:"research_results"`
	SynthesisResult *workflow.SynthesisResult    `json:"synthesis_result"`
	FactCheck       *workflow.FactCheckResult    `json:"fact_check,omitempty"`
	DataAnalysis    *workflow.DataAnalysisResult `json:"data_analysis,omitempty"`
	CodeAnalysis    *workflow.CodeAnalysisResult `json:"code_analysis,omitempty"`
	Citations       []workflow.Citation          `json:"citations,omitempty"`
	Errors          []string                     `json:"errors"`
}

// Condensed is the compact view of a result embedded in status responses.
type Condensed struct {
	Summary         string   `json:"summary"`
	KeyPoints       []string `json:"key_points"`
	Sources         []string `json:"sources"`
	ConfidenceScore float64  `json:"confidence_score"`
}

// Condensed returns the compact view of the result.
func (r *Result) Condensed() *Condensed {
	c := &Condensed{
		KeyPoints: make([]string, 0),
		Sources:   make([]string, 0),
	}
	if s := r.SynthesisResult; s != nil {
		c.Summary = s.Summary
		c.ConfidenceScore = s.ConfidenceScore
		if s.KeyPoints != nil {
			c.KeyPoints = s.KeyPoints
		}
		if s.Sources != nil {
			c.Sources = s.Sources
		}
	}
	return c
}

// NewResult builds a stored result from a completed pipeline state.
func NewResult(state *workflow.State) *Result {
	r := &Result{
		Status:          StatusCompleted,
		ResearchResults: make([]workflow.ResearchResult, 0),
		SynthesisResult: state.SynthesisResult,
		FactCheck:       state.FactCheckResult,
		DataAnalysis:    state.DataAnalysis,
		CodeAnalysis:    state.CodeAnalysis,
		Errors:          make([]string, 0),
	}
	if state.ResearchResults != nil {
		r.ResearchResults = state.ResearchResults
	}
	if state.Errors != nil {
		r.Errors = state.Errors
	}
	if state.Citations != nil {
		r.Citations = state.Citations.Citations
	}
	return r
}

// Record is one tracked task.
type Record struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Status    string    `json:"status"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the record has reached a terminal status.
func (r *Record) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// Registry tracks tasks. Complete and Fail write a terminal status exactly
// once; a second terminal write for the same task is rejected. Get returns a
// copy of the record, so callers can not mutate registry state.
type Registry interface {
	// Create registers a new task for query and returns its record with a
	// fresh ID and StatusProcessing.
	Create(ctx context.Context, query string) (*Record, error)

	// Get returns the record for id, or a TASK_NOT_FOUND error.
	Get(ctx context.Context, id string) (*Record, error)

	// Complete writes the completed terminal status with the pipeline result.
	Complete(ctx context.Context, id string, state *workflow.State) error

	// Fail writes the error terminal status with reason.
	Fail(ctx context.Context, id string, reason string) error
}
