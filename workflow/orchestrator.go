package workflow

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Pipeline run outcomes as stored in the task registry.
const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Outcome is the terminal result of a pipeline run. It is always produced,
// whatever happened inside the run.
type Outcome struct {
	Status       string
	TerminalStep string
	State        *State
	Reason       string // set when Status is StatusError
}

// TaskSink receives terminal pipeline outcomes. Implemented by the task
// registry.
type TaskSink interface {
	Complete(ctx context.Context, taskID string, state *State) error
	Fail(ctx context.Context, taskID string, reason string) error
}

// Orchestrator drives a pipeline graph end to end and absorbs every failure
// mode into an Outcome. It never lets a pipeline fault escape to its caller:
// step contract violations, graph wiring errors and panics inside agent code
// all degrade to an error outcome.
type Orchestrator struct {
	graph  *Graph
	logger *zap.Logger
}

func NewOrchestrator(graph *Graph, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		graph:  graph,
		logger: logger.With(zap.String("component", "orchestrator")),
	}
}

// Execute runs the pipeline for query and returns its outcome. The returned
// outcome is never nil.
func (o *Orchestrator) Execute(ctx context.Context, query string) (outcome *Outcome) {
	state := NewState(query)

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline panicked",
				zap.Any("panic", r),
				zap.String("step", state.CurrentStep),
			)
			outcome = &Outcome{
				Status:       StatusError,
				TerminalStep: StepFailed,
				State:        state,
				Reason:       fmt.Sprintf("internal error in step %s", state.CurrentStep),
			}
		}
	}()

	terminal, err := o.graph.Run(ctx, state)
	if err != nil {
		o.logger.Error("pipeline aborted",
			zap.Error(err),
			zap.String("step", state.CurrentStep),
		)
		return &Outcome{
			Status:       StatusError,
			TerminalStep: StepFailed,
			State:        state,
			Reason:       err.Error(),
		}
	}

	if terminal == StepFailed || state.Failed() || state.SynthesisResult == nil {
		reason := "pipeline did not produce a result"
		if len(state.Errors) > 0 {
			reason = strings.Join(state.Errors, "; ")
		}
		o.logger.Warn("pipeline failed",
			zap.String("terminal", terminal),
			zap.Strings("errors", state.Errors),
		)
		return &Outcome{
			Status:       StatusError,
			TerminalStep: StepFailed,
			State:        state,
			Reason:       reason,
		}
	}

	o.logger.Info("pipeline completed",
		zap.Int("research_results", len(state.ResearchResults)),
		zap.Float64("confidence", state.SynthesisResult.ConfidenceScore),
	)
	return &Outcome{
		Status:       StatusCompleted,
		TerminalStep: terminal,
		State:        state,
	}
}

// ExecuteTask runs the pipeline for a registered task and writes the terminal
// status into sink. Registry write failures are logged; there is nothing the
// pipeline can do about them at this point.
func (o *Orchestrator) ExecuteTask(ctx context.Context, sink TaskSink, taskID, query string) {
	outcome := o.Execute(ctx, query)

	var err error
	switch outcome.Status {
	case StatusCompleted:
		err = sink.Complete(ctx, taskID, outcome.State)
	default:
		err = sink.Fail(ctx, taskID, outcome.Reason)
	}
	if err != nil {
		o.logger.Error("failed to record task outcome",
			zap.String("task_id", taskID),
			zap.String("status", outcome.Status),
			zap.Error(err),
		)
	}
}
