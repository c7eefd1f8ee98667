package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/deepresearch/types"
	"go.uber.org/zap"
)

// Step is a single unit of pipeline work: one external agent call plus its
// state-mapping logic. Run mutates the passed state in place. A returned error
// is a programming-contract violation, not a pipeline failure. Expected
// failures (upstream errors, empty results) are recorded via State.AddError
// and routed by the graph's edge conditions.
type Step interface {
	Name() string
	Run(ctx context.Context, state *State) error
}

// EdgeCondition decides whether an outgoing edge may be taken.
type EdgeCondition func(*State) bool

// WhenHealthy holds while no step has recorded an error.
func WhenHealthy(s *State) bool { return !s.Failed() }

// Always holds unconditionally. Declared last among a node's edges it acts as
// the fallback route.
func Always(*State) bool { return true }

// Edge is a conditional transition to a named step or terminal state.
type Edge struct {
	To   string
	When EdgeCondition
}

// StepObserver is notified after every step execution. status is "ok" when
// the step recorded no new errors, "error" otherwise.
type StepObserver func(step, status string, duration time.Duration)

// Graph is a directed graph of named steps with edge conditions evaluated
// against the accumulated pipeline state. The graph itself carries no run
// state: every Run gets its own visited set, so a single Graph instance is
// safe to share across concurrent runs.
type Graph struct {
	steps    map[string]Step
	edges    map[string][]Edge
	entry    string
	observer StepObserver
	logger   *zap.Logger
}

// NewGraph creates an empty graph.
func NewGraph(logger *zap.Logger) *Graph {
	return &Graph{
		steps:  make(map[string]Step),
		edges:  make(map[string][]Edge),
		logger: logger.With(zap.String("component", "workflow_graph")),
	}
}

// AddStep registers a step under its own name.
func (g *Graph) AddStep(step Step) {
	g.steps[step.Name()] = step
}

// AddEdge adds a conditional transition. Edges are evaluated in the order
// they were declared; the first condition that holds wins.
func (g *Graph) AddEdge(from, to string, when EdgeCondition) {
	g.edges[from] = append(g.edges[from], Edge{To: to, When: when})
}

// SetEntry designates the entry step.
func (g *Graph) SetEntry(name string) {
	g.entry = name
}

// SetObserver registers a step observer. Must be called before the first Run.
func (g *Graph) SetObserver(obs StepObserver) {
	g.observer = obs
}

// IsTerminal reports whether name denotes a terminal state.
func IsTerminal(name string) bool {
	return name == StepEnd || name == StepFailed
}

// Validate checks the graph is runnable: an entry step exists, every edge
// source is a registered step, and every edge target is a registered step or
// a terminal state.
func (g *Graph) Validate() error {
	if g.entry == "" {
		return fmt.Errorf("graph has no entry step")
	}
	if _, ok := g.steps[g.entry]; !ok {
		return fmt.Errorf("entry step not registered: %s", g.entry)
	}
	for from, edges := range g.edges {
		if _, ok := g.steps[from]; !ok {
			return fmt.Errorf("edge source not registered: %s", from)
		}
		if len(edges) == 0 {
			return fmt.Errorf("step %s has no outgoing edges", from)
		}
		for _, e := range edges {
			if IsTerminal(e.To) {
				continue
			}
			if _, ok := g.steps[e.To]; !ok {
				return fmt.Errorf("edge %s -> %s targets unknown step", from, e.To)
			}
		}
	}
	return nil
}

// Run drives the graph from the entry step to a terminal state and returns
// the terminal state's name. Each step executes at most once per run;
// revisiting a step is a contract violation and aborts the run with an error.
// Later steps observe exactly the post-conditions of all prior steps because
// the same *State flows through every invocation.
func (g *Graph) Run(ctx context.Context, state *State) (string, error) {
	if err := g.Validate(); err != nil {
		return "", err
	}

	visited := make(map[string]bool, len(g.steps))
	current := g.entry

	for !IsTerminal(current) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if visited[current] {
			return "", types.NewError(types.ErrStepReentry,
				fmt.Sprintf("step %s already executed in this run", current))
		}
		visited[current] = true

		step, ok := g.steps[current]
		if !ok {
			return "", fmt.Errorf("step not registered: %s", current)
		}

		state.CurrentStep = current
		g.logger.Debug("executing step", zap.String("step", current))

		errorsBefore := len(state.Errors)
		stepStart := time.Now()
		if err := step.Run(ctx, state); err != nil {
			return "", fmt.Errorf("step %s: %w", current, err)
		}
		if g.observer != nil {
			status := "ok"
			if len(state.Errors) > errorsBefore {
				status = "error"
			}
			g.observer(current, status, time.Since(stepStart))
		}

		next, err := g.nextState(current, state)
		if err != nil {
			return "", err
		}

		g.logger.Debug("step transition",
			zap.String("from", current),
			zap.String("to", next),
			zap.Int("errors", len(state.Errors)),
		)
		current = next
	}

	state.CurrentStep = current
	return current, nil
}

// nextState evaluates the outgoing edges of from in declaration order and
// returns the first whose condition holds.
func (g *Graph) nextState(from string, state *State) (string, error) {
	for _, e := range g.edges[from] {
		if e.When(state) {
			return e.To, nil
		}
	}
	return "", fmt.Errorf("no outgoing edge matched for step %s", from)
}
