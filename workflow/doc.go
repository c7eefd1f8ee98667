/*
Package workflow implements the research pipeline engine.

A pipeline is a directed graph of named steps operating on a shared State.
Each step wraps one agent call (query refinement, research, synthesis, fact
checking, data and code analysis, citation building) and records expected
failures on the state
instead of returning them; edge conditions inspect the accumulated errors to
route the run toward the end or failed terminal. Every step executes at most
once per run and later steps observe the post-conditions of all prior steps.

The Orchestrator drives a graph end to end and converts every failure mode,
including panics in agent code, into an Outcome that is written into the task
registry. A pipeline fault never escapes to the HTTP layer.

Typical wiring:

	graph, err := workflow.NewPipeline(agents, cfg, logger)
	orch := workflow.NewOrchestrator(graph, logger)
	outcome := orch.Execute(ctx, "impact of solar storms on satellites")
*/
package workflow
