// Package orchestrator is the pipeline facade: it builds the task graph,
// computes hash plans and drives the scheduler, reporting phase boundaries
// through an events.Emitter. It owns no policy of its own; every stage is a
// collaborator handed in at construction.
package orchestrator

import (
	"context"

	"github.com/specialistvlad/monogrid/internal/cache"
	"github.com/specialistvlad/monogrid/internal/ctxlog"
	"github.com/specialistvlad/monogrid/internal/events"
	"github.com/specialistvlad/monogrid/internal/hashplan"
	"github.com/specialistvlad/monogrid/internal/project"
	"github.com/specialistvlad/monogrid/internal/runner"
	"github.com/specialistvlad/monogrid/internal/scheduler"
	"github.com/specialistvlad/monogrid/internal/taskgraph"
	"github.com/specialistvlad/monogrid/internal/workspace"
)

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	projects *project.Graph
	ws       *workspace.Config
	store    cache.Store
	runner   runner.Runner
	emitter  events.Emitter
}

// New creates an orchestrator over the loaded workspace. A nil emitter
// defaults to the log-backed one.
func New(projects *project.Graph, ws *workspace.Config, store cache.Store, r runner.Runner, emitter events.Emitter) *Orchestrator {
	if emitter == nil {
		emitter = events.LogEmitter{}
	}
	return &Orchestrator{projects: projects, ws: ws, store: store, runner: r, emitter: emitter}
}

// Request is one pipeline invocation.
type Request struct {
	// Targets are the (project, target, configuration) tuples to expand.
	Targets []taskgraph.Request
	// Build tunes graph expansion.
	Build taskgraph.BuildOptions
	// Run tunes scheduling and caching.
	Run scheduler.Options
	// DryRun stops after hashing: the graph and plans are computed but
	// nothing executes.
	DryRun bool
}

// Response is the pipeline output. TaskGraph is always non-nil: fatal graph
// errors yield an empty graph next to a populated Error, and hashing and
// execution never run in that case.
type Response struct {
	TaskGraph *taskgraph.Graph             `json:"taskGraph"`
	Plans     map[string]*hashplan.Plan    `json:"plans,omitempty"`
	Warnings  []hashplan.Warning           `json:"warnings,omitempty"`
	Outcomes  map[string]scheduler.Outcome `json:"outcomes,omitempty"`
	Error     string                       `json:"error,omitempty"`
}

// Run executes the pipeline: graph build, hash planning, scheduling. The
// returned error is non-nil for fatal graph errors (mirrored in
// Response.Error) and for aborted runs; task-level failures are reported only
// through Outcomes.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Response, error) {
	logger := ctxlog.FromContext(ctx)
	resp := &Response{TaskGraph: taskgraph.NewEmptyGraph()}

	err := events.Measure(ctx, o.emitter, events.PhaseGraphBuild, func() error {
		graph, err := taskgraph.NewBuilder(o.projects, o.ws, req.Build).Build(ctx, req.Targets)
		if err != nil {
			return err
		}
		resp.TaskGraph = graph
		return nil
	})
	if err != nil {
		resp.Error = err.Error()
		return resp, err
	}

	err = events.Measure(ctx, o.emitter, events.PhaseHashPlan, func() error {
		plans, warnings, err := hashplan.NewPlanner(o.ws).Plan(ctx, resp.TaskGraph)
		if err != nil {
			return err
		}
		resp.Plans = plans
		resp.Warnings = warnings
		return nil
	})
	if err != nil {
		resp.Error = err.Error()
		return resp, err
	}
	for _, w := range resp.Warnings {
		logger.Warn("Hash planning warning.", "task", w.TaskID, "message", w.Message)
	}

	if req.DryRun {
		logger.Debug("Dry run requested, skipping execution.")
		return resp, nil
	}

	err = events.Measure(ctx, o.emitter, events.PhaseExecution, func() error {
		outcomes, err := scheduler.New(o.store, o.runner).Run(ctx, resp.TaskGraph, resp.Plans, req.Run)
		resp.Outcomes = outcomes
		return err
	})
	if err != nil {
		resp.Error = err.Error()
		return resp, err
	}
	return resp, nil
}
