package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/specialistvlad/monogrid/internal/ctxlog"
	"github.com/specialistvlad/monogrid/internal/orchestrator"
	"github.com/specialistvlad/monogrid/internal/scheduler"
	"github.com/specialistvlad/monogrid/internal/taskgraph"
)

// Run executes the requested target across the selected projects.
func (a *App) Run(ctx context.Context, cfg *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "target", cfg.Target)

	selected, err := a.selectProjects(cfg)
	if err != nil {
		return err
	}

	requests := make([]taskgraph.Request, 0, len(selected))
	for _, name := range selected {
		requests = append(requests, taskgraph.Request{
			Project:       name,
			Target:        cfg.Target,
			Configuration: cfg.Configuration,
			Overrides:     cfg.Overrides,
		})
	}

	resp, err := a.orch.Run(ctx, orchestrator.Request{
		Targets: requests,
		Build:   taskgraph.BuildOptions{IncludeDynamicEdges: cfg.IncludeDynamicDeps},
		Run: scheduler.Options{
			MaxParallelism:  cfg.Parallel,
			ContinueOnError: cfg.ContinueOnError,
			SkipCache:       cfg.SkipCache,
		},
		DryRun: cfg.DryRun,
	})
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if cfg.DryRun {
		serialized, err := resp.TaskGraph.Serialize()
		if err != nil {
			return fmt.Errorf("serializing task graph: %w", err)
		}
		fmt.Fprintln(a.outW, string(serialized))
		return nil
	}

	failed := a.printSummary(resp)
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", failed, len(resp.Outcomes))
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}

// selectProjects resolves the project list for the run: the explicitly named
// ones, or every project declaring the target.
func (a *App) selectProjects(cfg *Config) ([]string, error) {
	if len(cfg.Projects) > 0 {
		for _, name := range cfg.Projects {
			node, ok := a.projects.Nodes[name]
			if !ok {
				return nil, fmt.Errorf("unknown project %q", name)
			}
			if _, ok := node.Targets[cfg.Target]; !ok {
				return nil, fmt.Errorf("project %q has no target %q", name, cfg.Target)
			}
		}
		return cfg.Projects, nil
	}

	var selected []string
	for _, name := range a.projects.ProjectNames() {
		if _, ok := a.projects.Nodes[name].Targets[cfg.Target]; ok {
			selected = append(selected, name)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no project declares target %q", cfg.Target)
	}
	return selected, nil
}

// printSummary writes one line per task outcome and returns the failure count.
func (a *App) printSummary(resp *orchestrator.Response) int {
	ids := make([]string, 0, len(resp.Outcomes))
	for id := range resp.Outcomes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	failed := 0
	for _, id := range ids {
		outcome := resp.Outcomes[id]
		switch outcome.Status {
		case scheduler.StatusFailed:
			failed++
			fmt.Fprintf(a.outW, "✖ %s  failed: %s\n", id, outcome.Error)
		case scheduler.StatusSkipped:
			fmt.Fprintf(a.outW, "- %s  skipped: %s\n", id, outcome.Error)
		case scheduler.StatusCached:
			fmt.Fprintf(a.outW, "✔ %s  (from cache)\n", id)
		case scheduler.StatusStarted:
			fmt.Fprintf(a.outW, "✔ %s  (continuous)\n", id)
		default:
			fmt.Fprintf(a.outW, "✔ %s  (%s)\n", id, outcome.Duration.Round(time.Millisecond))
		}
	}
	fmt.Fprintf(a.outW, "\n%d tasks, %d failed\n", len(ids), failed)
	return failed
}
