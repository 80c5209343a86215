package taskgraph

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"

	"dario.cat/mergo"
	"github.com/specialistvlad/monogrid/internal/ctxlog"
	"github.com/specialistvlad/monogrid/internal/project"
	"github.com/specialistvlad/monogrid/internal/workspace"
)

// Request is one (project, target, configuration) tuple to expand, plus the
// CLI-level option overrides for that invocation.
type Request struct {
	Project       string
	Target        string
	Configuration string
	Overrides     map[string]any
}

// BuildOptions tune graph expansion.
type BuildOptions struct {
	// IncludeDynamicEdges makes dynamic project-graph edges participate in
	// `^target` expansion alongside static ones. Implicit edges never do.
	IncludeDynamicEdges bool
}

// Builder expands target requests into a task graph. A Builder is single-use:
// create one per Build call.
type Builder struct {
	projects *project.Graph
	ws       *workspace.Config
	opts     BuildOptions

	tasks    map[string]*Task
	deps     map[string][]string
	cdeps    map[string][]string
	visiting map[string]bool
	stack    []string
}

// NewBuilder creates a builder over the given project graph and workspace
// configuration. ws may be nil when no workspace-global settings apply.
func NewBuilder(projects *project.Graph, ws *workspace.Config, opts BuildOptions) *Builder {
	return &Builder{
		projects: projects,
		ws:       ws,
		opts:     opts,
		tasks:    make(map[string]*Task),
		deps:     make(map[string][]string),
		cdeps:    make(map[string][]string),
		visiting: make(map[string]bool),
	}
}

// Build expands every request and returns the complete task graph. Any
// graph-level problem (cycle, unknown project/target, unresolvable
// configuration) aborts the build; nothing is hashed or executed afterwards.
func (b *Builder) Build(ctx context.Context, requests []Request) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Task graph expansion started.", "request_count", len(requests))

	if err := b.projects.Validate(); err != nil {
		return nil, err
	}

	for _, req := range requests {
		if _, err := b.resolve(ctx, req.Project, req.Target, req.Configuration, req.Overrides, true); err != nil {
			return nil, err
		}
	}

	graph := &Graph{
		Tasks:                  b.tasks,
		Dependencies:           b.deps,
		ContinuousDependencies: b.cdeps,
		Roots:                  []string{},
	}
	for id := range b.tasks {
		if len(b.deps[id]) == 0 {
			graph.Roots = append(graph.Roots, id)
		}
	}
	sort.Strings(graph.Roots)

	logger.Debug("Task graph expansion complete.",
		"task_count", len(graph.Tasks), "root_count", len(graph.Roots))
	return graph, nil
}

// resolve returns the task id for the given tuple, creating the task and its
// transitive prerequisites on first sight. topLevel distinguishes a
// user-requested tuple (strict errors) from a transitively reached one
// (lenient configuration fallback).
func (b *Builder) resolve(ctx context.Context, projectName, targetName, configuration string, overrides map[string]any, topLevel bool) (string, error) {
	node, ok := b.projects.Nodes[projectName]
	if !ok {
		return "", &UnknownProjectError{Project: projectName}
	}
	target, ok := node.Targets[targetName]
	if !ok {
		return "", &UnknownTargetError{Project: projectName, Target: targetName}
	}

	configName, err := b.resolveConfiguration(projectName, targetName, target, configuration, topLevel)
	if err != nil {
		return "", err
	}

	id := MakeID(projectName, targetName, configName)
	if _, ok := b.tasks[id]; ok {
		// Structural sharing: diamonds collapse into the memoized task. A
		// task first reached transitively carries no overrides, so a direct
		// request for the same tuple re-layers its options; the dependency
		// lists are unaffected.
		if topLevel && len(overrides) > 0 {
			task, err := b.makeTask(id, projectName, targetName, configName, node, target, overrides)
			if err != nil {
				return "", err
			}
			b.tasks[id] = task
		}
		return id, nil
	}
	if b.visiting[id] {
		start := slices.Index(b.stack, id)
		path := append(slices.Clone(b.stack[start:]), id)
		return "", &CycleError{Path: path}
	}

	b.visiting[id] = true
	b.stack = append(b.stack, id)
	defer func() {
		delete(b.visiting, id)
		b.stack = b.stack[:len(b.stack)-1]
	}()

	task, err := b.makeTask(id, projectName, targetName, configName, node, target, overrides)
	if err != nil {
		return "", err
	}

	blocking, continuous, err := b.expandDependsOn(ctx, node, target, configuration)
	if err != nil {
		return "", err
	}

	b.tasks[id] = task
	b.deps[id] = dedupeSorted(blocking, id)
	b.cdeps[id] = dedupeSorted(continuous, id)
	return id, nil
}

// resolveConfiguration applies the fallback rules: a declared configuration
// is used as-is; an undeclared one falls back to the target's default; a
// configuration-specific top-level request with no fallback is an error,
// while transitive expansion degrades to the unconfigured task.
func (b *Builder) resolveConfiguration(projectName, targetName string, target *project.TargetConfiguration, requested string, topLevel bool) (string, error) {
	if requested != "" {
		if _, ok := target.Configurations[requested]; ok {
			return requested, nil
		}
	}
	if def := target.DefaultConfiguration; def != "" {
		if _, ok := target.Configurations[def]; ok {
			return def, nil
		}
	}
	if requested != "" && topLevel {
		return "", &MissingConfigurationError{Project: projectName, Target: targetName, Configuration: requested}
	}
	return "", nil
}

// makeTask assembles the flat task record, layering option sources from
// least to most specific: target options, configuration overrides, CLI
// overrides.
func (b *Builder) makeTask(id, projectName, targetName, configName string, node *project.Node, target *project.TargetConfiguration, overrides map[string]any) (*Task, error) {
	options := map[string]any{}
	maps.Copy(options, target.Options)
	if configName != "" {
		if err := mergo.Map(&options, target.Configurations[configName], mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("applying configuration %q to %s: %w", configName, id, err)
		}
	}
	if len(overrides) > 0 {
		if err := mergo.Map(&options, overrides, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("applying overrides to %s: %w", id, err)
		}
	}

	cacheable := target.Cacheable
	if !cacheable && b.ws != nil {
		cacheable = b.ws.IsCacheable(targetName)
	}

	return &Task{
		ID:            id,
		Project:       projectName,
		Target:        targetName,
		Configuration: configName,
		ProjectRoot:   node.Root,
		Executor:      target.Executor,
		Options:       options,
		Overrides:     overrides,
		Inputs:        target.Inputs,
		Env:           target.Env,
		Continuous:    target.Continuous,
		Cacheable:     cacheable,
	}, nil
}

// expandDependsOn resolves every dependsOn ref of the target into dependency
// task ids, split into blocking and continuous edge lists. An edge is
// continuous when the dependency task itself is continuous.
func (b *Builder) expandDependsOn(ctx context.Context, node *project.Node, target *project.TargetConfiguration, configuration string) (blocking, continuous []string, err error) {
	logger := ctxlog.FromContext(ctx)

	appendDep := func(depID string) {
		if b.tasks[depID].Continuous {
			continuous = append(continuous, depID)
			return
		}
		blocking = append(blocking, depID)
	}

	for _, raw := range target.DependsOn {
		ref, err := project.ParseRef(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid dependsOn entry on project %q: %w", node.Name, err)
		}

		switch ref.Kind {
		case project.RefSelf:
			depID, err := b.resolve(ctx, node.Name, ref.Target, configuration, nil, false)
			if err != nil {
				return nil, nil, err
			}
			appendDep(depID)

		case project.RefUpstream:
			for _, depProject := range b.projects.BuildDependenciesOf(node.Name, b.opts.IncludeDynamicEdges) {
				if _, ok := b.projects.Nodes[depProject].Targets[ref.Target]; !ok {
					// Not every dependency implements every target.
					logger.Debug("Dependency project lacks target, edge skipped.",
						"project", depProject, "target", ref.Target)
					continue
				}
				depID, err := b.resolve(ctx, depProject, ref.Target, configuration, nil, false)
				if err != nil {
					return nil, nil, err
				}
				appendDep(depID)
			}
		}
	}
	return blocking, continuous, nil
}

// dedupeSorted sorts the ids, removes duplicates and drops self-references.
// Returning a non-nil slice keeps serialized output stable ([] not null).
func dedupeSorted(ids []string, self string) []string {
	out := []string{}
	sort.Strings(ids)
	for i, id := range ids {
		if id == self || (i > 0 && ids[i-1] == id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
