package taskgraph

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Task is one concrete unit of work: a target invocation on a project,
// optionally under a named configuration. Tasks are flat, variant-free
// records; continuous behaviour is expressed by the edge kind, not a
// subclass.
type Task struct {
	// ID is the deterministic identity "project:target[:configuration]".
	ID string `json:"id"`
	// Project is the owning project's name.
	Project string `json:"project"`
	// Target is the invoked target's name.
	Target string `json:"target"`
	// Configuration is the resolved configuration name, empty when none.
	Configuration string `json:"configuration,omitempty"`
	// ProjectRoot is the project directory relative to the workspace root.
	ProjectRoot string `json:"projectRoot"`
	// Executor names the collaborator that runs the task.
	Executor string `json:"executor"`
	// Options is the effective option set: target options overlaid with the
	// configuration's overrides and then the request's CLI overrides.
	Options map[string]any `json:"options,omitempty"`
	// Overrides preserves the raw CLI-level overrides for diagnostics.
	Overrides map[string]any `json:"overrides,omitempty"`
	// Inputs are the unresolved input groups/patterns used for hashing.
	Inputs []string `json:"inputs,omitempty"`
	// Env lists environment variable names included in the task's hash.
	Env []string `json:"env,omitempty"`
	// Continuous marks a long-running task that never "completes".
	Continuous bool `json:"continuous,omitempty"`
	// Cacheable marks the task's results as replayable from the cache store.
	Cacheable bool `json:"cacheable,omitempty"`
}

// MakeID builds the canonical task identity string.
func MakeID(projectName, target, configuration string) string {
	if configuration == "" {
		return fmt.Sprintf("%s:%s", projectName, target)
	}
	return fmt.Sprintf("%s:%s:%s", projectName, target, configuration)
}

// Graph is the dependency-ordered expansion of the requested tasks plus
// their transitive prerequisites. It is immutable once built; the scheduler
// tracks runtime state separately.
type Graph struct {
	// Tasks holds every task keyed by id.
	Tasks map[string]*Task `json:"tasks"`
	// Dependencies is the blocking relation: a task may not start until all
	// listed tasks have settled successfully.
	Dependencies map[string][]string `json:"dependencies"`
	// ContinuousDependencies is the non-blocking relation: a task may start
	// once all listed continuous tasks have reached readiness.
	ContinuousDependencies map[string][]string `json:"continuousDependencies"`
	// Roots lists tasks with no blocking dependencies.
	Roots []string `json:"roots"`
}

// NewEmptyGraph returns a graph with allocated, zero-length collections.
// Fatal build errors return this shape so callers always see valid structure
// next to a populated error.
func NewEmptyGraph() *Graph {
	return &Graph{
		Tasks:                  map[string]*Task{},
		Dependencies:           map[string][]string{},
		ContinuousDependencies: map[string][]string{},
		Roots:                  []string{},
	}
}

// Serialize renders the graph as indented JSON. encoding/json emits map keys
// in sorted order and all slices are sorted at build time, so two graphs
// built from identical inputs serialize byte-identically.
func (g *Graph) Serialize() ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

// TopologicalOrder returns task ids ordered so every task appears after all
// of its blocking dependencies. Ties break lexicographically, keeping the
// order deterministic. The builder guarantees acyclicity, so an error here
// indicates graph corruption.
func (g *Graph) TopologicalOrder() ([]string, error) {
	remaining := make(map[string]int, len(g.Tasks))
	dependents := make(map[string][]string, len(g.Tasks))
	for id := range g.Tasks {
		remaining[id] = len(g.Dependencies[id])
		for _, dep := range g.Dependencies[id] {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var frontier []string
	for id, n := range remaining {
		if n == 0 {
			frontier = append(frontier, id)
		}
	}
	sort.Strings(frontier)

	order := make([]string, 0, len(g.Tasks))
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		order = append(order, id)

		var released []string
		for _, dependent := range dependents[id] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				released = append(released, dependent)
			}
		}
		sort.Strings(released)
		frontier = append(frontier, released...)
	}

	if len(order) != len(g.Tasks) {
		return nil, fmt.Errorf("task graph is not acyclic: ordered %d of %d tasks", len(order), len(g.Tasks))
	}
	return order, nil
}

// Dependents returns the reverse of the blocking relation.
func (g *Graph) Dependents() map[string][]string {
	out := make(map[string][]string, len(g.Tasks))
	for id, deps := range g.Dependencies {
		for _, dep := range deps {
			out[dep] = append(out[dep], id)
		}
	}
	for _, ids := range out {
		sort.Strings(ids)
	}
	return out
}

// ContinuousConsumers returns, per continuous task, the tasks that list it
// in their continuous dependencies. The scheduler uses it to decide when a
// continuous task can be torn down.
func (g *Graph) ContinuousConsumers() map[string][]string {
	out := make(map[string][]string)
	for id, deps := range g.ContinuousDependencies {
		for _, dep := range deps {
			out[dep] = append(out[dep], id)
		}
	}
	for _, ids := range out {
		sort.Strings(ids)
	}
	return out
}
