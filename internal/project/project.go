package project

import (
	"fmt"
	"sort"
)

// EdgeType classifies a dependency edge between two projects.
type EdgeType string

const (
	// EdgeStatic is a source-level dependency (an import that is always
	// present). Static edges drive `^target` expansion.
	EdgeStatic EdgeType = "static"
	// EdgeDynamic is a dependency that is only reachable at runtime, e.g. a
	// lazily-loaded module.
	EdgeDynamic EdgeType = "dynamic"
	// EdgeImplicit is a manually-declared relationship with no source-level
	// import backing it.
	EdgeImplicit EdgeType = "implicit"
)

// Dependency is one outgoing edge of a project.
type Dependency struct {
	// Target is the name of the depended-upon project.
	Target string
	// Type classifies the edge.
	Type EdgeType
}

// TargetConfiguration describes one named operation a project can perform.
type TargetConfiguration struct {
	// Executor names the collaborator that runs the target.
	Executor string
	// DependsOn lists dependency refs, either "self:<target>" (or the bare
	// "<target>" shorthand) for a sibling target on the same project, or
	// "^<target>" for the same target on depended-upon projects.
	DependsOn []string
	// Inputs are file pattern groups hashed into the target's cache key.
	// An entry naming a workspace named-input group expands to that group's
	// patterns; anything else is treated as a pattern relative to the
	// project root.
	Inputs []string
	// Env lists environment variable names whose values participate in the
	// target's cache key.
	Env []string
	// Options is the base option set handed to the executor.
	Options map[string]any
	// Configurations are named option override sets.
	Configurations map[string]map[string]any
	// DefaultConfiguration is applied when a requested configuration is not
	// declared on this target.
	DefaultConfiguration string
	// Continuous marks long-running targets (dev servers) whose readiness,
	// not completion, satisfies dependents.
	Continuous bool
	// Cacheable marks the target's results as replayable from the cache
	// store.
	Cacheable bool
}

// Node is a single buildable unit in the workspace.
type Node struct {
	// Name uniquely identifies the project within the workspace.
	Name string
	// Root is the project's directory, relative to the workspace root.
	Root string
	// Targets maps target name to its configuration.
	Targets map[string]*TargetConfiguration
}

// Graph is the workspace-wide project dependency graph.
type Graph struct {
	// Nodes holds every project, keyed by name.
	Nodes map[string]*Node
	// Dependencies holds the typed outgoing edges of each project.
	Dependencies map[string][]Dependency
}

// Validate checks the structural invariants of the graph: every edge must
// reference an existing node on both ends.
func (g *Graph) Validate() error {
	for source, deps := range g.Dependencies {
		if _, ok := g.Nodes[source]; !ok {
			return fmt.Errorf("dependency list references unknown project %q", source)
		}
		for _, dep := range deps {
			if _, ok := g.Nodes[dep.Target]; !ok {
				return fmt.Errorf("project %q depends on unknown project %q", source, dep.Target)
			}
		}
	}
	return nil
}

// BuildDependenciesOf returns the names of the projects that `name` depends
// on through edges that count for `^target` expansion: static edges always,
// dynamic edges only when includeDynamic is set, implicit edges never. The
// result is sorted so expansion order is deterministic.
func (g *Graph) BuildDependenciesOf(name string, includeDynamic bool) []string {
	var out []string
	for _, dep := range g.Dependencies[name] {
		switch dep.Type {
		case EdgeStatic:
			out = append(out, dep.Target)
		case EdgeDynamic:
			if includeDynamic {
				out = append(out, dep.Target)
			}
		}
	}
	sort.Strings(out)
	return out
}

// ProjectNames returns every project name in sorted order.
func (g *Graph) ProjectNames() []string {
	names := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
