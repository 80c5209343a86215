// Package taskgraph expands requested (project, target, configuration)
// tuples into the full dependency-ordered task graph.
//
// The builder resolves each target's dependsOn refs recursively, memoizing
// tasks by identity so diamond dependencies collapse into one task, and
// detecting cycles with a visiting set over task ids. Edges onto continuous
// tasks (dev servers) are segregated into a separate non-blocking relation so
// the scheduler can treat "started" rather than "completed" as readiness.
//
// Builds are deterministic: dependency lists, roots and serialized output
// are stably ordered, so identical inputs yield byte-identical graphs.
package taskgraph
