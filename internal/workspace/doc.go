// Package workspace loads the declarative workspace configuration and
// produces the project graph the task pipeline consumes.
//
// A workspace is a directory tree containing an optional workspace.hcl at
// the root (workspace-global settings: named input groups, target defaults,
// the cacheable target list) and one project.hcl per project. The loader
// parses every file, merges target defaults into project targets, resolves
// typed dependency edges and validates the resulting graph.
//
// The loader is a collaborator of the core: the task graph builder, hash
// planner and scheduler only ever see the project.Graph and Config values it
// returns, never HCL.
package workspace
