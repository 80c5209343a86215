// Package project defines the workspace-wide project dependency graph that
// the task pipeline consumes.
//
// A Graph is a read-only input to this system: it is supplied fresh per
// invocation by the workspace loader (or constructed directly in tests) and
// is never mutated downstream. Nodes are buildable units keyed by project
// name; edges between projects are typed. Only static edges describe a
// build-time relationship, so only they participate in `^target` dependency
// expansion unless the caller explicitly opts dynamic edges in.
package project
