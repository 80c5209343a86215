// Package scheduler drives task execution over an immutable task graph.
//
// A single coordinating loop owns all graph bookkeeping; workers execute one
// task each and only report terminal outcomes back over a channel. A task is
// dispatched once every blocking dependency has settled successfully and
// every continuous dependency has reached readiness, up to the configured
// parallelism. Dispatch is a ready-queue, not fixed topological batches, so
// unrelated subtrees stay maximally parallel.
//
// Before dispatch the cache store is consulted with the task's digest; a hit
// replays the stored artifact without spawning work. Failures skip their
// transitive dependents; whether unrelated branches keep running is the
// ContinueOnError policy. Continuous tasks are torn down once every consumer
// has settled, never killed mid-flight because a sibling failed.
package scheduler
