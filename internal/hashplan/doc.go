// Package hashplan computes deterministic, content-derived cache keys for
// every task in a task graph.
//
// Tasks are processed in dependency order so each plan embeds the already
// finalized digests of its dependencies rather than their raw inputs: a
// change anywhere upstream ripples into every downstream digest without
// re-reading upstream files (the Merkle property). Per task, the plan is an
// ordered fragment list covering its own file inputs, runtime inputs,
// dependency digests and task identity, reduced to a single digest.
// Fragments are canonically sorted by (kind, key) so the digest never
// depends on map or filesystem iteration order.
//
// Hashing failures are local: an unreadable input degrades that task (and
// its dependents) to non-cacheable with a warning, but never aborts the run.
package hashplan
