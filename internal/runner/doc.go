// Package runner defines the task runner collaborator: the thing that
// actually spawns work. The scheduler only ever sees outcomes, so policies
// like per-task timeouts or retries belong to runner implementations, not to
// the core.
//
// The local runner executes the task's "command" option through the shell in
// the project's directory. Continuous tasks are started rather than awaited:
// the handle signals readiness once the process is up and is torn down when
// every downstream consumer has settled.
package runner
