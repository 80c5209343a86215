// Package app contains the application composition root. It configures the
// logger, loads the workspace, assembles the cache store, runner and
// orchestrator, and owns the run lifecycle, decoupled from any specific
// entrypoint like a CLI.
package app
