package runner

import (
	"context"

	"github.com/specialistvlad/monogrid/internal/taskgraph"
)

// Result is the terminal outcome of one task execution.
type Result struct {
	// Success is true when the task exited cleanly.
	Success bool
	// ExitCode is the process exit code, 0 on success.
	ExitCode int
	// Output is the task's combined terminal output.
	Output []byte
}

// Continuous is a handle on a started long-running task.
type Continuous interface {
	// Ready is closed once the task is up enough to satisfy dependents.
	Ready() <-chan struct{}
	// Stop asks the task to terminate and waits for it to exit.
	Stop(ctx context.Context) error
}

// Runner executes tasks. Execute blocks until the task terminates;
// StartContinuous returns as soon as the task is launched.
type Runner interface {
	Execute(ctx context.Context, task *taskgraph.Task) (*Result, error)
	StartContinuous(ctx context.Context, task *taskgraph.Task) (Continuous, error)
}
