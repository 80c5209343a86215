package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/specialistvlad/monogrid/internal/ctxlog"
	"github.com/specialistvlad/monogrid/internal/taskgraph"
)

// Local runs tasks as shell commands on the local machine.
type Local struct {
	// workspaceRoot anchors each task's working directory.
	workspaceRoot string
	// stopGrace is how long Stop waits after SIGTERM before giving up on a
	// continuous task.
	stopGrace time.Duration
}

// NewLocal creates a local runner rooted at the workspace directory.
func NewLocal(workspaceRoot string) *Local {
	return &Local{workspaceRoot: workspaceRoot, stopGrace: 10 * time.Second}
}

// command extracts the shell command from the task's effective options.
func command(task *taskgraph.Task) (string, error) {
	raw, ok := task.Options["command"]
	if !ok {
		return "", fmt.Errorf("task %s has no command option", task.ID)
	}
	cmd, ok := raw.(string)
	if !ok || cmd == "" {
		return "", fmt.Errorf("task %s has a non-string or empty command option", task.ID)
	}
	return cmd, nil
}

func (l *Local) newCmd(ctx context.Context, task *taskgraph.Task) (*exec.Cmd, error) {
	shellCmd, err := command(task)
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", shellCmd)
	cmd.Dir = filepath.Join(l.workspaceRoot, task.ProjectRoot)
	cmd.Env = os.Environ()
	return cmd, nil
}

// Execute runs the task to completion and reports its outcome. A non-zero
// exit is a Result with Success false, not an error; errors are reserved for
// failures to launch at all.
func (l *Local) Execute(ctx context.Context, task *taskgraph.Task) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	cmd, err := l.newCmd(ctx, task)
	if err != nil {
		return nil, err
	}

	logger.Debug("Executing task command.", "task", task.ID, "dir", cmd.Dir)
	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return &Result{Success: false, ExitCode: exitErr.ExitCode(), Output: output}, nil
		}
		return nil, fmt.Errorf("launching task %s: %w", task.ID, runErr)
	}
	return &Result{Success: true, ExitCode: 0, Output: output}, nil
}

// StartContinuous launches the task and returns a handle whose readiness is
// signalled as soon as the process is running. Deeper readiness probes
// (ports, health endpoints) are an executor concern beyond this runner.
func (l *Local) StartContinuous(ctx context.Context, task *taskgraph.Task) (Continuous, error) {
	logger := ctxlog.FromContext(ctx)

	// Detach from the dispatch context: a continuous task outlives the
	// dispatching call and is stopped explicitly through the handle.
	cmd, err := l.newCmd(context.Background(), task)
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting continuous task %s: %w", task.ID, err)
	}
	logger.Debug("Continuous task started.", "task", task.ID, "pid", cmd.Process.Pid)

	handle := &localContinuous{cmd: cmd, grace: l.stopGrace, ready: make(chan struct{}), done: make(chan error, 1)}
	close(handle.ready)
	go func() { handle.done <- cmd.Wait() }()
	return handle, nil
}

type localContinuous struct {
	cmd   *exec.Cmd
	grace time.Duration
	ready chan struct{}
	done  chan error
}

func (c *localContinuous) Ready() <-chan struct{} { return c.ready }

// Stop sends SIGTERM and waits for exit, escalating to SIGKILL after the
// grace period. A continuous task exiting on request is not a failure.
func (c *localContinuous) Stop(ctx context.Context) error {
	if err := c.cmd.Process.Signal(os.Interrupt); err != nil {
		// Process already gone.
		return nil
	}
	select {
	case <-c.done:
		return nil
	case <-time.After(c.grace):
		_ = c.cmd.Process.Kill()
		<-c.done
		return nil
	case <-ctx.Done():
		_ = c.cmd.Process.Kill()
		return ctx.Err()
	}
}
