package scheduler

import "time"

// Status is a task's runtime state. The graph itself is never mutated; the
// scheduler tracks status alongside it.
type Status string

const (
	// StatusPending means the task is waiting on dependencies.
	StatusPending Status = "pending"
	// StatusRunning means a worker is executing the task.
	StatusRunning Status = "running"
	// StatusStarted means a continuous task has reached readiness. It is
	// the terminal status of a healthy continuous task: such tasks never
	// reach succeeded.
	StatusStarted Status = "started"
	// StatusCached means the task's result was replayed from the cache.
	StatusCached Status = "cached"
	// StatusSucceeded means the task executed and exited cleanly.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means the task executed and failed.
	StatusFailed Status = "failed"
	// StatusSkipped means the task was never dispatched because an
	// upstream task failed or the run stopped early.
	StatusSkipped Status = "skipped"
)

// Terminal reports whether the status is final for scheduling purposes.
func (s Status) Terminal() bool {
	switch s {
	case StatusStarted, StatusCached, StatusSucceeded, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Satisfies reports whether a settled dependency with this status unblocks
// its dependents.
func (s Status) Satisfies() bool {
	return s == StatusCached || s == StatusSucceeded
}

// Outcome is the per-task result of a run.
type Outcome struct {
	TaskID string `json:"taskId"`
	Status Status `json:"status"`
	// Output is the task's terminal output, replayed from the cache on hits.
	Output []byte `json:"output,omitempty"`
	// FromCache marks outcomes replayed without spawning work.
	FromCache bool `json:"fromCache,omitempty"`
	// Error describes the failure or skip reason.
	Error string `json:"error,omitempty"`
	// Duration is the wall-clock execution time; zero for cache hits and
	// skips.
	Duration time.Duration `json:"duration,omitempty"`
}

// Options tune a run.
type Options struct {
	// MaxParallelism caps concurrently dispatched tasks. Zero or negative
	// falls back to DefaultParallelism.
	MaxParallelism int
	// ContinueOnError keeps independent branches running after a failure.
	// When false, a failure stops all further dispatch; only in-flight
	// tasks settle.
	ContinueOnError bool
	// SkipCache bypasses the cache store entirely: no gets, no puts.
	SkipCache bool
}

// DefaultParallelism is used when Options does not set a cap.
const DefaultParallelism = 3
