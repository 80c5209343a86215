package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/monogrid/internal/cache"
	"github.com/specialistvlad/monogrid/internal/ctxlog"
	"github.com/specialistvlad/monogrid/internal/hashplan"
	"github.com/specialistvlad/monogrid/internal/taskgraph"
)

// execute runs one non-continuous task: cache lookup, real execution on a
// miss, write-back on cacheable success. It reports exactly one settlement.
func (s *Scheduler) execute(ctx context.Context, task *taskgraph.Task, plan *hashplan.Plan, opts Options, settleCh chan<- settlement) {
	logger := ctxlog.FromContext(ctx).With("task", task.ID)

	useCache := plan != nil && plan.Cacheable && !opts.SkipCache

	if useCache {
		art, err := s.store.Get(ctx, plan.Digest)
		if err != nil {
			// A broken store is a forced miss, never a build failure.
			logger.Warn("Cache lookup failed, treating as miss.", "digest", plan.Digest, "error", err)
		} else if art != nil {
			logger.Debug("Cache hit.", "digest", plan.Digest)
			settleCh <- settlement{id: task.ID, outcome: Outcome{
				TaskID:    task.ID,
				Status:    StatusCached,
				Output:    art.Output,
				FromCache: true,
			}}
			return
		}
	}

	start := time.Now()
	result, err := s.runner.Execute(ctx, task)
	took := time.Since(start)
	if err != nil {
		settleCh <- settlement{id: task.ID, outcome: Outcome{
			TaskID:   task.ID,
			Status:   StatusFailed,
			Error:    err.Error(),
			Duration: took,
		}}
		return
	}

	if !result.Success {
		settleCh <- settlement{id: task.ID, outcome: Outcome{
			TaskID:   task.ID,
			Status:   StatusFailed,
			Output:   result.Output,
			Error:    fmt.Sprintf("task exited with code %d", result.ExitCode),
			Duration: took,
		}}
		return
	}

	if useCache {
		art := &cache.Artifact{TaskID: task.ID, Output: result.Output, CreatedAt: time.Now().UTC()}
		if err := s.store.Put(ctx, plan.Digest, art); err != nil {
			logger.Warn("Cache write failed, result not stored.", "digest", plan.Digest, "error", err)
		}
	}

	settleCh <- settlement{id: task.ID, outcome: Outcome{
		TaskID:   task.ID,
		Status:   StatusSucceeded,
		Output:   result.Output,
		Duration: took,
	}}
}

// startContinuous launches a continuous task and settles it as started once
// it reaches readiness. Continuous work is never cached.
func (s *Scheduler) startContinuous(ctx context.Context, task *taskgraph.Task, settleCh chan<- settlement) {
	logger := ctxlog.FromContext(ctx).With("task", task.ID)
	start := time.Now()

	handle, err := s.runner.StartContinuous(ctx, task)
	if err != nil {
		settleCh <- settlement{id: task.ID, outcome: Outcome{
			TaskID:   task.ID,
			Status:   StatusFailed,
			Error:    err.Error(),
			Duration: time.Since(start),
		}}
		return
	}

	select {
	case <-handle.Ready():
		logger.Debug("Continuous task reached readiness.")
		settleCh <- settlement{
			id:      task.ID,
			outcome: Outcome{TaskID: task.ID, Status: StatusStarted, Duration: time.Since(start)},
			handle:  handle,
		}
	case <-ctx.Done():
		// The run is aborting; settle as failed so dependents never wait.
		_ = handle.Stop(context.WithoutCancel(ctx))
		settleCh <- settlement{id: task.ID, outcome: Outcome{
			TaskID:   task.ID,
			Status:   StatusFailed,
			Error:    "aborted before readiness: " + ctx.Err().Error(),
			Duration: time.Since(start),
		}}
	}
}
