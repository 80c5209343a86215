package scheduler

import (
	"context"
	"sort"
	"sync"

	"github.com/specialistvlad/monogrid/internal/cache"
	"github.com/specialistvlad/monogrid/internal/ctxlog"
	"github.com/specialistvlad/monogrid/internal/hashplan"
	"github.com/specialistvlad/monogrid/internal/runner"
	"github.com/specialistvlad/monogrid/internal/taskgraph"
)

// Scheduler executes task graphs against a cache store and a task runner.
type Scheduler struct {
	store  cache.Store
	runner runner.Runner
}

// New creates a scheduler over the given collaborators.
func New(store cache.Store, r runner.Runner) *Scheduler {
	return &Scheduler{store: store, runner: r}
}

// settlement is the only message workers send back to the coordinator.
type settlement struct {
	id      string
	outcome Outcome
	handle  runner.Continuous
}

// run is the per-invocation coordinator state. All fields are owned by the
// coordinating loop; workers communicate exclusively through settleCh.
type run struct {
	sched *Scheduler
	graph *taskgraph.Graph
	plans map[string]*hashplan.Plan
	opts  Options

	statuses       map[string]Status
	outcomes       map[string]Outcome
	blockRemaining map[string]int
	contRemaining  map[string]int
	dependents     map[string][]string
	contDependents map[string][]string
	// consumersRemaining counts unsettled consumers per continuous task;
	// at zero the task is asked to stop.
	consumersRemaining map[string]int
	handles            map[string]runner.Continuous

	ready    []string
	inFlight int
	settleCh chan settlement
	failed   bool
	aborted  bool
	// teardown tracks in-progress continuous stops so the run never
	// returns while a teardown is still signalling.
	teardown sync.WaitGroup
}

// Run executes the graph and returns one outcome per task. The returned
// error is non-nil only when the run was aborted; task failures are reported
// through their outcomes.
func (s *Scheduler) Run(ctx context.Context, graph *taskgraph.Graph, plans map[string]*hashplan.Plan, opts Options) (map[string]Outcome, error) {
	logger := ctxlog.FromContext(ctx)
	if opts.MaxParallelism <= 0 {
		opts.MaxParallelism = DefaultParallelism
	}

	r := &run{
		sched:              s,
		graph:              graph,
		plans:              plans,
		opts:               opts,
		statuses:           make(map[string]Status, len(graph.Tasks)),
		outcomes:           make(map[string]Outcome, len(graph.Tasks)),
		blockRemaining:     make(map[string]int, len(graph.Tasks)),
		contRemaining:      make(map[string]int, len(graph.Tasks)),
		dependents:         graph.Dependents(),
		contDependents:     graph.ContinuousConsumers(),
		consumersRemaining: make(map[string]int),
		handles:            make(map[string]runner.Continuous),
		settleCh:           make(chan settlement),
	}

	for id := range graph.Tasks {
		r.statuses[id] = StatusPending
		r.blockRemaining[id] = len(graph.Dependencies[id])
		r.contRemaining[id] = len(graph.ContinuousDependencies[id])
	}
	for contID, consumers := range r.contDependents {
		r.consumersRemaining[contID] = len(consumers)
	}
	for id := range graph.Tasks {
		if r.blockRemaining[id] == 0 && r.contRemaining[id] == 0 {
			r.ready = append(r.ready, id)
		}
	}
	sort.Strings(r.ready)

	logger.Debug("Scheduler run started.",
		"task_count", len(graph.Tasks), "max_parallelism", opts.MaxParallelism)

	r.loop(ctx)

	// Any continuous task still up (directly requested, or orphaned by an
	// abort) is asked to stop before the run returns.
	for id, handle := range r.handles {
		r.stopContinuous(ctx, id, handle)
	}
	r.teardown.Wait()

	if r.aborted {
		logger.Warn("Scheduler run aborted; returning partial outcomes.", "settled", len(r.outcomes))
		return r.outcomes, ctx.Err()
	}
	logger.Debug("Scheduler run finished.", "settled", len(r.outcomes))
	return r.outcomes, nil
}

// loop is the coordinating loop: dispatch ready tasks into free slots, then
// block on the next settlement (or abort) and update readiness.
func (r *run) loop(ctx context.Context) {
	ctxDone := ctx.Done()
	for {
		if !r.aborted && !r.dispatchFrozen() {
			r.dispatchReady(ctx)
		}

		if r.inFlight == 0 {
			// Nothing can settle anymore; whatever is still pending is
			// unreachable (frozen dispatch or unsatisfiable dependencies).
			r.skipRemaining()
			return
		}

		select {
		case st := <-r.settleCh:
			r.handleSettlement(ctx, st)
		case <-ctxDone:
			// Stop dispatching, let in-flight work settle.
			r.aborted = true
			ctxDone = nil
		}
	}
}

// dispatchFrozen reports whether new dispatch is suspended because a failure
// occurred and the run is not continuing on error.
func (r *run) dispatchFrozen() bool {
	return r.failed && !r.opts.ContinueOnError
}

func (r *run) dispatchReady(ctx context.Context) {
	for len(r.ready) > 0 && r.inFlight < r.opts.MaxParallelism {
		id := r.ready[0]
		r.ready = r.ready[1:]
		if r.statuses[id] != StatusPending {
			continue
		}
		r.statuses[id] = StatusRunning
		r.inFlight++

		task := r.graph.Tasks[id]
		if task.Continuous {
			go r.sched.startContinuous(ctx, task, r.settleCh)
			continue
		}
		go r.sched.execute(ctx, task, r.plans[id], r.opts, r.settleCh)
	}
}

func (r *run) handleSettlement(ctx context.Context, st settlement) {
	logger := ctxlog.FromContext(ctx)
	r.inFlight--
	r.statuses[st.id] = st.outcome.Status
	r.outcomes[st.id] = st.outcome
	logger.Debug("Task settled.", "task", st.id, "status", string(st.outcome.Status))

	switch st.outcome.Status {
	case StatusStarted:
		r.handles[st.id] = st.handle
		for _, consumer := range r.contDependents[st.id] {
			r.contRemaining[consumer]--
			r.enqueueIfReady(consumer)
		}
	case StatusCached, StatusSucceeded:
		for _, dependent := range r.dependents[st.id] {
			r.blockRemaining[dependent]--
			r.enqueueIfReady(dependent)
		}
		r.releaseContinuousDeps(ctx, st.id)
	case StatusFailed:
		r.failed = true
		r.skipDependentsOf(ctx, st.id)
		r.releaseContinuousDeps(ctx, st.id)
	}
}

func (r *run) enqueueIfReady(id string) {
	if r.statuses[id] == StatusPending && r.blockRemaining[id] == 0 && r.contRemaining[id] == 0 {
		r.ready = append(r.ready, id)
	}
}

// skipDependentsOf marks every transitive dependent of id as skipped. A
// failed continuous task additionally skips its consumers, which could never
// become ready.
func (r *run) skipDependentsOf(ctx context.Context, id string) {
	for _, dependent := range r.dependents[id] {
		r.skip(ctx, dependent, "upstream task "+id+" failed")
	}
	for _, consumer := range r.contDependents[id] {
		r.skip(ctx, consumer, "continuous dependency "+id+" failed to start")
	}
}

func (r *run) skip(ctx context.Context, id, reason string) {
	if r.statuses[id].Terminal() || r.statuses[id] == StatusRunning {
		return
	}
	r.statuses[id] = StatusSkipped
	r.outcomes[id] = Outcome{TaskID: id, Status: StatusSkipped, Error: reason}
	ctxlog.FromContext(ctx).Debug("Task skipped.", "task", id, "reason", reason)
	r.skipDependentsOf(ctx, id)
	r.releaseContinuousDeps(ctx, id)
}

// skipRemaining settles every task that never got to run (frozen dispatch
// after a failure, or an abort).
func (r *run) skipRemaining() {
	var pending []string
	for id, status := range r.statuses {
		if !status.Terminal() {
			pending = append(pending, id)
		}
	}
	sort.Strings(pending)
	for _, id := range pending {
		reason := "run stopped before the task became ready"
		if r.aborted {
			reason = "run aborted"
		}
		r.statuses[id] = StatusSkipped
		r.outcomes[id] = Outcome{TaskID: id, Status: StatusSkipped, Error: reason}
	}
}

// releaseContinuousDeps records that one consumer of each continuous
// dependency of id has settled, tearing the dependency down once no
// consumers remain.
func (r *run) releaseContinuousDeps(ctx context.Context, id string) {
	for _, contID := range r.graph.ContinuousDependencies[id] {
		r.consumersRemaining[contID]--
		if r.consumersRemaining[contID] > 0 {
			continue
		}
		if handle, ok := r.handles[contID]; ok {
			r.stopContinuous(ctx, contID, handle)
			delete(r.handles, contID)
			// A stopped continuous task no longer consumes its own
			// continuous dependencies.
			r.releaseContinuousDeps(ctx, contID)
		}
	}
}

func (r *run) stopContinuous(ctx context.Context, id string, handle runner.Continuous) {
	logger := ctxlog.FromContext(ctx)
	r.teardown.Add(1)
	go func() {
		defer r.teardown.Done()
		logger.Debug("Stopping continuous task.", "task", id)
		if err := handle.Stop(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Continuous task did not stop cleanly.", "task", id, "error", err)
		}
	}()
}
