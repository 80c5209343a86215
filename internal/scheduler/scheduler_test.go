package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/monogrid/internal/cache"
	"github.com/specialistvlad/monogrid/internal/hashplan"
	"github.com/specialistvlad/monogrid/internal/runner"
	"github.com/specialistvlad/monogrid/internal/taskgraph"
)

// fakeStore is an in-memory cache store that records every access.
type fakeStore struct {
	mu        sync.Mutex
	artifacts map[string]*cache.Artifact
	gets      []string
	puts      []string
	getErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{artifacts: make(map[string]*cache.Artifact)}
}

func (s *fakeStore) Get(_ context.Context, digest string) (*cache.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets = append(s.gets, digest)
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.artifacts[digest], nil
}

func (s *fakeStore) Put(_ context.Context, digest string, art *cache.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts = append(s.puts, digest)
	s.artifacts[digest] = art
	return nil
}

func (s *fakeStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

// fakeRunner executes tasks from a scripted behaviour table.
type fakeRunner struct {
	mu       sync.Mutex
	executed []string
	started  []string
	// failing lists task ids that exit non-zero.
	failing map[string]bool
	// startErr lists continuous task ids whose launch fails outright.
	startErr map[string]bool
	// blockUntil, when set for a task id, makes Execute wait for the channel
	// (or context cancellation) before returning.
	blockUntil map[string]chan struct{}
	handles    map[string]*fakeContinuous
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		failing:    make(map[string]bool),
		startErr:   make(map[string]bool),
		blockUntil: make(map[string]chan struct{}),
		handles:    make(map[string]*fakeContinuous),
	}
}

func (r *fakeRunner) Execute(ctx context.Context, task *taskgraph.Task) (*runner.Result, error) {
	r.mu.Lock()
	r.executed = append(r.executed, task.ID)
	gate := r.blockUntil[task.ID]
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.failing[task.ID] {
		return &runner.Result{Success: false, ExitCode: 1, Output: []byte("boom")}, nil
	}
	return &runner.Result{Success: true, Output: []byte("ran " + task.ID)}, nil
}

func (r *fakeRunner) StartContinuous(_ context.Context, task *taskgraph.Task) (runner.Continuous, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, task.ID)
	if r.startErr[task.ID] {
		return nil, errors.New("launch failed")
	}
	h := newFakeContinuous()
	r.handles[task.ID] = h
	return h, nil
}

func (r *fakeRunner) executedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.executed))
	copy(out, r.executed)
	return out
}

type fakeContinuous struct {
	ready   chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newFakeContinuous() *fakeContinuous {
	h := &fakeContinuous{ready: make(chan struct{}), stopped: make(chan struct{})}
	close(h.ready)
	return h
}

func (h *fakeContinuous) Ready() <-chan struct{} { return h.ready }

func (h *fakeContinuous) Stop(context.Context) error {
	h.once.Do(func() { close(h.stopped) })
	return nil
}

func (h *fakeContinuous) wasStopped() bool {
	select {
	case <-h.stopped:
		return true
	default:
		return false
	}
}

// chainGraph builds a graph from explicit edge maps; tasks absent from the
// maps simply have no dependencies.
func chainGraph(tasks []*taskgraph.Task, deps, contDeps map[string][]string) *taskgraph.Graph {
	g := taskgraph.NewEmptyGraph()
	for _, task := range tasks {
		g.Tasks[task.ID] = task
		g.Dependencies[task.ID] = deps[task.ID]
		g.ContinuousDependencies[task.ID] = contDeps[task.ID]
		if len(deps[task.ID]) == 0 {
			g.Roots = append(g.Roots, task.ID)
		}
	}
	return g
}

func simpleTask(id string) *taskgraph.Task {
	return &taskgraph.Task{ID: id, Executor: "run-commands"}
}

func cacheableTask(id string) *taskgraph.Task {
	t := simpleTask(id)
	t.Cacheable = true
	return t
}

func continuousTask(id string) *taskgraph.Task {
	t := simpleTask(id)
	t.Continuous = true
	return t
}

func cacheablePlans(g *taskgraph.Graph) map[string]*hashplan.Plan {
	plans := make(map[string]*hashplan.Plan, len(g.Tasks))
	for id, task := range g.Tasks {
		plans[id] = &hashplan.Plan{TaskID: id, Digest: "digest-" + id, Cacheable: task.Cacheable}
	}
	return plans
}

func TestRunExecutesDependencyOrder(t *testing.T) {
	g := chainGraph(
		[]*taskgraph.Task{simpleTask("lib:build"), simpleTask("app:build"), simpleTask("app:test")},
		map[string][]string{
			"app:build": {"lib:build"},
			"app:test":  {"app:build"},
		},
		nil,
	)
	r := newFakeRunner()
	sched := New(cache.NopStore{}, r)

	outcomes, err := sched.Run(context.Background(), g, nil, Options{MaxParallelism: 2})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	for id, outcome := range outcomes {
		assert.Equal(t, StatusSucceeded, outcome.Status, "task %s", id)
		assert.False(t, outcome.FromCache)
	}
	assert.Equal(t, []string{"lib:build", "app:build", "app:test"}, r.executedIDs())
}

func TestRunCacheHitReplaysWithoutExecuting(t *testing.T) {
	g := chainGraph([]*taskgraph.Task{cacheableTask("lib:build")}, nil, nil)
	plans := cacheablePlans(g)

	store := newFakeStore()
	store.artifacts["digest-lib:build"] = &cache.Artifact{
		TaskID: "lib:build",
		Output: []byte("stored output"),
	}
	r := newFakeRunner()
	sched := New(store, r)

	outcomes, err := sched.Run(context.Background(), g, plans, Options{})
	require.NoError(t, err)

	outcome := outcomes["lib:build"]
	assert.Equal(t, StatusCached, outcome.Status)
	assert.True(t, outcome.FromCache)
	assert.Equal(t, []byte("stored output"), outcome.Output)
	assert.Empty(t, r.executedIDs(), "a cache hit must not spawn work")
}

func TestRunCacheMissExecutesAndStores(t *testing.T) {
	g := chainGraph([]*taskgraph.Task{cacheableTask("lib:build")}, nil, nil)
	plans := cacheablePlans(g)

	store := newFakeStore()
	sched := New(store, newFakeRunner())

	outcomes, err := sched.Run(context.Background(), g, plans, Options{})
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, outcomes["lib:build"].Status)
	require.Equal(t, 1, store.putCount())
	stored := store.artifacts["digest-lib:build"]
	require.NotNil(t, stored)
	assert.Equal(t, []byte("ran lib:build"), stored.Output)
}

func TestRunSkipCacheBypassesStore(t *testing.T) {
	g := chainGraph([]*taskgraph.Task{cacheableTask("lib:build")}, nil, nil)
	plans := cacheablePlans(g)

	store := newFakeStore()
	store.artifacts["digest-lib:build"] = &cache.Artifact{TaskID: "lib:build", Output: []byte("stale")}
	r := newFakeRunner()
	sched := New(store, r)

	outcomes, err := sched.Run(context.Background(), g, plans, Options{SkipCache: true})
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, outcomes["lib:build"].Status)
	assert.Equal(t, []string{"lib:build"}, r.executedIDs())
	assert.Empty(t, store.gets)
	assert.Empty(t, store.puts)
}

func TestRunStoreErrorDegradesToMiss(t *testing.T) {
	g := chainGraph([]*taskgraph.Task{cacheableTask("lib:build")}, nil, nil)
	plans := cacheablePlans(g)

	store := newFakeStore()
	store.getErr = errors.New("store unreachable")
	r := newFakeRunner()
	sched := New(store, r)

	outcomes, err := sched.Run(context.Background(), g, plans, Options{})
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, outcomes["lib:build"].Status)
	assert.Equal(t, []string{"lib:build"}, r.executedIDs(), "a broken store falls back to execution")
}

func TestRunFailureSkipsTransitiveDependents(t *testing.T) {
	// Ids chosen so the failing root dispatches before the independent task
	// under serialized dispatch.
	g := chainGraph(
		[]*taskgraph.Task{
			simpleTask("core:build"), simpleTask("web:build"), simpleTask("web:test"),
			simpleTask("zdocs:build"),
		},
		map[string][]string{
			"web:build": {"core:build"},
			"web:test":  {"web:build"},
		},
		nil,
	)

	t.Run("stops dispatch by default", func(t *testing.T) {
		r := newFakeRunner()
		r.failing["core:build"] = true
		sched := New(cache.NopStore{}, r)

		outcomes, err := sched.Run(context.Background(), g, nil, Options{MaxParallelism: 1})
		require.NoError(t, err)

		assert.Equal(t, StatusFailed, outcomes["core:build"].Status)
		assert.Equal(t, StatusSkipped, outcomes["web:build"].Status)
		assert.Equal(t, StatusSkipped, outcomes["web:test"].Status)
		assert.Equal(t, StatusSkipped, outcomes["zdocs:build"].Status)
		assert.Contains(t, outcomes["web:build"].Error, "core:build")
	})

	t.Run("continue on error keeps independent branches", func(t *testing.T) {
		r := newFakeRunner()
		r.failing["core:build"] = true
		sched := New(cache.NopStore{}, r)

		outcomes, err := sched.Run(context.Background(), g, nil, Options{MaxParallelism: 1, ContinueOnError: true})
		require.NoError(t, err)

		assert.Equal(t, StatusFailed, outcomes["core:build"].Status)
		assert.Equal(t, StatusSkipped, outcomes["web:build"].Status)
		assert.Equal(t, StatusSkipped, outcomes["web:test"].Status)
		assert.Equal(t, StatusSucceeded, outcomes["zdocs:build"].Status)
	})
}

func TestRunContinuousUnblocksConsumersAndTearsDown(t *testing.T) {
	g := chainGraph(
		[]*taskgraph.Task{continuousTask("app:serve"), simpleTask("e2e:test")},
		nil,
		map[string][]string{"e2e:test": {"app:serve"}},
	)
	r := newFakeRunner()
	sched := New(cache.NopStore{}, r)

	outcomes, err := sched.Run(context.Background(), g, nil, Options{})
	require.NoError(t, err)

	assert.Equal(t, StatusStarted, outcomes["app:serve"].Status)
	assert.Equal(t, StatusSucceeded, outcomes["e2e:test"].Status)
	assert.Equal(t, []string{"e2e:test"}, r.executedIDs())

	handle := r.handles["app:serve"]
	require.NotNil(t, handle)
	assert.True(t, handle.wasStopped(), "the server must be torn down once its only consumer settled")
}

func TestRunContinuousLaunchFailureSkipsConsumers(t *testing.T) {
	g := chainGraph(
		[]*taskgraph.Task{continuousTask("app:serve"), simpleTask("e2e:test")},
		nil,
		map[string][]string{"e2e:test": {"app:serve"}},
	)
	r := newFakeRunner()
	r.startErr["app:serve"] = true
	sched := New(cache.NopStore{}, r)

	outcomes, err := sched.Run(context.Background(), g, nil, Options{})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, outcomes["app:serve"].Status)
	assert.Equal(t, StatusSkipped, outcomes["e2e:test"].Status)
	assert.Empty(t, r.executedIDs())
}

func TestRunAbortReturnsPartialOutcomes(t *testing.T) {
	g := chainGraph(
		[]*taskgraph.Task{simpleTask("lib:build"), simpleTask("app:build")},
		map[string][]string{"app:build": {"lib:build"}},
		nil,
	)
	r := newFakeRunner()
	gate := make(chan struct{})
	r.blockUntil["lib:build"] = gate

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// Give the worker time to start blocking, then abort the run.
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	sched := New(cache.NopStore{}, r)
	outcomes, err := sched.Run(ctx, g, nil, Options{})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, StatusFailed, outcomes["lib:build"].Status)
	assert.Equal(t, StatusSkipped, outcomes["app:build"].Status)
}

func TestRunParallelismCap(t *testing.T) {
	var (
		mu      sync.Mutex
		current int
		peak    int
	)
	g := taskgraph.NewEmptyGraph()
	for _, id := range []string{"a:build", "b:build", "c:build", "d:build"} {
		g.Tasks[id] = simpleTask(id)
		g.Dependencies[id] = nil
		g.Roots = append(g.Roots, id)
	}

	r := newFakeRunner()
	sched := New(cache.NopStore{}, &countingRunner{
		inner: r,
		onExecute: func() func() {
			mu.Lock()
			current++
			if current > peak {
				peak = current
			}
			mu.Unlock()
			return func() {
				mu.Lock()
				current--
				mu.Unlock()
			}
		},
	})

	outcomes, err := sched.Run(context.Background(), g, nil, Options{MaxParallelism: 2})
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2, "dispatch must never exceed the parallelism cap")
}

// countingRunner wraps a runner with an execution-window hook.
type countingRunner struct {
	inner     *fakeRunner
	onExecute func() func()
}

func (c *countingRunner) Execute(ctx context.Context, task *taskgraph.Task) (*runner.Result, error) {
	done := c.onExecute()
	defer done()
	time.Sleep(5 * time.Millisecond)
	return c.inner.Execute(ctx, task)
}

func (c *countingRunner) StartContinuous(ctx context.Context, task *taskgraph.Task) (runner.Continuous, error) {
	return c.inner.StartContinuous(ctx, task)
}
