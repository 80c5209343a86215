package hashplan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/specialistvlad/monogrid/internal/ctxlog"
	"github.com/specialistvlad/monogrid/internal/taskgraph"
	"github.com/specialistvlad/monogrid/internal/workspace"
	"golang.org/x/sync/errgroup"
)

// Planner computes hash plans for every task in a graph.
type Planner struct {
	ws *workspace.Config
	// hashLimit bounds how many input files are hashed concurrently.
	hashLimit int

	mu        sync.Mutex
	fileCache map[string]string
}

// NewPlanner creates a planner rooted at the given workspace configuration.
func NewPlanner(ws *workspace.Config) *Planner {
	return &Planner{
		ws:        ws,
		hashLimit: runtime.NumCPU(),
		fileCache: make(map[string]string),
	}
}

// Plan walks the graph in topological order and returns one plan per task
// plus any non-fatal warnings. Only a corrupt graph yields an error.
func (p *Planner) Plan(ctx context.Context, graph *taskgraph.Graph) (map[string]*Plan, []Warning, error) {
	logger := ctxlog.FromContext(ctx)

	order, err := graph.TopologicalOrder()
	if err != nil {
		return nil, nil, err
	}

	plans := make(map[string]*Plan, len(graph.Tasks))
	var warnings []Warning

	for _, id := range order {
		task := graph.Tasks[id]
		plan := &Plan{TaskID: id}

		fileWarnings := p.addFileFragments(ctx, task, plan)
		warnings = append(warnings, fileWarnings...)

		p.addRuntimeFragments(task, plan)

		for _, depID := range graph.Dependencies[id] {
			depPlan := plans[depID]
			if depPlan == nil || depPlan.Degraded {
				plan.Fragments = append(plan.Fragments, Fragment{Kind: KindDependency, Key: depID, Value: MissingDigest})
				plan.Degraded = true
				continue
			}
			plan.Fragments = append(plan.Fragments, Fragment{Kind: KindDependency, Key: depID, Value: depPlan.Digest})
		}

		if err := addIdentityFragments(task, plan); err != nil {
			return nil, nil, fmt.Errorf("hashing identity of %s: %w", id, err)
		}

		plan.finalize()
		plan.Cacheable = task.Cacheable && !plan.Degraded
		plans[id] = plan

		logger.Debug("Hash plan computed.",
			"task", id, "digest", plan.Digest, "fragments", len(plan.Fragments), "degraded", plan.Degraded)
	}

	return plans, warnings, nil
}

// addFileFragments hashes every file matched by the task's input patterns
// under the project root, keyed by workspace-relative path. Unreadable files
// degrade the plan instead of failing it.
func (p *Planner) addFileFragments(ctx context.Context, task *taskgraph.Task, plan *Plan) []Warning {
	var patterns []string
	if p.ws != nil {
		patterns = p.ws.ResolveInputs(task.Inputs)
	} else {
		patterns = task.Inputs
		if len(patterns) == 0 {
			patterns = []string{"**/*"}
		}
	}

	var includes, excludes []string
	for _, pattern := range patterns {
		if trimmed, ok := strings.CutPrefix(pattern, "!"); ok {
			excludes = append(excludes, trimmed)
			continue
		}
		includes = append(includes, pattern)
	}

	root := task.ProjectRoot
	if p.ws != nil {
		root = filepath.Join(p.ws.Root, task.ProjectRoot)
	}

	matched, walkErr := matchFiles(root, includes, excludes)
	var warnings []Warning
	if walkErr != nil {
		// An unwalkable root means the file set is unknown, not empty; the
		// digest must not pretend otherwise.
		plan.Degraded = true
		warnings = append(warnings, Warning{
			TaskID:  task.ID,
			Message: fmt.Sprintf("walking project root %s: %v", root, walkErr),
		})
	}

	type result struct {
		rel  string
		hash string
		err  error
	}
	results := make([]result, len(matched))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(p.hashLimit)
	for i, rel := range matched {
		i, rel := i, rel
		g.Go(func() error {
			hash, err := p.hashFile(filepath.Join(root, rel))
			results[i] = result{rel: rel, hash: hash, err: err}
			return nil
		})
	}
	// Workers stash per-file errors in results, so Wait never fails.
	_ = g.Wait()

	for _, r := range results {
		if r.err != nil {
			plan.Degraded = true
			warnings = append(warnings, Warning{
				TaskID:  task.ID,
				Message: fmt.Sprintf("input file %s could not be hashed: %v", r.rel, r.err),
			})
			continue
		}
		key := filepath.ToSlash(filepath.Join(task.ProjectRoot, r.rel))
		plan.Fragments = append(plan.Fragments, Fragment{Kind: KindFile, Key: key, Value: r.hash})
	}
	return warnings
}

// matchFiles walks the project root and returns the sorted project-relative
// paths matching at least one include and no exclude pattern. A walk error
// means the file set could not be fully enumerated; the caller degrades the
// plan.
func matchFiles(root string, includes, excludes []string) ([]string, error) {
	var matched []string

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !matchesAny(includes, rel) || matchesAny(excludes, rel) {
			return nil
		}
		matched = append(matched, rel)
		return nil
	})

	sort.Strings(matched)
	return matched, walkErr
}

func matchesAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// addRuntimeFragments records declared environment variable values and the
// workspace-global configuration digest.
func (p *Planner) addRuntimeFragments(task *taskgraph.Task, plan *Plan) {
	for _, name := range task.Env {
		plan.Fragments = append(plan.Fragments, Fragment{
			Kind:  KindRuntime,
			Key:   "env:" + name,
			Value: hashString(os.Getenv(name)),
		})
	}
	if p.ws != nil {
		plan.Fragments = append(plan.Fragments, Fragment{
			Kind:  KindRuntime,
			Key:   "workspace",
			Value: p.ws.Digest(),
		})
	}
}

// addIdentityFragments records the invocation identity: executor,
// configuration name and effective option set including CLI overrides.
func addIdentityFragments(task *taskgraph.Task, plan *Plan) error {
	optionsHash, err := hashJSON(task.Options)
	if err != nil {
		return err
	}
	plan.Fragments = append(plan.Fragments,
		Fragment{Kind: KindIdentity, Key: "executor", Value: task.Executor},
		Fragment{Kind: KindIdentity, Key: "configuration", Value: task.Configuration},
		Fragment{Kind: KindIdentity, Key: "options", Value: optionsHash},
	)
	return nil
}

// hashFile returns the content hash of one file, memoized per planner so
// files shared by several tasks' input sets are read once.
func (p *Planner) hashFile(path string) (string, error) {
	p.mu.Lock()
	if hash, ok := p.fileCache[path]; ok {
		p.mu.Unlock()
		return hash, nil
	}
	p.mu.Unlock()

	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	hash := fmt.Sprintf("%016x", xxhash.Sum64(content))

	p.mu.Lock()
	p.fileCache[path] = hash
	p.mu.Unlock()
	return hash, nil
}
