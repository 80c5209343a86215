package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/monogrid/internal/cache"
	"github.com/specialistvlad/monogrid/internal/project"
	"github.com/specialistvlad/monogrid/internal/runner"
	"github.com/specialistvlad/monogrid/internal/scheduler"
	"github.com/specialistvlad/monogrid/internal/taskgraph"
	"github.com/specialistvlad/monogrid/internal/workspace"
)

// fixture lays out a two-project workspace on disk and returns the matching
// in-memory project graph.
func fixture(t *testing.T) (*project.Graph, *workspace.Config) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "apps/web/src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "libs/core/src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "apps/web/src/main.ts"), []byte("web"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "libs/core/src/index.ts"), []byte("core"), 0o644))

	buildTarget := func() *project.TargetConfiguration {
		return &project.TargetConfiguration{
			Executor:  "run-commands",
			DependsOn: []string{"^build"},
			Options:   map[string]any{"command": "true"},
			Cacheable: true,
		}
	}
	projects := &project.Graph{
		Nodes: map[string]*project.Node{
			"web":  {Name: "web", Root: "apps/web", Targets: map[string]*project.TargetConfiguration{"build": buildTarget()}},
			"core": {Name: "core", Root: "libs/core", Targets: map[string]*project.TargetConfiguration{"build": buildTarget()}},
		},
		Dependencies: map[string][]project.Dependency{
			"web": {{Target: "core", Type: project.EdgeStatic}},
		},
	}
	ws := &workspace.Config{Root: root}
	return projects, ws
}

func TestRunFullPipeline(t *testing.T) {
	projects, ws := fixture(t)
	store, err := cache.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	o := New(projects, ws, store, runner.NewLocal(ws.Root), nil)

	resp, err := o.Run(context.Background(), Request{
		Targets: []taskgraph.Request{{Project: "web", Target: "build"}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.TaskGraph)

	assert.Len(t, resp.TaskGraph.Tasks, 2)
	assert.Equal(t, []string{"core:build"}, resp.TaskGraph.Dependencies["web:build"])
	require.Len(t, resp.Plans, 2)
	assert.NotEmpty(t, resp.Plans["web:build"].Digest)

	require.Len(t, resp.Outcomes, 2)
	assert.Equal(t, scheduler.StatusSucceeded, resp.Outcomes["core:build"].Status)
	assert.Equal(t, scheduler.StatusSucceeded, resp.Outcomes["web:build"].Status)
	assert.Empty(t, resp.Error)

	t.Run("second run replays from cache", func(t *testing.T) {
		resp2, err := o.Run(context.Background(), Request{
			Targets: []taskgraph.Request{{Project: "web", Target: "build"}},
		})
		require.NoError(t, err)
		assert.Equal(t, scheduler.StatusCached, resp2.Outcomes["core:build"].Status)
		assert.Equal(t, scheduler.StatusCached, resp2.Outcomes["web:build"].Status)
		assert.True(t, resp2.Outcomes["web:build"].FromCache)
	})
}

func TestRunDryRunSkipsExecution(t *testing.T) {
	projects, ws := fixture(t)
	o := New(projects, ws, cache.NopStore{}, runner.NewLocal(ws.Root), nil)

	resp, err := o.Run(context.Background(), Request{
		Targets: []taskgraph.Request{{Project: "web", Target: "build"}},
		DryRun:  true,
	})
	require.NoError(t, err)

	assert.Len(t, resp.TaskGraph.Tasks, 2)
	assert.Len(t, resp.Plans, 2)
	assert.Nil(t, resp.Outcomes)
}

func TestRunFatalGraphErrorReturnsEmptyGraph(t *testing.T) {
	projects, ws := fixture(t)
	o := New(projects, ws, cache.NopStore{}, runner.NewLocal(ws.Root), nil)

	resp, err := o.Run(context.Background(), Request{
		Targets: []taskgraph.Request{{Project: "nosuch", Target: "build"}},
	})
	require.Error(t, err)

	var unknown *taskgraph.UnknownProjectError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nosuch", unknown.Project)

	require.NotNil(t, resp.TaskGraph)
	assert.Empty(t, resp.TaskGraph.Tasks)
	assert.NotNil(t, resp.TaskGraph.Tasks, "fatal errors still return allocated structure")
	assert.NotEmpty(t, resp.Error)
	assert.Nil(t, resp.Plans, "hashing must not run after a fatal graph error")
	assert.Nil(t, resp.Outcomes)
}
