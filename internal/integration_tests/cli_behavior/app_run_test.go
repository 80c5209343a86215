package integration_tests

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/monogrid/internal/app"
	"github.com/specialistvlad/monogrid/internal/cli"
	"github.com/specialistvlad/monogrid/internal/taskgraph"
	"github.com/specialistvlad/monogrid/internal/testutil"
)

func workspaceFiles() map[string]string {
	return map[string]string{
		"libs/core/project.hcl": `
			project "core" {
				target "build" {
					executor = "run-commands"
					options = { command = "echo core built" }
				}
			}
		`,
		"apps/web/project.hcl": `
			project "web" {
				depends_on = ["core"]

				target "build" {
					executor   = "run-commands"
					depends_on = ["^build"]
					options = { command = "echo web built" }
				}
			}
		`,
	}
}

func newTestApp(t *testing.T, files map[string]string, args []string) (*app.App, *app.Config, *testutil.SafeBuffer) {
	t.Helper()
	root := testutil.WriteWorkspace(t, files)

	out := &testutil.SafeBuffer{}
	full := append([]string{
		"--workspace", root,
		"--cache-dir", filepath.Join(t.TempDir(), "cache"),
		"--log-level", "error",
	}, args...)

	cfg, shouldExit, err := cli.Parse(full, out)
	require.NoError(t, err)
	require.False(t, shouldExit)

	a := app.NewApp(out, cfg)
	t.Cleanup(func() { _ = a.Close() })
	return a, cfg, out
}

func TestCliBehavior_RunPrintsSummary(t *testing.T) {
	a, cfg, out := newTestApp(t, workspaceFiles(), []string{"build"})

	err := a.Run(context.Background(), cfg)
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "core:build")
	assert.Contains(t, output, "web:build")
	assert.Contains(t, output, "2 tasks, 0 failed")
}

func TestCliBehavior_FailureYieldsError(t *testing.T) {
	files := workspaceFiles()
	files["libs/core/project.hcl"] = `
		project "core" {
			target "build" {
				executor = "run-commands"
				options = { command = "false" }
			}
		}
	`
	a, cfg, out := newTestApp(t, files, []string{"build"})

	err := a.Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 tasks failed")
	assert.Contains(t, out.String(), "skipped")
}

func TestCliBehavior_DryRunPrintsGraph(t *testing.T) {
	a, cfg, out := newTestApp(t, workspaceFiles(), []string{"--dry-run", "build", "web"})

	err := a.Run(context.Background(), cfg)
	require.NoError(t, err)

	// The printed document is the serialized task graph, parseable as-is.
	raw := strings.TrimSpace(out.String())
	var graph taskgraph.Graph
	require.NoError(t, json.Unmarshal([]byte(raw), &graph))

	assert.Len(t, graph.Tasks, 2)
	assert.Equal(t, []string{"core:build"}, graph.Dependencies["web:build"])
	assert.NotContains(t, out.String(), "tasks,", "a dry run must not print an execution summary")
}

func TestCliBehavior_ProjectSelectionErrors(t *testing.T) {
	t.Run("unknown project", func(t *testing.T) {
		a, cfg, _ := newTestApp(t, workspaceFiles(), []string{"build", "nosuch"})
		err := a.Run(context.Background(), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown project "nosuch"`)
	})

	t.Run("target not declared anywhere", func(t *testing.T) {
		a, cfg, _ := newTestApp(t, workspaceFiles(), []string{"deploy"})
		err := a.Run(context.Background(), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `no project declares target "deploy"`)
	})
}
