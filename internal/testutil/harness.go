package testutil

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/monogrid/internal/cache"
	"github.com/specialistvlad/monogrid/internal/ctxlog"
	"github.com/specialistvlad/monogrid/internal/orchestrator"
	"github.com/specialistvlad/monogrid/internal/runner"
	"github.com/specialistvlad/monogrid/internal/workspace"
)

// WriteWorkspace materializes the given files under a fresh temp dir and
// returns its path. Relative file paths create their directories, so entries
// like "apps/web/project.hcl" lay out the workspace structure.
func WriteWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	Response  *orchestrator.Response
}

// RunIntegrationTest provides a standardized harness: it writes the workspace
// files, loads them, and drives the full pipeline with a local runner and a
// test-scoped local cache store, using a default background context.
func RunIntegrationTest(t *testing.T, files map[string]string, req orchestrator.Request) *HarnessResult {
	t.Helper()
	return RunIntegrationTestWithContext(context.Background(), t, files, req)
}

// RunIntegrationTestWithContext is RunIntegrationTest with a caller-provided
// context, for abort and timeout scenarios.
func RunIntegrationTestWithContext(ctx context.Context, t *testing.T, files map[string]string, req orchestrator.Request) *HarnessResult {
	t.Helper()

	root := WriteWorkspace(t, files)

	logBuf := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx = ctxlog.WithLogger(ctx, logger)

	projects, ws, err := workspace.NewLoader().Load(ctx, root)
	if err != nil {
		return &HarnessResult{LogOutput: logBuf.String(), Err: err}
	}

	store, err := cache.NewLocalStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)

	o := orchestrator.New(projects, ws, store, runner.NewLocal(ws.Root), nil)
	resp, err := o.Run(ctx, req)

	return &HarnessResult{LogOutput: logBuf.String(), Err: err, Response: resp}
}
