package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/specialistvlad/monogrid/internal/cache"
	"github.com/specialistvlad/monogrid/internal/ctxlog"
	"github.com/specialistvlad/monogrid/internal/events"
	"github.com/specialistvlad/monogrid/internal/orchestrator"
	"github.com/specialistvlad/monogrid/internal/project"
	"github.com/specialistvlad/monogrid/internal/runner"
	"github.com/specialistvlad/monogrid/internal/workspace"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	projects *project.Graph
	ws       *workspace.Config
	store    cache.Store
	orch     *orchestrator.Orchestrator
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger. Failing to load the
// workspace is a fatal startup error and panics; the entrypoint recovers.
func NewApp(outW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	projects, ws, err := workspace.NewLoader().Load(ctx, cfg.WorkspacePath)
	if err != nil {
		panic(fmt.Errorf("failed to load workspace: %w", err))
	}
	logger.Debug("Workspace loaded.", "root", ws.Root, "project_count", len(projects.Nodes))

	store, err := newStore(cfg, ws)
	if err != nil {
		panic(fmt.Errorf("failed to initialize cache store: %w", err))
	}

	return &App{
		outW:     outW,
		logger:   logger,
		projects: projects,
		ws:       ws,
		store:    store,
		orch:     orchestrator.New(projects, ws, store, runner.NewLocal(ws.Root), events.LogEmitter{}),
	}
}

// newStore picks the cache store implementation from the configuration.
func newStore(cfg *Config, ws *workspace.Config) (cache.Store, error) {
	if cfg.SkipCache {
		return cache.NopStore{}, nil
	}
	if cfg.RemoteCacheURL != "" {
		return cache.NewRemoteStore(cfg.RemoteCacheURL), nil
	}
	dir := cfg.CacheDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(ws.Root, dir)
	}
	return cache.NewLocalStore(dir)
}

// Projects returns the loaded project graph. This is primarily for testing.
func (a *App) Projects() *project.Graph {
	return a.projects
}

// Close releases store resources, e.g. the remote cache HTTP client.
func (a *App) Close() error {
	if closer, ok := a.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
