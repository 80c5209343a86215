package app

import "errors"

// Config holds everything an App instance needs to run.
type Config struct {
	// WorkspacePath is the workspace root directory.
	WorkspacePath string
	// Target is the target name to run, e.g. "build".
	Target string
	// Projects restricts the run to the named projects. Empty means every
	// project declaring the target.
	Projects []string
	// Configuration is the named configuration to request, empty for none.
	Configuration string
	// Overrides are CLI-level option overrides applied on top of target and
	// configuration options.
	Overrides map[string]any

	Parallel           int
	ContinueOnError    bool
	SkipCache          bool
	IncludeDynamicDeps bool
	// DryRun stops after hashing and prints the task graph.
	DryRun bool

	// CacheDir is the local cache store directory, relative paths resolve
	// against the workspace root.
	CacheDir string
	// RemoteCacheURL, when set, replaces the local store with the HTTP one.
	RemoteCacheURL string

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.Target == "" {
		return nil, errors.New("Target is a required configuration field and cannot be empty")
	}
	if cfg.WorkspacePath == "" {
		cfg.WorkspacePath = "."
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = ".monogrid/cache"
	}
	return &cfg, nil
}
