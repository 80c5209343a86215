package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/monogrid/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// overrideFlag collects repeatable --override k=v pairs.
type overrideFlag map[string]any

func (o overrideFlag) String() string {
	pairs := make([]string, 0, len(o))
	for k, v := range o {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(pairs, ",")
}

func (o overrideFlag) Set(raw string) error {
	key, value, found := strings.Cut(raw, "=")
	if !found || key == "" {
		return fmt.Errorf("override %q is not in key=value form", raw)
	}
	o[key] = value
	return nil
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("monogrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
monogrid - A monorepo task orchestrator with content-addressed caching.

Usage:
  monogrid [options] TARGET [PROJECT...]

Arguments:
  TARGET
    Target name to run, e.g. "build" or "test".
  PROJECT...
    Projects to run the target for. Defaults to every project declaring it.

Options:
`)
		flagSet.PrintDefaults()
	}

	overrides := overrideFlag{}
	configurationFlag := flagSet.String("configuration", "", "Named configuration to request.")
	parallelFlag := flagSet.Int("parallel", 3, "Maximum number of tasks running concurrently.")
	continueFlag := flagSet.Bool("continue-on-error", false, "Keep running independent tasks after a failure.")
	skipCacheFlag := flagSet.Bool("skip-cache", false, "Bypass the cache store entirely.")
	dynamicFlag := flagSet.Bool("include-dynamic-deps", false, "Expand ^target over dynamic project edges too.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Build and hash the task graph, print it, run nothing.")
	workspaceFlag := flagSet.String("workspace", ".", "Path to the workspace root.")
	cacheDirFlag := flagSet.String("cache-dir", ".monogrid/cache", "Local cache store directory.")
	remoteCacheFlag := flagSet.String("remote-cache", "", "Base URL of a remote cache server. Replaces the local store.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flagSet.Var(overrides, "override", "Option override as key=value. Repeatable.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() == 0 {
		slog.Debug("No target provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}
	target := flagSet.Arg(0)
	projects := flagSet.Args()[1:]

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if *parallelFlag < 1 {
		return nil, false, &ExitError{Code: 2, Message: "invalid parallel: must be at least 1"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		WorkspacePath:      *workspaceFlag,
		Target:             target,
		Projects:           projects,
		Configuration:      *configurationFlag,
		Overrides:          overrides,
		Parallel:           *parallelFlag,
		ContinueOnError:    *continueFlag,
		SkipCache:          *skipCacheFlag,
		IncludeDynamicDeps: *dynamicFlag,
		DryRun:             *dryRunFlag,
		CacheDir:           *cacheDirFlag,
		RemoteCacheURL:     *remoteCacheFlag,
		LogFormat:          logFormat,
		LogLevel:           logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.")
	return config, false, nil
}
