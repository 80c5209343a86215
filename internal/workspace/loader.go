package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/monogrid/internal/ctxlog"
	"github.com/specialistvlad/monogrid/internal/fsutil"
	"github.com/specialistvlad/monogrid/internal/project"
	"github.com/zclconf/go-cty/cty"
)

const (
	workspaceFileName = "workspace.hcl"
	projectFileName   = "project.hcl"
)

// workspaceRoot is the decode target for workspace.hcl.
type workspaceRoot struct {
	Workspace      *workspaceBlock     `hcl:"workspace,block"`
	NamedInputs    []*namedInputBlock  `hcl:"named_input,block"`
	TargetDefaults []*targetBlockNamed `hcl:"target_default,block"`
}

type workspaceBlock struct {
	CacheableTargets []string `hcl:"cacheable_targets,optional"`
}

type namedInputBlock struct {
	Name     string   `hcl:"name,label"`
	Patterns []string `hcl:"patterns"`
}

// projectRoot is the decode target for a project.hcl file.
type projectRoot struct {
	Projects []*projectBlock `hcl:"project,block"`
}

type projectBlock struct {
	Name              string              `hcl:"name,label"`
	Root              string              `hcl:"root,optional"`
	DependsOn         []string            `hcl:"depends_on,optional"`
	DynamicDependsOn  []string            `hcl:"dynamic_depends_on,optional"`
	ImplicitDependsOn []string            `hcl:"implicit_depends_on,optional"`
	Targets           []*targetBlockNamed `hcl:"target,block"`
}

type targetBlockNamed struct {
	Name                 string                `hcl:"name,label"`
	Executor             string                `hcl:"executor,optional"`
	DependsOn            []string              `hcl:"depends_on,optional"`
	Inputs               []string              `hcl:"inputs,optional"`
	Env                  []string              `hcl:"env,optional"`
	Continuous           bool                  `hcl:"continuous,optional"`
	Cacheable            bool                  `hcl:"cacheable,optional"`
	DefaultConfiguration string                `hcl:"default_configuration,optional"`
	Options              cty.Value             `hcl:"options,optional"`
	Configurations       []*configurationBlock `hcl:"configuration,block"`
}

type configurationBlock struct {
	Name    string    `hcl:"name,label"`
	Options cty.Value `hcl:"options,optional"`
}

// Loader parses a workspace directory into a project graph and workspace
// configuration.
type Loader struct{}

// NewLoader creates a workspace loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses workspace.hcl (if present) and every project.hcl under root.
func (l *Loader) Load(ctx context.Context, root string) (*project.Graph, *Config, error) {
	logger := ctxlog.FromContext(ctx)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving workspace root: %w", err)
	}

	cfg := &Config{
		Root:           absRoot,
		NamedInputs:    make(map[string][]string),
		TargetDefaults: make(map[string]*project.TargetConfiguration),
	}

	parser := hclparse.NewParser()

	wsFile := filepath.Join(absRoot, workspaceFileName)
	if _, statErr := os.Stat(wsFile); statErr == nil {
		if err := l.loadWorkspaceFile(parser, wsFile, cfg); err != nil {
			return nil, nil, err
		}
	}
	logger.Debug("Workspace configuration loaded.",
		"named_inputs", len(cfg.NamedInputs), "target_defaults", len(cfg.TargetDefaults))

	projectFiles, err := fsutil.FindFilesNamed(absRoot, projectFileName)
	if err != nil {
		return nil, nil, fmt.Errorf("discovering project files: %w", err)
	}
	logger.Debug("Discovered project files.", "count", len(projectFiles))

	graph := &project.Graph{
		Nodes:        make(map[string]*project.Node),
		Dependencies: make(map[string][]project.Dependency),
	}

	for _, file := range projectFiles {
		if err := l.loadProjectFile(parser, absRoot, file, cfg, graph); err != nil {
			return nil, nil, err
		}
	}

	if err := graph.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid project graph: %w", err)
	}
	logger.Debug("Project graph loaded.", "project_count", len(graph.Nodes))

	return graph, cfg, nil
}

func (l *Loader) loadWorkspaceFile(parser *hclparse.Parser, path string, cfg *Config) error {
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse %s: %w", path, diags)
	}

	var root workspaceRoot
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("failed to decode %s: %w", path, diags)
	}

	if root.Workspace != nil {
		cfg.CacheableTargets = root.Workspace.CacheableTargets
	}
	for _, input := range root.NamedInputs {
		cfg.NamedInputs[input.Name] = input.Patterns
	}
	for _, def := range root.TargetDefaults {
		target, err := targetFromBlock(def)
		if err != nil {
			return fmt.Errorf("in %s: %w", path, err)
		}
		cfg.TargetDefaults[def.Name] = target
	}
	return nil
}

func (l *Loader) loadProjectFile(parser *hclparse.Parser, absRoot, path string, cfg *Config, graph *project.Graph) error {
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse %s: %w", path, diags)
	}

	var root projectRoot
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("failed to decode %s: %w", path, diags)
	}

	for _, block := range root.Projects {
		if _, exists := graph.Nodes[block.Name]; exists {
			return fmt.Errorf("project %q declared more than once (second declaration in %s)", block.Name, path)
		}

		projectRootDir := block.Root
		if projectRootDir == "" {
			rel, err := filepath.Rel(absRoot, filepath.Dir(path))
			if err != nil {
				return fmt.Errorf("resolving root for project %q: %w", block.Name, err)
			}
			projectRootDir = rel
		}

		node := &project.Node{
			Name:    block.Name,
			Root:    projectRootDir,
			Targets: make(map[string]*project.TargetConfiguration),
		}

		for _, tb := range block.Targets {
			target, err := targetFromBlock(tb)
			if err != nil {
				return fmt.Errorf("in project %q: %w", block.Name, err)
			}
			if defaults, ok := cfg.TargetDefaults[tb.Name]; ok {
				// Fields set on the target win; defaults only fill gaps.
				if err := mergo.Merge(target, defaults); err != nil {
					return fmt.Errorf("merging defaults for %s:%s: %w", block.Name, tb.Name, err)
				}
			}
			node.Targets[tb.Name] = target
		}

		graph.Nodes[block.Name] = node
		graph.Dependencies[block.Name] = append(
			edges(block.DependsOn, project.EdgeStatic),
			append(edges(block.DynamicDependsOn, project.EdgeDynamic),
				edges(block.ImplicitDependsOn, project.EdgeImplicit)...)...)
	}
	return nil
}

func edges(targets []string, edgeType project.EdgeType) []project.Dependency {
	deps := make([]project.Dependency, 0, len(targets))
	for _, t := range targets {
		deps = append(deps, project.Dependency{Target: t, Type: edgeType})
	}
	return deps
}

func targetFromBlock(tb *targetBlockNamed) (*project.TargetConfiguration, error) {
	options, err := ctyObjectToOptions(tb.Options)
	if err != nil {
		return nil, fmt.Errorf("target %q: %w", tb.Name, err)
	}

	target := &project.TargetConfiguration{
		Executor:             tb.Executor,
		DependsOn:            tb.DependsOn,
		Inputs:               tb.Inputs,
		Env:                  tb.Env,
		Options:              options,
		DefaultConfiguration: tb.DefaultConfiguration,
		Continuous:           tb.Continuous,
		Cacheable:            tb.Cacheable,
	}

	if len(tb.Configurations) > 0 {
		target.Configurations = make(map[string]map[string]any, len(tb.Configurations))
		for _, cb := range tb.Configurations {
			opts, err := ctyObjectToOptions(cb.Options)
			if err != nil {
				return nil, fmt.Errorf("target %q configuration %q: %w", tb.Name, cb.Name, err)
			}
			if opts == nil {
				opts = map[string]any{}
			}
			target.Configurations[cb.Name] = opts
		}
	}

	return target, nil
}
