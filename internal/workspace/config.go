package workspace

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/specialistvlad/monogrid/internal/project"
)

// Config carries the workspace-global settings that apply across projects.
type Config struct {
	// Root is the absolute path of the workspace directory.
	Root string
	// NamedInputs maps input group names to their file patterns. Targets
	// reference groups by name in their inputs list.
	NamedInputs map[string][]string
	// TargetDefaults are merged into every project target of the same name;
	// values set on the target itself win.
	TargetDefaults map[string]*project.TargetConfiguration
	// CacheableTargets lists target names whose results are cacheable
	// workspace-wide, in addition to per-target cacheable flags.
	CacheableTargets []string
}

// IsCacheable reports whether the named target is on the workspace-wide
// cacheable list.
func (c *Config) IsCacheable(target string) bool {
	return slices.Contains(c.CacheableTargets, target)
}

// ResolveInputs expands a target's inputs list: entries naming a named-input
// group are replaced by the group's patterns, anything else passes through
// as a literal pattern. An empty list falls back to the "default" group if
// declared, otherwise to the project's whole source tree.
func (c *Config) ResolveInputs(inputs []string) []string {
	if len(inputs) == 0 {
		if def, ok := c.NamedInputs["default"]; ok {
			return slices.Clone(def)
		}
		return []string{"**/*"}
	}
	var patterns []string
	for _, in := range inputs {
		if group, ok := c.NamedInputs[in]; ok {
			patterns = append(patterns, group...)
			continue
		}
		patterns = append(patterns, in)
	}
	return patterns
}

// Digest returns a content hash of the workspace-global configuration.
// Every task's cache key embeds it, so a change to named inputs or target
// defaults invalidates all cached work. encoding/json sorts map keys, which
// makes the serialization, and therefore the digest, canonical.
func (c *Config) Digest() string {
	payload, err := json.Marshal(struct {
		NamedInputs      map[string][]string                     `json:"namedInputs"`
		TargetDefaults   map[string]*project.TargetConfiguration `json:"targetDefaults"`
		CacheableTargets []string                                `json:"cacheableTargets"`
	}{c.NamedInputs, c.TargetDefaults, c.CacheableTargets})
	if err != nil {
		// Only func/chan values can fail to marshal, and the struct has none.
		panic(err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(payload))
}
