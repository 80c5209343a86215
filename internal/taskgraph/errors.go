package taskgraph

import (
	"fmt"
	"strings"
)

// CycleError reports a cycle in the blocking-dependency relation. Path holds
// the ordered task ids walked from the first occurrence of the repeated task
// back to itself, e.g. ["a:build", "a:lint", "b:build", "a:build"].
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("task dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}

// MissingConfigurationError reports a requested configuration that is
// neither declared on the target nor covered by a default configuration.
type MissingConfigurationError struct {
	Project       string
	Target        string
	Configuration string
}

func (e *MissingConfigurationError) Error() string {
	return fmt.Sprintf("configuration %q is not declared on target %s:%s and the target has no default configuration",
		e.Configuration, e.Project, e.Target)
}

// UnknownProjectError reports a request naming a project absent from the
// project graph.
type UnknownProjectError struct {
	Project string
}

func (e *UnknownProjectError) Error() string {
	return fmt.Sprintf("project %q does not exist in the workspace", e.Project)
}

// UnknownTargetError reports a request or self-ref naming a target the
// project does not declare. Missing targets on `^` expansion are skipped
// silently instead, since not every dependency implements every target.
type UnknownTargetError struct {
	Project string
	Target  string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("project %q declares no target %q", e.Project, e.Target)
}
