package project

import (
	"fmt"
	"strings"
)

// RefKind distinguishes the two shapes a dependency ref can take.
type RefKind int

const (
	// RefSelf targets a sibling target on the same project.
	RefSelf RefKind = iota
	// RefUpstream targets the same-named target on every build-time
	// dependency of the project.
	RefUpstream
)

// Ref is a parsed dependsOn entry.
type Ref struct {
	Kind   RefKind
	Target string
}

// ParseRef parses a raw dependsOn string. Accepted forms are "^<target>",
// "self:<target>" and the bare "<target>" shorthand for self.
func ParseRef(raw string) (Ref, error) {
	switch {
	case strings.HasPrefix(raw, "^"):
		target := strings.TrimPrefix(raw, "^")
		if target == "" {
			return Ref{}, fmt.Errorf("dependency ref %q names no target", raw)
		}
		return Ref{Kind: RefUpstream, Target: target}, nil
	case strings.HasPrefix(raw, "self:"):
		target := strings.TrimPrefix(raw, "self:")
		if target == "" {
			return Ref{}, fmt.Errorf("dependency ref %q names no target", raw)
		}
		return Ref{Kind: RefSelf, Target: target}, nil
	case raw == "":
		return Ref{}, fmt.Errorf("empty dependency ref")
	default:
		return Ref{Kind: RefSelf, Target: raw}, nil
	}
}
