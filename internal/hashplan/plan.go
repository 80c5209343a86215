package hashplan

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// FragmentKind classifies one contribution to a task's digest.
type FragmentKind string

const (
	// KindFile is the content hash of one input file, keyed by its
	// workspace-relative path.
	KindFile FragmentKind = "file"
	// KindRuntime covers environment variable values and the
	// workspace-global configuration digest.
	KindRuntime FragmentKind = "runtime"
	// KindDependency is the finalized digest of a blocking dependency.
	KindDependency FragmentKind = "dep"
	// KindIdentity covers executor name, configuration name and the
	// effective option set, so equal inputs with different invocations
	// never collide on cache key.
	KindIdentity FragmentKind = "identity"
)

// Fragment is one (kind, key, value) contribution to a digest.
type Fragment struct {
	Kind  FragmentKind `json:"kind"`
	Key   string       `json:"key"`
	Value string       `json:"value"`
}

// Plan is the full hash plan of one task.
type Plan struct {
	// TaskID names the task the plan belongs to.
	TaskID string `json:"taskId"`
	// Fragments is the canonically ordered fragment list the digest was
	// reduced from.
	Fragments []Fragment `json:"fragments"`
	// Digest is the task's cache key, a pure function of Fragments.
	Digest string `json:"digest"`
	// Degraded marks plans whose inputs (or a dependency's inputs) could
	// not be fully hashed. Degraded tasks always execute.
	Degraded bool `json:"degraded,omitempty"`
	// Cacheable is the effective cacheability: the task's own flag, forced
	// off when the plan is degraded.
	Cacheable bool `json:"cacheable"`
}

// Warning is a non-fatal problem encountered while planning one task.
type Warning struct {
	TaskID  string
	Message string
}

// MissingDigest is the sentinel recorded for a dependency whose plan is
// absent or degraded. Dependents embedding it are themselves degraded, so
// the sentinel can never produce a false cache hit.
const MissingDigest = "missing"

// finalize sorts the fragments canonically and reduces them to the digest.
func (p *Plan) finalize() {
	sort.Slice(p.Fragments, func(i, j int) bool {
		a, b := p.Fragments[i], p.Fragments[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Key < b.Key
	})

	h := xxhash.New()
	for _, f := range p.Fragments {
		// NUL separators keep (kind, key, value) boundaries unambiguous.
		h.WriteString(string(f.Kind))
		h.Write([]byte{0})
		h.WriteString(f.Key)
		h.Write([]byte{0})
		h.WriteString(f.Value)
		h.Write([]byte{0})
	}
	p.Digest = fmt.Sprintf("%016x", h.Sum64())
}

// hashString returns the canonical hex hash of a string value.
func hashString(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

// hashJSON returns the canonical hex hash of a value's JSON serialization.
// encoding/json sorts map keys, making the serialization stable.
func hashJSON(v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(payload)), nil
}
