package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const (
	artifactFileName = "artifact.json"
	commitFileName   = "commit"
)

// LocalStore keeps artifacts on the local disk, one directory per digest. A
// commit marker distinguishes fully-written entries from torn ones, and a
// per-digest file lock enforces the at-most-one-writer rule.
type LocalStore struct {
	dir string
}

// NewLocalStore creates (if needed) and opens a store under dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Get returns the artifact stored under digest, or (nil, nil) when the entry
// is absent or uncommitted.
func (s *LocalStore) Get(ctx context.Context, digest string) (*Artifact, error) {
	entryDir := filepath.Join(s.dir, digest)
	if _, err := os.Stat(filepath.Join(entryDir, commitFileName)); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	payload, err := os.ReadFile(filepath.Join(entryDir, artifactFileName))
	if err != nil {
		return nil, err
	}
	var art Artifact
	if err := json.Unmarshal(payload, &art); err != nil {
		return nil, fmt.Errorf("corrupt cache entry %s: %w", digest, err)
	}
	return &art, nil
}

// Put stores the artifact under digest. A concurrent or previous writer for
// the same digest wins silently: content is deterministic per digest, so the
// losing write is redundant.
func (s *LocalStore) Put(ctx context.Context, digest string, art *Artifact) error {
	lock := flock.New(filepath.Join(s.dir, digest+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return err
	}
	if !locked {
		// Another writer holds the key; its content is identical by
		// construction, so this write is discarded.
		return nil
	}
	defer lock.Unlock()

	entryDir := filepath.Join(s.dir, digest)
	if _, err := os.Stat(filepath.Join(entryDir, commitFileName)); err == nil {
		// Already committed by an earlier writer.
		return nil
	}
	if err := os.MkdirAll(entryDir, 0o755); err != nil {
		return err
	}

	payload, err := json.Marshal(art)
	if err != nil {
		return err
	}

	// Write-then-rename so a reader never observes a partial artifact.
	tmp := filepath.Join(entryDir, artifactFileName+".tmp")
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, filepath.Join(entryDir, artifactFileName)); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(entryDir, commitFileName), nil, 0o644)
}
