package cache

import (
	"context"
	"time"
)

// Artifact is a stored task result, replayable on a cache hit.
type Artifact struct {
	// TaskID records which task produced the artifact, for diagnostics only;
	// identity lives entirely in the digest key.
	TaskID string `json:"taskId"`
	// Output is the task's captured terminal output.
	Output []byte `json:"output"`
	// CreatedAt is when the artifact was stored.
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the cache collaborator interface. Get returns (nil, nil) on a
// miss; any error is treated by the caller as a forced miss, never as a
// build failure.
type Store interface {
	Get(ctx context.Context, digest string) (*Artifact, error)
	Put(ctx context.Context, digest string, art *Artifact) error
}

// NopStore misses every get and discards every put.
type NopStore struct{}

func (NopStore) Get(ctx context.Context, digest string) (*Artifact, error) { return nil, nil }

func (NopStore) Put(ctx context.Context, digest string, art *Artifact) error { return nil }
