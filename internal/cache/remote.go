package cache

import (
	"context"
	"fmt"
	"net/http"

	"resty.dev/v3"
)

// RemoteStore talks to an HTTP cache server keyed by digest. Any transport
// or server error surfaces to the caller, which degrades it to a cache miss.
type RemoteStore struct {
	client *resty.Client
}

// NewRemoteStore creates a store client for the given base URL, e.g.
// "https://cache.example.com".
func NewRemoteStore(baseURL string) *RemoteStore {
	return &RemoteStore{
		client: resty.New().SetBaseURL(baseURL),
	}
}

// Close releases the underlying HTTP client resources.
func (s *RemoteStore) Close() error {
	return s.client.Close()
}

// Get fetches the artifact for digest; a 404 is a miss, not an error.
func (s *RemoteStore) Get(ctx context.Context, digest string) (*Artifact, error) {
	var art Artifact
	res, err := s.client.R().
		SetContext(ctx).
		SetResult(&art).
		Get("/v1/cache/" + digest)
	if err != nil {
		return nil, err
	}
	if res.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("cache server returned %s for digest %s", res.Status(), digest)
	}
	return &art, nil
}

// Put uploads the artifact under digest. The server owns the
// at-most-one-writer rule for remote entries; a conflict response is not an
// error.
func (s *RemoteStore) Put(ctx context.Context, digest string, art *Artifact) error {
	res, err := s.client.R().
		SetContext(ctx).
		SetBody(art).
		Put("/v1/cache/" + digest)
	if err != nil {
		return err
	}
	if res.StatusCode() == http.StatusConflict {
		return nil
	}
	if !res.IsSuccess() {
		return fmt.Errorf("cache server returned %s storing digest %s", res.Status(), digest)
	}
	return nil
}
