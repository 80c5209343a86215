// Package cache defines the cache store collaborator the scheduler consults
// before dispatching tasks, plus three implementations: a digest-keyed local
// disk store, an HTTP remote store and a no-op store for cache-disabled
// runs.
//
// Stores are read and written concurrently by in-flight tasks. Writes are
// at-most-one-writer-per-key: because content is deterministic by digest, a
// losing writer during a race simply discards its write.
package cache
