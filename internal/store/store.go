// Package store persists console state (request collections, invocation
// history) as JSON blobs in a key-value store.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key does not exist in its bucket.
var ErrNotFound = errors.New("not found")

// Buckets used by the console.
const (
	BucketCollections = "collections"
	BucketHistory     = "history"
)

// Store is a key-value blob store. Keys are namespaced by bucket; values
// are opaque JSON blobs.
type Store interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, value []byte) error
	Delete(ctx context.Context, bucket, key string) error
	// List returns every value in the bucket, keyed by key.
	List(ctx context.Context, bucket string) (map[string][]byte, error)
	Close()
}
