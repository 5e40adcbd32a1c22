package geobase

import (
	"context"
)

// Backend defines the byte-level object storage the document store is built on.
// Keys are slash-separated paths; documents live under "<database>/<collection>/".
type Backend interface {
	// Object operations
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Conditional operations (for optimistic locking on update).
	// PutIfMatch returns the new ETag after a successful put.
	PutIfMatch(ctx context.Context, key string, data []byte, expectedETag string) (string, error)
	GetWithETag(ctx context.Context, key string) (data []byte, etag string, err error)

	// List returns every key under prefix, in lexical order
	List(ctx context.Context, prefix string) ([]string, error)

	// Ping is the liveness probe used while connecting and by health checks
	Ping(ctx context.Context) error

	// Resource cleanup
	Close() error
}
