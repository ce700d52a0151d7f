// Package sink abstracts the durable byte-object store a stream writes
// into. A sink exposes a single narrow capability, Put, implemented for
// the local filesystem, S3-compatible object stores, and an in-memory
// double for tests. Sinks never read or modify stored objects.
package sink

import "context"

// Sink persists named byte blobs. A completed Put is durably visible
// before the call returns. Implementations must be safe for concurrent
// use: the worker pool issues puts from multiple goroutines.
type Sink interface {
	Put(ctx context.Context, key string, data []byte) error
	Close() error
}
