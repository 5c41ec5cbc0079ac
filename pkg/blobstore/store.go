// Package blobstore defines the opaque byte-storage contract that backs
// ContentStore (§4.D) blob bytes. A BlobStore knows nothing about content
// hashes or refcounts; it stores and retrieves byte streams under whatever
// key the caller supplies.
package blobstore

import (
	"context"
	"io"
)

// Store is the backend I/O contract. Writes are not required to be atomic
// at the stream level but MUST be atomic at the object level: either the
// whole blob becomes visible or none of it does.
type Store interface {
	// Read returns a reader for the object at key. If rng is non-nil, only
	// that byte range is returned. Returns a *errors.CoreError with Code
	// NotFound if key is absent.
	Read(ctx context.Context, key string, rng *Range) (io.ReadCloser, error)

	// Write stores the entirety of r under key, replacing any existing
	// object at that key, and returns the number of bytes written.
	Write(ctx context.Context, key string, r io.Reader) (size int64, err error)

	// Delete removes key. Idempotent: deleting an absent key returns nil.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns up to limit keys with the given prefix, in no
	// particular order unless the backend happens to provide one.
	List(ctx context.Context, prefix string, limit int) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}

// Range is an inclusive byte range passed to Read. A nil *Range means the
// whole object.
type Range struct {
	Offset int64
	Length int64 // 0 means to end of object
}

// Capabilities describes optional backend traits the content layer may use
// to pick a more efficient code path on the critical path; the core never
// requires more than seek-less streaming read/write.
type Capabilities struct {
	RangeRead bool
	Seekable  bool
	Append    bool
}

// CapabilityReporter is implemented by backends that can describe their
// optional traits.
type CapabilityReporter interface {
	Capabilities() Capabilities
}
