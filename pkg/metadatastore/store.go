// Package metadatastore defines the ordered-key primitive store that backs
// every other component: inodes, mounts, ReBAC tuples, version records, and
// namespace views all live here under disjoint key prefixes. The store
// itself has no notion of those higher-level entities; it only guarantees
// byte-ordered keys, compare-and-swap writes, and a monotonic per-zone
// revision counter advanced on every committed write.
package metadatastore

import (
	"context"

	"github.com/agentvfs/core/pkg/errors"
)

// Entry is one key/value pair as stored, along with the revision at which
// it was last written.
type Entry struct {
	Key      []byte
	Value    []byte
	Revision uint64
}

// WriteOp is one write inside a Batch. Value == nil means delete.
// ExpectedRevision, when non-nil, is a CAS precondition: the key's current
// revision must equal *ExpectedRevision, or zero if the key must be absent.
// A nil ExpectedRevision means unconditional write.
type WriteOp struct {
	Key              []byte
	Value            []byte
	ExpectedRevision *uint64
}

// ReadOp names a key a Batch wants read as part of its atomic snapshot; the
// result is returned in BatchResult.Reads in the same order.
type ReadOp struct {
	Key []byte
}

// Batch is a set of reads and writes committed together with strict
// serializable semantics: reads observe one consistent snapshot, writes
// commit atomically, and on success the zone's revision counter advances by
// exactly one regardless of how many keys were touched.
type Batch struct {
	Zone   string
	Reads  []ReadOp
	Writes []WriteOp
}

// BatchResult carries the outcome of a committed Batch.
type BatchResult struct {
	Revision uint64
	Reads    []*Entry // parallel to Batch.Reads; nil entry means not found
}

// Store is the ordered-key primitive. Keys are opaque byte strings compared
// lexicographically; values are opaque byte strings. Implementations return
// *errors.CoreError with Code errors.CASFailure, errors.Unavailable, or
// errors.Corrupt per the failure semantics below.
type Store interface {
	// Get fetches the current value and revision for key. Returns a
	// *errors.CoreError with Code NotFound if key is absent.
	Get(ctx context.Context, key []byte) (*Entry, error)

	// Put writes value at key, advancing the owning zone's revision
	// counter. expectedRevision, if non-nil, is a CAS precondition;
	// mismatch returns a CASFailure error.
	Put(ctx context.Context, zone string, key, value []byte, expectedRevision *uint64) (revision uint64, err error)

	// Delete removes key, advancing the owning zone's revision counter.
	// expectedRevision, if non-nil, is a CAS precondition.
	Delete(ctx context.Context, zone string, key []byte, expectedRevision *uint64) (revision uint64, err error)

	// PrefixScan iterates entries in key order starting after afterKey
	// (exclusive; nil/empty means start of prefix) up to limit entries.
	// The returned cursor, if non-nil, is passed as afterKey to continue.
	// Scans may miss keys inserted concurrently after the scan begins;
	// this is acceptable for list operations.
	PrefixScan(ctx context.Context, prefix, afterKey []byte, limit int) (entries []Entry, nextCursor []byte, err error)

	// CommitBatch executes a transactional batch: all Reads are resolved
	// against one consistent snapshot, then all Writes are validated
	// against their CAS preconditions and applied atomically. On success
	// the zone's revision counter advances by one.
	CommitBatch(ctx context.Context, batch Batch) (*BatchResult, error)

	// Close releases resources held by the store.
	Close() error
}

// casFailure builds a CASFailure error naming key. The backends construct
// errors.NewCASFailure directly and do not call it.
func casFailure(key []byte) error {
	return errors.NewCASFailure(string(key))
}
