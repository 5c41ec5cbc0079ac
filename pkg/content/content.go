// Package content implements ContentStore (spec.md §4.D): content-addressed,
// reference-counted storage over a blobstore.Store, with SHA-256 hashing
// and grace-window garbage collection. Grounded on the teacher's
// refcount-cascade-delete pattern (pkg/payload/offloader/dedup.go's
// DeleteWithRefCount) and its orphan-sweep GC (pkg/payload/gc/gc.go),
// adapted from per-block refcounting to whole-blob refcounting.
package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/agentvfs/core/pkg/blobstore"
	"github.com/agentvfs/core/pkg/errors"
	"github.com/agentvfs/core/pkg/metadatastore"
)

// GraceWindow is the minimum time a zero-refcount blob is held before a GC
// sweep may delete its bytes, per spec.md §4.D ("minimum 60s").
const GraceWindow = 60 * time.Second

// smallBufferThreshold is the 64 KiB bound for buffering a small write in
// memory instead of staging it through the backend (spec.md §4.D). Put does
// not consult it: every write, whatever its size, is staged through the
// blob store.
const smallBufferThreshold = 64 * 1024

// Hash is a hex-encoded SHA-256 content hash.
type Hash string

// Store implements ContentStore over a blobstore.Store for bytes and a
// metadatastore.Store for refcount bookkeeping.
type Store struct {
	blobs blobstore.Store
	meta  metadatastore.Store
	zone  string
}

// New builds a content Store scoped to one zone, backed by blobs for bytes
// and meta for refcount/tombstone bookkeeping.
func New(zone string, blobs blobstore.Store, meta metadatastore.Store) *Store {
	return &Store{blobs: blobs, meta: meta, zone: zone}
}

type blobRecord struct {
	Hash     string `json:"hash"`
	Size     int64  `json:"size"`
	RefCount int64  `json:"refcount"`
}

func refKey(hash Hash) []byte  { return []byte("content/" + string(hash)) }
func tombKey(hash Hash) []byte { return []byte("content-tombstone/" + string(hash)) }
func blobKey(hash Hash) string { return "blob/" + string(hash) }
func stagingKey() string       { return "staging/" + uuid.NewString() }

type tombstone struct {
	Hash   string    `json:"hash"`
	DeadAt time.Time `json:"dead_at"`
}

// Put streams r through blobstore staging, computing its SHA-256 hash, then
// either registers a new blob entry (refcount 1) or increments an existing
// one's refcount (deduplication), per spec.md §4.D's algorithm.
func (s *Store) Put(ctx context.Context, r io.Reader) (Hash, int64, error) {
	staging := stagingKey()
	hasher := sha256.New()
	size, err := s.blobs.Write(ctx, staging, io.TeeReader(r, hasher))
	if err != nil {
		return "", 0, err
	}

	hash := Hash(hex.EncodeToString(hasher.Sum(nil)))
	key := refKey(hash)

	for {
		entry, getErr := s.meta.Get(ctx, key)
		var rec blobRecord
		var expected *uint64

		switch {
		case errors.Is(getErr, errors.NotFound):
			rec = blobRecord{Hash: string(hash), Size: size, RefCount: 1}
			var zero uint64
			expected = &zero
		case getErr != nil:
			_ = s.blobs.Delete(ctx, staging)
			return "", 0, getErr
		default:
			if err := json.Unmarshal(entry.Value, &rec); err != nil {
				_ = s.blobs.Delete(ctx, staging)
				return "", 0, errors.NewCorrupt("content record", err)
			}
			rec.RefCount++
			expected = &entry.Revision
		}

		data, err := json.Marshal(rec)
		if err != nil {
			_ = s.blobs.Delete(ctx, staging)
			return "", 0, errors.NewCorrupt("content record", err)
		}

		_, err = s.meta.Put(ctx, s.zone, key, data, expected)
		if err != nil {
			if errors.Is(err, errors.CASFailure) {
				continue
			}
			_ = s.blobs.Delete(ctx, staging)
			return "", 0, err
		}

		if rec.RefCount == 1 {
			// First writer: publish the staged object under its canonical
			// content key. A later duplicate writer discards its staging
			// copy instead (deduplication).
			if err := s.publish(ctx, staging, hash); err != nil {
				return "", 0, err
			}
		} else {
			_ = s.blobs.Delete(ctx, staging)
		}
		_ = s.meta.Delete(ctx, s.zone, tombKey(hash), nil) // clear any stale tombstone
		return hash, size, nil
	}
}

func (s *Store) publish(ctx context.Context, staging string, hash Hash) error {
	r, err := s.blobs.Read(ctx, staging, nil)
	if err != nil {
		return err
	}
	defer r.Close()
	if _, err := s.blobs.Write(ctx, blobKey(hash), r); err != nil {
		return err
	}
	return s.blobs.Delete(ctx, staging)
}

// Get returns a reader over the blob bytes for hash. Returns NotFound-derived
// Corrupt if the metadata record is absent (spec.md §4.D: missing hash
// indicates a metadata/data inconsistency, not an ordinary miss).
func (s *Store) Get(ctx context.Context, hash Hash) (io.ReadCloser, error) {
	if _, err := s.meta.Get(ctx, refKey(hash)); err != nil {
		if errors.Is(err, errors.NotFound) {
			return nil, errors.NewCorrupt(string(hash), fmt.Errorf("content record missing for referenced hash"))
		}
		return nil, err
	}
	return s.blobs.Read(ctx, blobKey(hash), nil)
}

// Exists reports whether hash has a live (refcount > 0) blob entry.
func (s *Store) Exists(ctx context.Context, hash Hash) (bool, error) {
	entry, err := s.meta.Get(ctx, refKey(hash))
	if errors.Is(err, errors.NotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var rec blobRecord
	if err := json.Unmarshal(entry.Value, &rec); err != nil {
		return false, errors.NewCorrupt("content record", err)
	}
	return rec.RefCount > 0, nil
}

// RefCount returns hash's current live refcount, or NotFound if no record
// exists for hash.
func (s *Store) RefCount(ctx context.Context, hash Hash) (int64, error) {
	entry, err := s.meta.Get(ctx, refKey(hash))
	if err != nil {
		return 0, err
	}
	var rec blobRecord
	if err := json.Unmarshal(entry.Value, &rec); err != nil {
		return 0, errors.NewCorrupt("content record", err)
	}
	return rec.RefCount, nil
}

// Size returns hash's byte size, as recorded when it was first written.
func (s *Store) Size(ctx context.Context, hash Hash) (int64, error) {
	entry, err := s.meta.Get(ctx, refKey(hash))
	if err != nil {
		return 0, err
	}
	var rec blobRecord
	if err := json.Unmarshal(entry.Value, &rec); err != nil {
		return 0, errors.NewCorrupt("content record", err)
	}
	return rec.Size, nil
}

// Incref increments hash's refcount, e.g. when a new inode/version starts
// referencing already-stored content.
func (s *Store) Incref(ctx context.Context, hash Hash) (int64, error) {
	return s.adjustRef(ctx, hash, 1)
}

// Decref decrements hash's refcount. When it reaches zero, a tombstone is
// written; the bytes are reclaimed later by Sweep once GraceWindow elapses.
func (s *Store) Decref(ctx context.Context, hash Hash) (int64, error) {
	return s.adjustRef(ctx, hash, -1)
}

func (s *Store) adjustRef(ctx context.Context, hash Hash, delta int64) (int64, error) {
	key := refKey(hash)
	for {
		entry, err := s.meta.Get(ctx, key)
		if err != nil {
			return 0, err
		}
		var rec blobRecord
		if err := json.Unmarshal(entry.Value, &rec); err != nil {
			return 0, errors.NewCorrupt("content record", err)
		}
		rec.RefCount += delta
		if rec.RefCount < 0 {
			rec.RefCount = 0
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return 0, errors.NewCorrupt("content record", err)
		}
		if _, err := s.meta.Put(ctx, s.zone, key, data, &entry.Revision); err != nil {
			if errors.Is(err, errors.CASFailure) {
				continue
			}
			return 0, err
		}

		if rec.RefCount == 0 {
			if err := s.writeTombstone(ctx, hash); err != nil {
				return 0, err
			}
		}
		return rec.RefCount, nil
	}
}

func (s *Store) writeTombstone(ctx context.Context, hash Hash) error {
	data, err := json.Marshal(tombstone{Hash: string(hash), DeadAt: time.Now().UTC()})
	if err != nil {
		return errors.NewCorrupt("tombstone", err)
	}
	_, err = s.meta.Put(ctx, s.zone, tombKey(hash), data, nil)
	return err
}
