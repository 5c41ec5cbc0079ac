// Package memory provides an in-process MetadataStore backed by a sorted
// map, grounded on the teacher's in-memory file store's mutex-guarded map
// approach but generalized to an opaque-key ordered store with CAS batches.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/agentvfs/core/pkg/errors"
	"github.com/agentvfs/core/pkg/metadatastore"
)

type record struct {
	value    []byte
	revision uint64
}

// Store is an in-memory, single-process MetadataStore. Safe for concurrent
// use. Intended for tests and single-node deployments; state does not
// survive process restart.
type Store struct {
	mu        sync.RWMutex
	entries   map[string]*record
	revisions map[string]uint64 // per-zone monotonic revision counter
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		entries:   make(map[string]*record),
		revisions: make(map[string]uint64),
	}
}

func (s *Store) Get(ctx context.Context, key []byte) (*metadatastore.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.entries[string(key)]
	if !ok {
		return nil, errors.NewNotFound("key", string(key))
	}
	return &metadatastore.Entry{Key: key, Value: rec.value, Revision: rec.revision}, nil
}

func (s *Store) Put(ctx context.Context, zone string, key, value []byte, expectedRevision *uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPrecondition(key, expectedRevision); err != nil {
		return 0, err
	}

	rev := s.advanceRevision(zone)
	s.entries[string(key)] = &record{value: value, revision: rev}
	return rev, nil
}

func (s *Store) Delete(ctx context.Context, zone string, key []byte, expectedRevision *uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPrecondition(key, expectedRevision); err != nil {
		return 0, err
	}

	rev := s.advanceRevision(zone)
	delete(s.entries, string(key))
	return rev, nil
}

func (s *Store) PrefixScan(ctx context.Context, prefix, afterKey []byte, limit int) ([]metadatastore.Entry, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.entries {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var out []metadatastore.Entry
	for _, k := range keys {
		if len(afterKey) > 0 && bytes.Compare([]byte(k), afterKey) <= 0 {
			continue
		}
		rec := s.entries[k]
		out = append(out, metadatastore.Entry{Key: []byte(k), Value: rec.value, Revision: rec.revision})
		if limit > 0 && len(out) == limit {
			var cursor []byte
			idx := sort.SearchStrings(keys, k)
			if idx+1 < len(keys) {
				cursor = []byte(k)
			}
			return out, cursor, nil
		}
	}
	return out, nil, nil
}

func (s *Store) CommitBatch(ctx context.Context, batch metadatastore.Batch) (*metadatastore.BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range batch.Writes {
		if err := s.checkPrecondition(w.Key, w.ExpectedRevision); err != nil {
			return nil, err
		}
	}

	rev := s.advanceRevision(batch.Zone)

	reads := make([]*metadatastore.Entry, len(batch.Reads))
	for i, r := range batch.Reads {
		if rec, ok := s.entries[string(r.Key)]; ok {
			reads[i] = &metadatastore.Entry{Key: r.Key, Value: rec.value, Revision: rec.revision}
		}
	}

	for _, w := range batch.Writes {
		if w.Value == nil {
			delete(s.entries, string(w.Key))
			continue
		}
		s.entries[string(w.Key)] = &record{value: w.Value, revision: rev}
	}

	return &metadatastore.BatchResult{Revision: rev, Reads: reads}, nil
}

func (s *Store) Close() error { return nil }

// checkPrecondition must be called with s.mu held.
func (s *Store) checkPrecondition(key []byte, expectedRevision *uint64) error {
	if expectedRevision == nil {
		return nil
	}
	rec, exists := s.entries[string(key)]
	if *expectedRevision == 0 {
		if exists {
			return errors.NewCASFailure(string(key))
		}
		return nil
	}
	if !exists || rec.revision != *expectedRevision {
		return errors.NewCASFailure(string(key))
	}
	return nil
}

// advanceRevision must be called with s.mu held.
func (s *Store) advanceRevision(zone string) uint64 {
	s.revisions[zone]++
	return s.revisions[zone]
}
