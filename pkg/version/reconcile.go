package version

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentvfs/core/pkg/content"
	"github.com/agentvfs/core/pkg/errors"
)

// ReconcileStats summarizes one reconciliation sweep.
type ReconcileStats struct {
	VersionsScanned int
	HashesAdjusted  int
}

// Reconcile fixes the refcount drift spec.md §4.E describes: "a crash after
// (1) but before (3) leaves a dangling blob with refcount = 1." It
// recomputes, for every content hash reachable from a live version record in
// this zone, the expected reference count (current version pointers count
// once; non-current, still-listed versions count once each, since they
// remain reachable per spec.md's "previous versions remain reachable until
// GC decrements their refs"), and brings the content store's live refcount
// in line by issuing compensating Incref/Decref calls.
func (s *Store) Reconcile(ctx context.Context) (*ReconcileStats, error) {
	stats := &ReconcileStats{}
	expected := make(map[content.Hash]int64)

	prefix := []byte(fmt.Sprintf("ver/%s/", s.zone))
	var cursor []byte
	for {
		entries, next, err := s.backing.PrefixScan(ctx, prefix, cursor, 512)
		if err != nil {
			return stats, err
		}
		for _, e := range entries {
			stats.VersionsScanned++
			var p persistedVersion
			if err := json.Unmarshal(e.Value, &p); err != nil {
				continue
			}
			expected[content.Hash(p.ContentHash)]++
		}
		if next == nil {
			break
		}
		cursor = next
	}

	for hash, want := range expected {
		got, err := s.content.RefCount(ctx, hash)
		if err != nil && !errors.Is(err, errors.NotFound) {
			continue
		}
		diff := want - got
		if diff == 0 {
			continue
		}
		stats.HashesAdjusted++
		for diff > 0 {
			if _, err := s.content.Incref(ctx, hash); err != nil {
				break
			}
			diff--
		}
		for diff < 0 {
			if _, err := s.content.Decref(ctx, hash); err != nil {
				break
			}
			diff++
		}
	}

	return stats, nil
}
