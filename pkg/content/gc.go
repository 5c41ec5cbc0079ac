package content

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/agentvfs/core/pkg/errors"
)

// SweepStats summarizes one GC sweep, mirroring the shape of the teacher's
// orphan-block GC stats (pkg/payload/gc.Stats) adapted to whole-blob
// tombstone reclamation.
type SweepStats struct {
	TombstonesScanned int
	BlobsReclaimed    int
	Errors            int
}

// SweepOptions configures a GC pass.
type SweepOptions struct {
	// GraceWindow overrides the default grace period before a zero-refcount
	// blob's bytes may be reclaimed. Zero uses the package default.
	GraceWindow time.Duration
}

// Sweep scans tombstoned (refcount-zero) blobs and deletes the underlying
// bytes for any whose grace window has elapsed, per spec.md §4.D: "a
// deferred GC task deletes the blob bytes after a grace window... to
// tolerate race-with-reader windows."
func (s *Store) Sweep(ctx context.Context, opts SweepOptions) (*SweepStats, error) {
	grace := opts.GraceWindow
	if grace <= 0 {
		grace = GraceWindow
	}

	stats := &SweepStats{}
	prefix := []byte("content-tombstone/")
	var cursor []byte

	for {
		entries, next, err := s.meta.PrefixScan(ctx, prefix, cursor, 256)
		if err != nil {
			return stats, err
		}
		for _, e := range entries {
			stats.TombstonesScanned++

			var tomb tombstone
			if err := json.Unmarshal(e.Value, &tomb); err != nil {
				stats.Errors++
				continue
			}
			if time.Since(tomb.DeadAt) < grace {
				continue
			}

			hash := Hash(strings.TrimPrefix(string(e.Key), string(prefix)))
			refEntry, err := s.meta.Get(ctx, refKey(hash))
			if err != nil && !errors.Is(err, errors.NotFound) {
				stats.Errors++
				continue
			}
			if err == nil {
				var rec blobRecord
				if jsonErr := json.Unmarshal(refEntry.Value, &rec); jsonErr == nil && rec.RefCount > 0 {
					// Refcount went back up (Incref raced with the tombstone
					// write's grace window); skip reclamation.
					_ = s.meta.Delete(ctx, s.zone, tombKey(hash), nil)
					continue
				}
			}

			if err := s.blobs.Delete(ctx, blobKey(hash)); err != nil {
				stats.Errors++
				continue
			}
			_ = s.meta.Delete(ctx, s.zone, refKey(hash), nil)
			_ = s.meta.Delete(ctx, s.zone, tombKey(hash), nil)
			stats.BlobsReclaimed++
		}

		if next == nil {
			return stats, nil
		}
		cursor = next
	}
}
