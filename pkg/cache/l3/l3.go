// Package l3 implements the L3 Persistent View (spec.md §4.K): a durable,
// MetadataStore-backed materialization of L2 namespace views, so a
// restarted process doesn't have to re-derive every subject's visible
// mounts from a cold ReBAC expansion before serving its first request.
// Persisted through metadatastore.Store following the same JSON-record
// conventions as pkg/rebac/tuple/tuple.go; like tuple writes, PutView
// overwrites unconditionally with no CAS loop, under
// the "nsview/{zone}/{subject_key}" key layout (spec.md §6).
package l3

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentvfs/core/pkg/cache/l2"
	"github.com/agentvfs/core/pkg/errors"
	"github.com/agentvfs/core/pkg/metadatastore"
	"github.com/agentvfs/core/pkg/mount"
)

// Store is the durable L2-view materialization, one entry per
// (zone, subject) pair.
type Store struct {
	backing metadatastore.Store
}

// New builds a Store over backing. L3 always rides on the shared
// MetadataStore; whether the read path actually consults it is a policy
// decision made above this package.
func New(backing metadatastore.Store) *Store {
	return &Store{backing: backing}
}

func subjectKey(subjectType, subjectID string) string {
	return subjectType + ":" + subjectID
}

func viewStoreKey(zone, subjKey string) []byte {
	return []byte(fmt.Sprintf("nsview/%s/%s", zone, subjKey))
}

func viewPrefix(zone string) []byte {
	return []byte(fmt.Sprintf("nsview/%s/", zone))
}

type persistedView struct {
	Mounts     []mount.Record  `json:"mounts"`
	Prefixes   map[string]bool `json:"prefixes"`
	AtRevision uint64          `json:"at_revision"`
}

func toPersisted(v l2.View) persistedView {
	return persistedView{Mounts: v.Mounts, Prefixes: v.Prefixes, AtRevision: v.AtRevision}
}

func (p persistedView) toView() l2.View {
	return l2.View{Mounts: p.Mounts, Prefixes: p.Prefixes, AtRevision: p.AtRevision}
}

// PutView persists view for (subjectType, subjectID) in zone, overwriting
// any prior materialization unconditionally — L3 is a cache, not a source
// of truth, so it never rejects a write on a CAS mismatch.
func (s *Store) PutView(ctx context.Context, zone, subjectType, subjectID string, view l2.View) (uint64, error) {
	data, err := json.Marshal(toPersisted(view))
	if err != nil {
		return 0, errors.NewCorrupt("namespace view record", err)
	}
	return s.backing.Put(ctx, zone, viewStoreKey(zone, subjectKey(subjectType, subjectID)), data, nil)
}

// GetView returns the materialized view for (subjectType, subjectID) in
// zone, if one has been persisted.
func (s *Store) GetView(ctx context.Context, zone, subjectType, subjectID string) (l2.View, bool, error) {
	entry, err := s.backing.Get(ctx, viewStoreKey(zone, subjectKey(subjectType, subjectID)))
	if err != nil {
		if errors.Is(err, errors.NotFound) {
			return l2.View{}, false, nil
		}
		return l2.View{}, false, err
	}
	var p persistedView
	if err := json.Unmarshal(entry.Value, &p); err != nil {
		return l2.View{}, false, errors.NewCorrupt("namespace view record", err)
	}
	return p.toView(), true, nil
}

// DeleteViews removes every persisted view in zone whose subject key
// satisfies predicate, returning the number deleted. Used by the
// CacheCoordinator's targeted invalidation path.
func (s *Store) DeleteViews(ctx context.Context, zone string, predicate func(subjectKey string) bool) (int, error) {
	prefix := viewPrefix(zone)
	removed := 0
	var cursor []byte
	for {
		entries, next, err := s.backing.PrefixScan(ctx, prefix, cursor, 256)
		if err != nil {
			return removed, err
		}
		for _, e := range entries {
			key := string(e.Key[len(prefix):])
			if !predicate(key) {
				continue
			}
			if _, err := s.backing.Delete(ctx, zone, e.Key, nil); err != nil && !errors.Is(err, errors.NotFound) {
				return removed, err
			}
			removed++
		}
		if next == nil {
			return removed, nil
		}
		cursor = next
	}
}

// DeleteAllViews removes every persisted view in zone, for schema-wide
// invalidation (mount-table mutations, group-edge rebuilds).
func (s *Store) DeleteAllViews(ctx context.Context, zone string) (int, error) {
	return s.DeleteViews(ctx, zone, func(string) bool { return true })
}
