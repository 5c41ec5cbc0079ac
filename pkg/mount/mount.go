// Package mount implements MountTable/PathRouter (spec.md §4.F):
// longest-prefix resolution of a VFS path to a backend, persisted through
// metadatastore.Store and, for the in-process view, grounded on the
// teacher's named-resource Registry (pkg/registry/registry.go) — a
// conflict-checked map keyed by mount point rather than by store name.
package mount

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agentvfs/core/pkg/errors"
	"github.com/agentvfs/core/pkg/inode"
	"github.com/agentvfs/core/pkg/metadatastore"
)

// ObjectType names the ReBAC object-type granularity a mount's paths are
// checked against (spec.md §4.F).
type ObjectType string

const (
	ObjectTypeFile            ObjectType = "file"
	ObjectTypeDatabaseTable   ObjectType = "database:table"
	ObjectTypeDatabaseRow     ObjectType = "database:row"
	ObjectTypeBlobBucket      ObjectType = "blob:bucket"
	ObjectTypeMemoryNamespace ObjectType = "memory:namespace"
)

// Flags are admin-set mount options (e.g. read-only).
type Flags struct {
	ReadOnly bool
}

// Record is one entry in the mount table (spec.md §3's Mount entity).
type Record struct {
	MountPoint string // canonical path
	BackendID  string
	ObjectType ObjectType
	Zone       string
	Flags      Flags
}

// Table is the in-process MountTable, persisted through a metadatastore.Store
// under the "mount/{zone}/{mount_point}" key layout (spec.md §6), with an
// in-memory index for fast longest-prefix resolution.
type Table struct {
	backing metadatastore.Store

	mu     sync.RWMutex
	byZone map[string][]Record // kept sorted by MountPoint length descending
}

// New builds a Table backed by store, loading any previously persisted
// mounts for the given zones eagerly is the caller's responsibility via
// Load.
func New(backing metadatastore.Store) *Table {
	return &Table{backing: backing, byZone: make(map[string][]Record)}
}

func mountKey(zone, mountPoint string) []byte {
	return []byte(fmt.Sprintf("mount/%s%s", zone, mountPoint))
}

func mountKeyPrefix(zone string) []byte {
	return []byte(fmt.Sprintf("mount/%s/", zone))
}

// Load populates the in-memory index for zone from the backing store. Call
// once at startup per zone, or after an out-of-process mount change.
func (t *Table) Load(ctx context.Context, zone string) error {
	var out []Record
	prefix := mountKeyPrefix(zone)
	var cursor []byte
	for {
		entries, next, err := t.backing.PrefixScan(ctx, prefix, cursor, 256)
		if err != nil {
			return err
		}
		for _, e := range entries {
			var r Record
			if err := json.Unmarshal(e.Value, &r); err != nil {
				return errors.NewCorrupt("mount record", err)
			}
			out = append(out, r)
		}
		if next == nil {
			break
		}
		cursor = next
	}

	sortByMountPointLengthDesc(out)

	t.mu.Lock()
	t.byZone[zone] = out
	t.mu.Unlock()
	return nil
}

func sortByMountPointLengthDesc(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		return len(recs[i].MountPoint) > len(recs[j].MountPoint)
	})
}

// AddMount registers a new mount, persisting it and publishing it to the
// in-memory index. Returns MountConflict if mountPoint overlaps an existing
// mount other than by strict parent containment (spec.md §4.F).
func (t *Table) AddMount(ctx context.Context, rec Record) error {
	path, err := inode.NormalizePath(rec.MountPoint)
	if err != nil {
		return err
	}
	rec.MountPoint = path

	t.mu.Lock()
	existing := append([]Record(nil), t.byZone[rec.Zone]...)
	t.mu.Unlock()

	for _, e := range existing {
		if e.MountPoint == rec.MountPoint {
			return errors.NewMountConflict(rec.MountPoint)
		}
		if overlapsNotContainment(e.MountPoint, rec.MountPoint) {
			return errors.NewMountConflict(rec.MountPoint)
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.NewCorrupt("mount record", err)
	}
	var zero uint64
	if _, err := t.backing.Put(ctx, rec.Zone, mountKey(rec.Zone, rec.MountPoint), data, &zero); err != nil {
		if errors.Is(err, errors.CASFailure) {
			return errors.NewMountConflict(rec.MountPoint)
		}
		return err
	}

	t.mu.Lock()
	t.byZone[rec.Zone] = append(t.byZone[rec.Zone], rec)
	sortByMountPointLengthDesc(t.byZone[rec.Zone])
	t.mu.Unlock()
	return nil
}

// overlapsNotContainment reports whether a and b conflict: one is a string
// prefix of the other (e.g. /dat and /data, or the same point twice)
// without being its strict path ancestor. Disjoint siblings and strict
// ancestors do not conflict.
func overlapsNotContainment(a, b string) bool {
	if !strings.HasPrefix(a, b) && !strings.HasPrefix(b, a) {
		return false
	}
	return !isPathAncestor(a, b) && !isPathAncestor(b, a)
}

func isPathAncestor(ancestor, descendant string) bool {
	if ancestor == "/" {
		return true
	}
	return strings.HasPrefix(descendant, ancestor+"/")
}

// RemoveMount deletes a mount by its exact mount point.
func (t *Table) RemoveMount(ctx context.Context, zone, mountPoint string) error {
	path, err := inode.NormalizePath(mountPoint)
	if err != nil {
		return err
	}
	if _, err := t.backing.Delete(ctx, zone, mountKey(zone, path), nil); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	recs := t.byZone[zone]
	out := recs[:0]
	for _, r := range recs {
		if r.MountPoint != path {
			out = append(out, r)
		}
	}
	t.byZone[zone] = out
	return nil
}

// Resolve performs longest-prefix resolution of path within zone, per
// spec.md §4.F: mount points are tried in decreasing key length, matching
// must respect path separator boundaries.
func (t *Table) Resolve(ctx context.Context, zone, path string) (Record, string, error) {
	path, err := inode.NormalizePath(path)
	if err != nil {
		return Record{}, "", err
	}

	t.mu.RLock()
	recs := t.byZone[zone]
	t.mu.RUnlock()

	for _, r := range recs {
		if r.MountPoint == "/" {
			return r, path, nil
		}
		if path == r.MountPoint || strings.HasPrefix(path, r.MountPoint+"/") {
			rel := strings.TrimPrefix(path, r.MountPoint)
			if rel == "" {
				rel = "/"
			}
			return r, rel, nil
		}
	}
	return Record{}, "", errors.NewNotFound("mount", path)
}

// ListMounts returns zone's mounts ordered by mount point (ascending),
// matching spec.md §4.F's "ordered[]".
func (t *Table) ListMounts(zone string) []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := append([]Record(nil), t.byZone[zone]...)
	sort.Slice(out, func(i, j int) bool { return out[i].MountPoint < out[j].MountPoint })
	return out
}
