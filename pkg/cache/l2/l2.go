// Package l2 implements the L2 Namespace/Mount-View Cache (spec.md §4.J):
// per-(subject, zone) derived sets of visible mounts and path prefixes,
// computed from ReBAC expansion over mount objects. Grounded on the same
// teacher locking pattern as l1 (global map + per-entry state), scaled
// down since this tier is keyed only by subject rather than sharded.
package l2

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/agentvfs/core/pkg/mount"
	"github.com/agentvfs/core/pkg/rebac/check"
	"github.com/agentvfs/core/pkg/rebac/tuple"
)

// View is one subject's derived namespace visibility.
type View struct {
	Mounts     []mount.Record // ordered, per visible_mounts()
	Prefixes   map[string]bool
	AtRevision uint64
}

func viewKey(subjectType, subjectID, zone string) string {
	return subjectType + ":" + subjectID + "@" + zone
}

// Cache is the in-process L2 view cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]View

	mounts *mount.Table
	engine *check.Engine
}

// New builds an L2 Cache deriving views from mounts and engine.
func New(mounts *mount.Table, engine *check.Engine) *Cache {
	return &Cache{entries: make(map[string]View), mounts: mounts, engine: engine}
}

// VisibleMounts returns subject's visible mounts in zone, computing and
// caching the view on a miss.
func (c *Cache) VisibleMounts(ctx context.Context, subj tuple.Subject, zone string) ([]mount.Record, error) {
	v, err := c.view(ctx, subj, zone)
	if err != nil {
		return nil, err
	}
	return v.Mounts, nil
}

// VisiblePrefixes returns the set of path prefixes subject can list/read
// in zone.
func (c *Cache) VisiblePrefixes(ctx context.Context, subj tuple.Subject, zone string) (map[string]bool, error) {
	v, err := c.view(ctx, subj, zone)
	if err != nil {
		return nil, err
	}
	return v.Prefixes, nil
}

func (c *Cache) view(ctx context.Context, subj tuple.Subject, zone string) (View, error) {
	key := viewKey(subj.Type, subj.ID, zone)

	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	v, err := c.derive(ctx, subj, zone)
	if err != nil {
		return View{}, err
	}

	c.mu.Lock()
	c.entries[key] = v
	c.mu.Unlock()
	return v, nil
}

// derive recomputes subject's view from scratch via ReBAC expansion over
// every mount in zone (spec.md §4.J).
func (c *Cache) derive(ctx context.Context, subj tuple.Subject, zone string) (View, error) {
	all := c.mounts.ListMounts(zone)
	var visible []mount.Record
	prefixes := make(map[string]bool)
	var maxRevision uint64

	for _, m := range all {
		d, err := c.engine.Check(ctx, check.Request{
			Subject: subj, Permission: "can-read",
			Object: tuple.Object{Type: "mount", ID: m.MountPoint, Zone: zone}, Zone: zone,
		})
		if err != nil {
			continue // Indeterminate/Unavailable mounts are excluded from visibility, never assumed visible
		}
		if d.AtRevision > maxRevision {
			maxRevision = d.AtRevision
		}
		if d.Allow {
			visible = append(visible, m)
			prefixes[m.MountPoint] = true
		}
	}

	sort.Slice(visible, func(i, j int) bool { return visible[i].MountPoint < visible[j].MountPoint })
	return View{Mounts: visible, Prefixes: prefixes, AtRevision: maxRevision}, nil
}

// Invalidate drops the cached view for subject in zone, e.g. after a
// tuple write touching a mount object or a group the subject belongs to
// (spec.md §4.J).
func (c *Cache) Invalidate(subjectType, subjectID, zone string) {
	c.mu.Lock()
	delete(c.entries, viewKey(subjectType, subjectID, zone))
	c.mu.Unlock()
}

// InvalidateAll drops every cached view — used for schema-wide mount
// changes.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]View)
	c.mu.Unlock()
}

// Size returns the number of resident subject views, for metrics export.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// AllowsPath reports whether path falls under one of subject's visible
// prefixes, per spec.md §4.J's safety rule: stale reads MAY return False
// but MUST NOT return True for a path outside the true visible set — this
// just does the prefix containment check against whatever view is
// currently cached/derived.
func AllowsPath(prefixes map[string]bool, path string) bool {
	for p := range prefixes {
		if p == "/" || path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
