package l2_test

import (
	"testing"

	"github.com/agentvfs/core/pkg/cache/l2"
	metamemory "github.com/agentvfs/core/pkg/metadatastore/memory"
	"github.com/agentvfs/core/pkg/mount"
	"github.com/agentvfs/core/pkg/rebac/check"
	"github.com/agentvfs/core/pkg/rebac/namespace"
	"github.com/agentvfs/core/pkg/rebac/tuple"
)

func setup(t *testing.T) (*mount.Table, *tuple.Store, *check.Engine) {
	t.Helper()
	store := metamemory.New()
	table := mount.New(store)
	tuples := tuple.New(store)
	engine := check.New(tuples, namespace.Default())
	return table, tuples, engine
}

func TestVisibleMountsOnlyIncludesGrantedMounts(t *testing.T) {
	ctx := t.Context()
	table, tuples, engine := setup(t)

	if err := table.AddMount(ctx, mount.Record{MountPoint: "/data", BackendID: "b1", ObjectType: mount.ObjectTypeFile, Zone: "zone1"}); err != nil {
		t.Fatalf("AddMount /data: %v", err)
	}
	if err := table.AddMount(ctx, mount.Record{MountPoint: "/secret", BackendID: "b2", ObjectType: mount.ObjectTypeFile, Zone: "zone1"}); err != nil {
		t.Fatalf("AddMount /secret: %v", err)
	}

	subj := tuple.Subject{Type: "user", ID: "alice", Zone: "zone1"}
	if _, err := tuples.Write(ctx, tuple.Tuple{
		Subject: subj, Relation: "can-admin",
		Object: tuple.Object{Type: "mount", ID: "/data", Zone: "zone1"}, Zone: "zone1",
	}); err != nil {
		t.Fatalf("Write tuple: %v", err)
	}

	cache := l2.New(table, engine)
	mounts, err := cache.VisibleMounts(ctx, subj, "zone1")
	if err != nil {
		t.Fatalf("VisibleMounts: %v", err)
	}
	if len(mounts) != 1 || mounts[0].MountPoint != "/data" {
		t.Fatalf("VisibleMounts = %+v, want only /data", mounts)
	}
}

func TestViewIsCachedAcrossCalls(t *testing.T) {
	ctx := t.Context()
	table, tuples, engine := setup(t)

	if err := table.AddMount(ctx, mount.Record{MountPoint: "/data", BackendID: "b1", ObjectType: mount.ObjectTypeFile, Zone: "zone1"}); err != nil {
		t.Fatalf("AddMount: %v", err)
	}
	subj := tuple.Subject{Type: "user", ID: "alice", Zone: "zone1"}
	if _, err := tuples.Write(ctx, tuple.Tuple{
		Subject: subj, Relation: "can-admin",
		Object: tuple.Object{Type: "mount", ID: "/data", Zone: "zone1"}, Zone: "zone1",
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	cache := l2.New(table, engine)
	if _, err := cache.VisibleMounts(ctx, subj, "zone1"); err != nil {
		t.Fatalf("first VisibleMounts: %v", err)
	}
	if cache.Size() != 1 {
		t.Fatalf("Size after first derive = %d, want 1", cache.Size())
	}

	// Revoke directly against the tuple store (bypassing any coordinator):
	// the cached view must still reflect the grant until explicitly
	// invalidated.
	if _, err := tuples.Delete(ctx, tuple.Tuple{
		Subject: subj, Relation: "can-admin",
		Object: tuple.Object{Type: "mount", ID: "/data", Zone: "zone1"}, Zone: "zone1",
	}); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	mounts, err := cache.VisibleMounts(ctx, subj, "zone1")
	if err != nil {
		t.Fatalf("second VisibleMounts: %v", err)
	}
	if len(mounts) != 1 {
		t.Fatalf("second VisibleMounts = %+v, want cached stale view with 1 entry", mounts)
	}

	cache.Invalidate(subj.Type, subj.ID, "zone1")
	mounts, err = cache.VisibleMounts(ctx, subj, "zone1")
	if err != nil {
		t.Fatalf("VisibleMounts after Invalidate: %v", err)
	}
	if len(mounts) != 0 {
		t.Fatalf("VisibleMounts after Invalidate = %+v, want none", mounts)
	}
}

func TestInvalidateAllClearsEveryView(t *testing.T) {
	ctx := t.Context()
	table, _, engine := setup(t)
	cache := l2.New(table, engine)

	for _, id := range []string{"alice", "bob"} {
		subj := tuple.Subject{Type: "user", ID: id, Zone: "zone1"}
		if _, err := cache.VisibleMounts(ctx, subj, "zone1"); err != nil {
			t.Fatalf("VisibleMounts(%s): %v", id, err)
		}
	}
	if cache.Size() != 2 {
		t.Fatalf("Size = %d, want 2", cache.Size())
	}

	cache.InvalidateAll()
	if cache.Size() != 0 {
		t.Fatalf("Size after InvalidateAll = %d, want 0", cache.Size())
	}
}

func TestAllowsPath(t *testing.T) {
	prefixes := map[string]bool{"/data": true}

	cases := []struct {
		path string
		want bool
	}{
		{"/data", true},
		{"/data/report.csv", true},
		{"/other", false},
		{"/data2", false},
	}
	for _, c := range cases {
		if got := l2.AllowsPath(prefixes, c.path); got != c.want {
			t.Fatalf("AllowsPath(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}
