package l3_test

import (
	"testing"

	"github.com/agentvfs/core/pkg/cache/l2"
	"github.com/agentvfs/core/pkg/cache/l3"
	"github.com/agentvfs/core/pkg/errors"
	metamemory "github.com/agentvfs/core/pkg/metadatastore/memory"
	"github.com/agentvfs/core/pkg/mount"
)

func TestPutThenGetViewRoundTrips(t *testing.T) {
	ctx := t.Context()
	store := l3.New(metamemory.New())

	view := l2.View{
		Mounts:     []mount.Record{{MountPoint: "/data", BackendID: "b1", ObjectType: mount.ObjectTypeFile, Zone: "zone1"}},
		Prefixes:   map[string]bool{"/data": true},
		AtRevision: 7,
	}
	if _, err := store.PutView(ctx, "zone1", "user", "alice", view); err != nil {
		t.Fatalf("PutView: %v", err)
	}

	got, ok, err := store.GetView(ctx, "zone1", "user", "alice")
	if err != nil {
		t.Fatalf("GetView: %v", err)
	}
	if !ok {
		t.Fatalf("GetView ok = false, want true")
	}
	if got.AtRevision != 7 || len(got.Mounts) != 1 || got.Mounts[0].MountPoint != "/data" {
		t.Fatalf("GetView = %+v, want round-tripped view", got)
	}
	if !got.Prefixes["/data"] {
		t.Fatalf("GetView Prefixes = %+v, want /data present", got.Prefixes)
	}
}

func TestGetViewMissingReturnsNotOK(t *testing.T) {
	ctx := t.Context()
	store := l3.New(metamemory.New())

	_, ok, err := store.GetView(ctx, "zone1", "user", "nobody")
	if err != nil {
		t.Fatalf("GetView: %v", err)
	}
	if ok {
		t.Fatalf("GetView ok = true for unpersisted subject, want false")
	}
}

func TestDeleteViewsRemovesOnlyMatching(t *testing.T) {
	ctx := t.Context()
	store := l3.New(metamemory.New())

	for _, id := range []string{"alice", "bob"} {
		if _, err := store.PutView(ctx, "zone1", "user", id, l2.View{AtRevision: 1}); err != nil {
			t.Fatalf("PutView(%s): %v", id, err)
		}
	}

	removed, err := store.DeleteViews(ctx, "zone1", func(subjectKey string) bool {
		return subjectKey == "user:alice"
	})
	if err != nil {
		t.Fatalf("DeleteViews: %v", err)
	}
	if removed != 1 {
		t.Fatalf("DeleteViews removed = %d, want 1", removed)
	}

	if _, ok, err := store.GetView(ctx, "zone1", "user", "alice"); err != nil || ok {
		t.Fatalf("GetView(alice) after delete = ok=%v err=%v, want not found", ok, err)
	}
	if _, ok, err := store.GetView(ctx, "zone1", "user", "bob"); err != nil || !ok {
		t.Fatalf("GetView(bob) after delete = ok=%v err=%v, want still present", ok, err)
	}
}

func TestDeleteAllViewsClearsZone(t *testing.T) {
	ctx := t.Context()
	store := l3.New(metamemory.New())

	for _, id := range []string{"alice", "bob", "carol"} {
		if _, err := store.PutView(ctx, "zone1", "user", id, l2.View{AtRevision: 1}); err != nil {
			t.Fatalf("PutView(%s): %v", id, err)
		}
	}
	if _, err := store.PutView(ctx, "zone2", "user", "dave", l2.View{AtRevision: 1}); err != nil {
		t.Fatalf("PutView(dave, zone2): %v", err)
	}

	removed, err := store.DeleteAllViews(ctx, "zone1")
	if err != nil {
		t.Fatalf("DeleteAllViews: %v", err)
	}
	if removed != 3 {
		t.Fatalf("DeleteAllViews removed = %d, want 3", removed)
	}

	if _, ok, err := store.GetView(ctx, "zone1", "user", "alice"); err != nil || ok {
		t.Fatalf("zone1 view survived DeleteAllViews")
	}
	if _, ok, err := store.GetView(ctx, "zone2", "user", "dave"); err != nil || !ok {
		t.Fatalf("zone2 view was wrongly deleted by zone1's DeleteAllViews")
	}
}

func TestDeleteViewsOnEmptyZoneIsNoop(t *testing.T) {
	ctx := t.Context()
	store := l3.New(metamemory.New())

	removed, err := store.DeleteAllViews(ctx, "zone1")
	if err != nil && !errors.Is(err, errors.NotFound) {
		t.Fatalf("DeleteAllViews on empty zone: %v", err)
	}
	if removed != 0 {
		t.Fatalf("DeleteAllViews on empty zone removed = %d, want 0", removed)
	}
}
