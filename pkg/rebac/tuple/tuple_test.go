package tuple_test

import (
	"testing"

	"github.com/agentvfs/core/pkg/errors"
	metamemory "github.com/agentvfs/core/pkg/metadatastore/memory"
	"github.com/agentvfs/core/pkg/rebac/tuple"
)

func mkTuple(subjType, subjID, relation, objType, objID, zone string) tuple.Tuple {
	return tuple.Tuple{
		Subject:  tuple.Subject{Type: subjType, ID: subjID, Zone: zone},
		Relation: relation,
		Object:   tuple.Object{Type: objType, ID: objID, Zone: zone},
		Zone:     zone,
	}
}

func TestWriteAndReadAt(t *testing.T) {
	ctx := t.Context()
	s := tuple.New(metamemory.New())

	tp := mkTuple("user", "alice", "owner", "file", "doc1", "zone1")
	rev, err := s.Write(ctx, tp)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if rev == 0 {
		t.Fatalf("Write revision = 0, want > 0")
	}

	got, err := s.ReadAt(ctx, tp, 0)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if got.Subject.ID != "alice" || got.Relation != "owner" {
		t.Fatalf("ReadAt = %+v", got)
	}
}

func TestWriteRejectsCrossTenant(t *testing.T) {
	ctx := t.Context()
	s := tuple.New(metamemory.New())

	tp := mkTuple("user", "alice", "owner", "file", "doc1", "zone1")
	tp.Object.Zone = "zone2"
	if _, err := s.Write(ctx, tp); !errors.Is(err, errors.CrossTenant) {
		t.Fatalf("Write cross-tenant = %v, want CrossTenant", err)
	}
}

func TestDeleteRemovesTuple(t *testing.T) {
	ctx := t.Context()
	s := tuple.New(metamemory.New())

	tp := mkTuple("user", "alice", "owner", "file", "doc1", "zone1")
	if _, err := s.Write(ctx, tp); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := s.Delete(ctx, tp); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.ReadAt(ctx, tp, 0); !errors.Is(err, errors.NotFound) {
		t.Fatalf("ReadAt after delete = %v, want NotFound", err)
	}
}

func TestReadAtRevisionGate(t *testing.T) {
	ctx := t.Context()
	s := tuple.New(metamemory.New())

	tp := mkTuple("user", "alice", "owner", "file", "doc1", "zone1")
	rev, err := s.Write(ctx, tp)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := s.ReadAt(ctx, tp, rev+1); !errors.Is(err, errors.NotFound) {
		t.Fatalf("ReadAt with min_revision beyond write = %v, want NotFound", err)
	}
	if _, err := s.ReadAt(ctx, tp, rev); err != nil {
		t.Fatalf("ReadAt at exact revision: %v", err)
	}
}

func TestListByObject(t *testing.T) {
	ctx := t.Context()
	s := tuple.New(metamemory.New())

	for _, subj := range []string{"alice", "bob", "carol"} {
		tp := mkTuple("user", subj, "can-read", "file", "doc1", "zone1")
		if _, err := s.Write(ctx, tp); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	// Tuple on a different object must not be returned.
	if _, err := s.Write(ctx, mkTuple("user", "dave", "can-read", "file", "doc2", "zone1")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entries, _, err := s.List(ctx, tuple.Filter{Zone: "zone1", ObjectType: "file", ObjectID: "doc1"}, "", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("List returned %d entries, want 3", len(entries))
	}
}

func TestListByRelationAcrossZoneScan(t *testing.T) {
	ctx := t.Context()
	s := tuple.New(metamemory.New())

	if _, err := s.Write(ctx, mkTuple("user", "alice", "owner", "file", "doc1", "zone1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := s.Write(ctx, mkTuple("user", "bob", "can-read", "file", "doc1", "zone1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := s.Write(ctx, mkTuple("user", "carol", "owner", "file", "doc2", "zone1")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entries, _, err := s.List(ctx, tuple.Filter{Zone: "zone1", Relation: "owner"}, "", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List by relation returned %d entries, want 2", len(entries))
	}
}

func TestUsersetSubjectRoundTrips(t *testing.T) {
	ctx := t.Context()
	s := tuple.New(metamemory.New())

	tp := tuple.Tuple{
		Subject:  tuple.Subject{Type: "group", ID: "eng", Relation: "member", Zone: "zone1"},
		Relation: "can-read",
		Object:   tuple.Object{Type: "file", ID: "doc1", Zone: "zone1"},
		Zone:     "zone1",
	}
	if _, err := s.Write(ctx, tp); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.ReadAt(ctx, tp, 0)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !got.Subject.IsUserset() || got.Subject.Relation != "member" {
		t.Fatalf("ReadAt userset subject = %+v", got.Subject)
	}
}
