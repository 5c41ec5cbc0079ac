package check_test

import (
	"testing"

	metamemory "github.com/agentvfs/core/pkg/metadatastore/memory"
	"github.com/agentvfs/core/pkg/rebac/check"
	"github.com/agentvfs/core/pkg/rebac/namespace"
	"github.com/agentvfs/core/pkg/rebac/tuple"
)

func newEngine() (*check.Engine, *tuple.Store) {
	ts := tuple.New(metamemory.New())
	return check.New(ts, namespace.Default()), ts
}

func subj(id string) tuple.Subject { return tuple.Subject{Type: "user", ID: id, Zone: "zone1"} }

func TestDirectOwnerGrantsCanRead(t *testing.T) {
	ctx := t.Context()
	e, ts := newEngine()

	_, err := ts.Write(ctx, tuple.Tuple{
		Subject: subj("alice"), Relation: "owner",
		Object: tuple.Object{Type: "file", ID: "doc1", Zone: "zone1"}, Zone: "zone1",
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	d, err := e.Check(ctx, check.Request{Subject: subj("alice"), Permission: "can-read", Object: tuple.Object{Type: "file", ID: "doc1", Zone: "zone1"}, Zone: "zone1"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !d.Allow {
		t.Fatalf("Check owner->can-read = %+v, want Allow", d)
	}

	d, err = e.Check(ctx, check.Request{Subject: subj("mallory"), Permission: "can-read", Object: tuple.Object{Type: "file", ID: "doc1", Zone: "zone1"}, Zone: "zone1"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if d.Allow {
		t.Fatalf("Check stranger->can-read = %+v, want Deny", d)
	}
}

func TestTupleToUsersetParentInheritance(t *testing.T) {
	ctx := t.Context()
	e, ts := newEngine()

	if _, err := ts.Write(ctx, tuple.Tuple{
		Subject: subj("alice"), Relation: "owner",
		Object: tuple.Object{Type: "file", ID: "parent-dir", Zone: "zone1"}, Zone: "zone1",
	}); err != nil {
		t.Fatalf("Write owner: %v", err)
	}
	if _, err := ts.Write(ctx, tuple.Tuple{
		Subject: tuple.Subject{Type: "file", ID: "parent-dir", Zone: "zone1"}, Relation: "parent",
		Object: tuple.Object{Type: "file", ID: "child-file", Zone: "zone1"}, Zone: "zone1",
	}); err != nil {
		t.Fatalf("Write parent pivot: %v", err)
	}

	d, err := e.Check(ctx, check.Request{Subject: subj("alice"), Permission: "can-read", Object: tuple.Object{Type: "file", ID: "child-file", Zone: "zone1"}, Zone: "zone1"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !d.Allow {
		t.Fatalf("Check parent-owner->child can-read = %+v, want Allow", d)
	}
}

func TestGroupMembershipViaUsersetAndClosure(t *testing.T) {
	ctx := t.Context()
	e, ts := newEngine()

	if _, err := e.WriteTuple(ctx, tuple.Tuple{
		Subject: subj("bob"), Relation: "member",
		Object: tuple.Object{Type: "group", ID: "eng", Zone: "zone1"}, Zone: "zone1",
	}); err != nil {
		t.Fatalf("WriteTuple member: %v", err)
	}
	if _, err := ts.Write(ctx, tuple.Tuple{
		Subject: tuple.Subject{Type: "group", ID: "eng", Relation: "member", Zone: "zone1"}, Relation: "viewer",
		Object: tuple.Object{Type: "file", ID: "doc1", Zone: "zone1"}, Zone: "zone1",
	}); err != nil {
		t.Fatalf("Write group viewer: %v", err)
	}

	d, err := e.Check(ctx, check.Request{Subject: subj("bob"), Permission: "can-read", Object: tuple.Object{Type: "file", ID: "doc1", Zone: "zone1"}, Zone: "zone1"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !d.Allow {
		t.Fatalf("Check group member->can-read = %+v, want Allow", d)
	}

	d, err = e.Check(ctx, check.Request{Subject: subj("carol"), Permission: "can-read", Object: tuple.Object{Type: "file", ID: "doc1", Zone: "zone1"}, Zone: "zone1"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if d.Allow {
		t.Fatalf("Check non-member->can-read = %+v, want Deny", d)
	}
}

func TestCheckUnknownRelationIsSchemaError(t *testing.T) {
	ctx := t.Context()
	e, _ := newEngine()

	_, err := e.Check(ctx, check.Request{Subject: subj("alice"), Permission: "nonexistent-relation", Object: tuple.Object{Type: "file", ID: "doc1", Zone: "zone1"}, Zone: "zone1"})
	if err == nil {
		t.Fatalf("Check with unknown relation = nil error, want SchemaError")
	}
}

func TestExpandReturnsDirectAndGroupSubjects(t *testing.T) {
	ctx := t.Context()
	e, ts := newEngine()

	if _, err := ts.Write(ctx, tuple.Tuple{
		Subject: subj("alice"), Relation: "viewer",
		Object: tuple.Object{Type: "file", ID: "doc1", Zone: "zone1"}, Zone: "zone1",
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := ts.Write(ctx, tuple.Tuple{
		Subject: subj("bob"), Relation: "viewer",
		Object: tuple.Object{Type: "file", ID: "doc1", Zone: "zone1"}, Zone: "zone1",
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	subjects, err := e.Expand(ctx, "file", "doc1", "zone1", "can-read")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(subjects) != 2 {
		t.Fatalf("Expand returned %d subjects, want 2", len(subjects))
	}
}

func TestListObjectsFiltersToAllowed(t *testing.T) {
	ctx := t.Context()
	e, ts := newEngine()

	if _, err := ts.Write(ctx, tuple.Tuple{
		Subject: subj("alice"), Relation: "owner",
		Object: tuple.Object{Type: "file", ID: "doc1", Zone: "zone1"}, Zone: "zone1",
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := ts.Write(ctx, tuple.Tuple{
		Subject: subj("bob"), Relation: "owner",
		Object: tuple.Object{Type: "file", ID: "doc2", Zone: "zone1"}, Zone: "zone1",
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	ids, _, err := e.ListObjects(ctx, subj("alice"), "can-read", "file", "zone1", "", 10)
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}
	if len(ids) != 1 || ids[0] != "doc1" {
		t.Fatalf("ListObjects = %v, want [doc1]", ids)
	}
}

func TestDepthBoundExceededIsIndeterminate(t *testing.T) {
	ctx := t.Context()
	e, ts := newEngine()
	e.MaxDepth = 2

	// Chain of tuple_to_userset pivots three deep, exceeding MaxDepth=2.
	if _, err := ts.Write(ctx, tuple.Tuple{
		Subject: subj("alice"), Relation: "owner",
		Object: tuple.Object{Type: "file", ID: "a", Zone: "zone1"}, Zone: "zone1",
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := ts.Write(ctx, tuple.Tuple{
		Subject: tuple.Subject{Type: "file", ID: "a", Zone: "zone1"}, Relation: "parent",
		Object: tuple.Object{Type: "file", ID: "b", Zone: "zone1"}, Zone: "zone1",
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := ts.Write(ctx, tuple.Tuple{
		Subject: tuple.Subject{Type: "file", ID: "b", Zone: "zone1"}, Relation: "parent",
		Object: tuple.Object{Type: "file", ID: "c", Zone: "zone1"}, Zone: "zone1",
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	d, err := e.Check(ctx, check.Request{Subject: subj("alice"), Permission: "can-read", Object: tuple.Object{Type: "file", ID: "c", Zone: "zone1"}, Zone: "zone1"})
	if err == nil {
		t.Fatalf("Check over depth bound = nil error, want Indeterminate; decision=%+v", d)
	}
}
