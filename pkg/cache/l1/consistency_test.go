package l1_test

import (
	"testing"

	"github.com/agentvfs/core/pkg/cache/l1"
	metamemory "github.com/agentvfs/core/pkg/metadatastore/memory"
	"github.com/agentvfs/core/pkg/rebac/check"
	"github.com/agentvfs/core/pkg/rebac/namespace"
	"github.com/agentvfs/core/pkg/rebac/tuple"
)

func newChecker(t *testing.T) (*l1.Checker, *tuple.Store) {
	t.Helper()
	tuples := tuple.New(metamemory.New())
	engine := check.New(tuples, namespace.Default())
	cache := l1.New()
	return l1.NewChecker(engine, cache), tuples
}

func TestEventualServesCachedDecisionRegardlessOfRevision(t *testing.T) {
	ctx := t.Context()
	checker, tuples := newChecker(t)

	subj := tuple.Subject{Type: "user", ID: "alice", Zone: "zone1"}
	obj := tuple.Object{Type: "file", ID: "doc1", Zone: "zone1"}
	req := check.Request{Subject: subj, Permission: "can-read", Object: obj, Zone: "zone1"}

	if _, err := tuples.Write(ctx, tuple.Tuple{Subject: subj, Relation: "viewer", Object: obj, Zone: "zone1"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	d, err := checker.Check(ctx, req, l1.Eventual, 0)
	if err != nil || !d.Allow {
		t.Fatalf("first Check = %+v, %v, want Allow=true", d, err)
	}
	if d.CacheHit {
		t.Fatalf("first Check CacheHit = true, want false (cold)")
	}

	// Revoke without going through a coordinator: L1 is not invalidated,
	// so EVENTUAL must still serve the stale allow.
	if _, err := tuples.Delete(ctx, tuple.Tuple{Subject: subj, Relation: "viewer", Object: obj, Zone: "zone1"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	d2, err := checker.Check(ctx, req, l1.Eventual, 0)
	if err != nil {
		t.Fatalf("second Check: %v", err)
	}
	if !d2.CacheHit || !d2.Allow {
		t.Fatalf("second Check = %+v, want cached Allow=true", d2)
	}
}

func TestStrongBypassesCacheEntirely(t *testing.T) {
	ctx := t.Context()
	checker, tuples := newChecker(t)

	subj := tuple.Subject{Type: "user", ID: "alice", Zone: "zone1"}
	obj := tuple.Object{Type: "file", ID: "doc1", Zone: "zone1"}
	req := check.Request{Subject: subj, Permission: "can-read", Object: obj, Zone: "zone1"}

	if _, err := tuples.Write(ctx, tuple.Tuple{Subject: subj, Relation: "viewer", Object: obj, Zone: "zone1"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := checker.Check(ctx, req, l1.Eventual, 0); err != nil {
		t.Fatalf("warm Check: %v", err)
	}

	if _, err := tuples.Delete(ctx, tuple.Tuple{Subject: subj, Relation: "viewer", Object: obj, Zone: "zone1"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	d, err := checker.Check(ctx, req, l1.Strong, 0)
	if err != nil {
		t.Fatalf("Strong Check: %v", err)
	}
	if d.Allow {
		t.Fatalf("Strong Check = Allow true after revoke, want false")
	}
	if d.CacheHit {
		t.Fatalf("Strong Check CacheHit = true, want false (must bypass L1)")
	}
}

func TestBoundedRejectsEntryBelowRequestedRevision(t *testing.T) {
	ctx := t.Context()
	checker, tuples := newChecker(t)

	subj := tuple.Subject{Type: "user", ID: "alice", Zone: "zone1"}
	obj := tuple.Object{Type: "file", ID: "doc1", Zone: "zone1"}
	req := check.Request{Subject: subj, Permission: "can-read", Object: obj, Zone: "zone1"}

	rev, err := tuples.Write(ctx, tuple.Tuple{Subject: subj, Relation: "viewer", Object: obj, Zone: "zone1"})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	d, err := checker.Check(ctx, req, l1.Bounded, 0)
	if err != nil || !d.Allow {
		t.Fatalf("warm Bounded Check = %+v, %v", d, err)
	}

	d2, err := checker.Check(ctx, req, l1.Bounded, rev+1)
	if err != nil {
		t.Fatalf("Bounded Check above cached revision: %v", err)
	}
	if d2.CacheHit {
		t.Fatalf("Bounded Check above cached revision CacheHit = true, want a fresh evaluation")
	}
}
