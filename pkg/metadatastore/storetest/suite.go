// Package storetest provides a conformance suite any metadatastore.Store
// implementation must pass, grounded on the teacher's storetest package
// (a StoreFactory run against every backend via t.Run subtests).
package storetest

import (
	"testing"

	"github.com/agentvfs/core/pkg/errors"
	"github.com/agentvfs/core/pkg/metadatastore"
)

// StoreFactory creates a fresh Store instance for each test. Implementations
// that need a filesystem path or temp directory should use t.TempDir().
type StoreFactory func(t *testing.T) metadatastore.Store

// RunConformanceSuite runs the full conformance suite against factory.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("GetPutDelete", func(t *testing.T) { testGetPutDelete(t, factory) })
	t.Run("CASPreconditions", func(t *testing.T) { testCASPreconditions(t, factory) })
	t.Run("PrefixScan", func(t *testing.T) { testPrefixScan(t, factory) })
	t.Run("RevisionMonotonic", func(t *testing.T) { testRevisionMonotonic(t, factory) })
	t.Run("CommitBatch", func(t *testing.T) { testCommitBatch(t, factory) })
	t.Run("ZoneIsolatedRevisions", func(t *testing.T) { testZoneIsolatedRevisions(t, factory) })
}

func testGetPutDelete(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := t.Context()

	if _, err := s.Get(ctx, []byte("k1")); !errors.Is(err, errors.NotFound) {
		t.Fatalf("expected NotFound before put, got %v", err)
	}

	rev, err := s.Put(ctx, "acme", []byte("k1"), []byte("v1"), nil)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if rev == 0 {
		t.Fatalf("expected nonzero revision")
	}

	entry, err := s.Get(ctx, []byte("k1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(entry.Value) != "v1" || entry.Revision != rev {
		t.Fatalf("unexpected entry %+v", entry)
	}

	if _, err := s.Delete(ctx, "acme", []byte("k1"), nil); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, []byte("k1")); !errors.Is(err, errors.NotFound) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

func testCASPreconditions(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := t.Context()

	mustNotExist := uint64(0)
	if _, err := s.Put(ctx, "acme", []byte("k1"), []byte("v1"), &mustNotExist); err != nil {
		t.Fatalf("Put with absent-precondition on absent key: %v", err)
	}
	if _, err := s.Put(ctx, "acme", []byte("k1"), []byte("v2"), &mustNotExist); !errors.Is(err, errors.CASFailure) {
		t.Fatalf("expected CASFailure when key already exists, got %v", err)
	}

	entry, err := s.Get(ctx, []byte("k1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	staleRev := entry.Revision + 100
	if _, err := s.Put(ctx, "acme", []byte("k1"), []byte("v3"), &staleRev); !errors.Is(err, errors.CASFailure) {
		t.Fatalf("expected CASFailure on stale revision, got %v", err)
	}

	if _, err := s.Put(ctx, "acme", []byte("k1"), []byte("v3"), &entry.Revision); err != nil {
		t.Fatalf("Put with correct revision precondition: %v", err)
	}
}

func testPrefixScan(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := t.Context()

	keys := []string{"a/1", "a/2", "a/3", "b/1"}
	for _, k := range keys {
		if _, err := s.Put(ctx, "acme", []byte(k), []byte("v"), nil); err != nil {
			t.Fatalf("Put(%q): %v", k, err)
		}
	}

	entries, cursor, err := s.PrefixScan(ctx, []byte("a/"), nil, 0)
	if err != nil {
		t.Fatalf("PrefixScan: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries under a/, got %d", len(entries))
	}
	if cursor != nil {
		t.Fatalf("expected nil cursor with no limit, got %q", cursor)
	}
	for i, e := range entries {
		want := "a/" + string(rune('1'+i))
		if string(e.Key) != want {
			t.Fatalf("entries not in key order: got %q at index %d, want %q", e.Key, i, want)
		}
	}

	page1, cur1, err := s.PrefixScan(ctx, []byte("a/"), nil, 2)
	if err != nil {
		t.Fatalf("PrefixScan page1: %v", err)
	}
	if len(page1) != 2 || cur1 == nil {
		t.Fatalf("expected a 2-entry page with a cursor, got %d entries cursor=%v", len(page1), cur1)
	}
	page2, cur2, err := s.PrefixScan(ctx, []byte("a/"), cur1, 2)
	if err != nil {
		t.Fatalf("PrefixScan page2: %v", err)
	}
	if len(page2) != 1 || cur2 != nil {
		t.Fatalf("expected final 1-entry page with nil cursor, got %d entries cursor=%v", len(page2), cur2)
	}
}

func testRevisionMonotonic(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := t.Context()

	var last uint64
	for i := 0; i < 5; i++ {
		rev, err := s.Put(ctx, "acme", []byte("k"), []byte("v"), nil)
		if err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
		if rev <= last {
			t.Fatalf("revision did not advance: %d -> %d", last, rev)
		}
		last = rev
	}
}

func testCommitBatch(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := t.Context()

	mustNotExist := uint64(0)
	result, err := s.CommitBatch(ctx, metadatastore.Batch{
		Zone: "acme",
		Writes: []metadatastore.WriteOp{
			{Key: []byte("x1"), Value: []byte("v1"), ExpectedRevision: &mustNotExist},
			{Key: []byte("x2"), Value: []byte("v2"), ExpectedRevision: &mustNotExist},
		},
	})
	if err != nil {
		t.Fatalf("CommitBatch: %v", err)
	}
	if result.Revision == 0 {
		t.Fatalf("expected nonzero batch revision")
	}

	e1, err := s.Get(ctx, []byte("x1"))
	if err != nil || string(e1.Value) != "v1" {
		t.Fatalf("x1 not committed correctly: entry=%+v err=%v", e1, err)
	}
	e2, err := s.Get(ctx, []byte("x2"))
	if err != nil || string(e2.Value) != "v2" {
		t.Fatalf("x2 not committed correctly: entry=%+v err=%v", e2, err)
	}

	result2, err := s.CommitBatch(ctx, metadatastore.Batch{
		Zone:  "acme",
		Reads: []metadatastore.ReadOp{{Key: []byte("x1")}, {Key: []byte("nonexistent")}},
		Writes: []metadatastore.WriteOp{
			{Key: []byte("x1"), Value: nil, ExpectedRevision: &e1.Revision},
		},
	})
	if err != nil {
		t.Fatalf("CommitBatch delete: %v", err)
	}
	if result2.Reads[0] == nil || string(result2.Reads[0].Value) != "v1" {
		t.Fatalf("expected batch read snapshot to see pre-delete value, got %+v", result2.Reads[0])
	}
	if result2.Reads[1] != nil {
		t.Fatalf("expected nil read for nonexistent key, got %+v", result2.Reads[1])
	}
	if _, err := s.Get(ctx, []byte("x1")); !errors.Is(err, errors.NotFound) {
		t.Fatalf("expected x1 deleted by batch, got %v", err)
	}
}

func testZoneIsolatedRevisions(t *testing.T, factory StoreFactory) {
	s := factory(t)
	ctx := t.Context()

	revA, err := s.Put(ctx, "zone-a", []byte("ka"), []byte("v"), nil)
	if err != nil {
		t.Fatalf("Put zone-a: %v", err)
	}
	revB, err := s.Put(ctx, "zone-b", []byte("kb"), []byte("v"), nil)
	if err != nil {
		t.Fatalf("Put zone-b: %v", err)
	}
	if revA != 1 || revB != 1 {
		t.Fatalf("expected each zone's first write at revision 1, got a=%d b=%d", revA, revB)
	}

	revA2, err := s.Put(ctx, "zone-a", []byte("ka2"), []byte("v"), nil)
	if err != nil {
		t.Fatalf("Put zone-a second: %v", err)
	}
	if revA2 != 2 {
		t.Fatalf("expected zone-a revision to advance independently of zone-b, got %d", revA2)
	}
}
