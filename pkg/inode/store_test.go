package inode_test

import (
	"testing"

	"github.com/agentvfs/core/pkg/errors"
	"github.com/agentvfs/core/pkg/inode"
	"github.com/agentvfs/core/pkg/metadatastore/memory"
)

func newStore() *inode.Store {
	return inode.New(memory.New())
}

func TestCreateAndLookup(t *testing.T) {
	ctx := t.Context()
	s := newStore()

	in, err := s.Create(ctx, "zone1", "/docs/report.txt", inode.KindFile, "alice", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if in.ID == 0 {
		t.Fatalf("Create returned zero ID")
	}

	got, err := s.Lookup(ctx, "zone1", "/docs/report.txt")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.ID != in.ID || got.Owner != "alice" {
		t.Fatalf("Lookup = %+v, want ID %d owner alice", got, in.ID)
	}
}

func TestCreateDuplicateFails(t *testing.T) {
	ctx := t.Context()
	s := newStore()

	if _, err := s.Create(ctx, "zone1", "/a", inode.KindFile, "alice", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := s.Create(ctx, "zone1", "/a", inode.KindFile, "bob", nil)
	if !errors.Is(err, errors.AlreadyExists) {
		t.Fatalf("Create duplicate = %v, want AlreadyExists", err)
	}
}

func TestLookupMissingIsNotFound(t *testing.T) {
	ctx := t.Context()
	s := newStore()
	_, err := s.Lookup(ctx, "zone1", "/missing")
	if !errors.Is(err, errors.NotFound) {
		t.Fatalf("Lookup missing = %v, want NotFound", err)
	}
}

func TestUpdateMeta(t *testing.T) {
	ctx := t.Context()
	s := newStore()

	in, err := s.Create(ctx, "zone1", "/f", inode.KindFile, "alice", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	size := uint64(42)
	hash := "deadbeef"
	updated, err := s.UpdateMeta(ctx, "zone1", in.ID, inode.MetaPatch{Size: &size, ContentHash: &hash})
	if err != nil {
		t.Fatalf("UpdateMeta: %v", err)
	}
	if updated.Size != 42 || updated.ContentHash != "deadbeef" {
		t.Fatalf("UpdateMeta result = %+v", updated)
	}
	if updated.Revision == in.Revision {
		t.Fatalf("UpdateMeta did not advance revision")
	}
}

func TestSoftDelete(t *testing.T) {
	ctx := t.Context()
	s := newStore()

	in, err := s.Create(ctx, "zone1", "/f", inode.KindFile, "alice", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.SoftDelete(ctx, "zone1", in.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	got, err := s.Lookup(ctx, "zone1", "/f")
	if err != nil {
		t.Fatalf("Lookup after soft-delete: %v", err)
	}
	if !got.Deleted {
		t.Fatalf("Lookup after soft-delete: Deleted = false, want true")
	}
}

func TestRename(t *testing.T) {
	ctx := t.Context()
	s := newStore()

	in, err := s.Create(ctx, "zone1", "/old", inode.KindFile, "alice", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	renamed, err := s.Rename(ctx, "zone1", "/old", "/new")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if renamed.ID != in.ID || renamed.Path != "/new" {
		t.Fatalf("Rename result = %+v", renamed)
	}

	if _, err := s.Lookup(ctx, "zone1", "/old"); !errors.Is(err, errors.NotFound) {
		t.Fatalf("Lookup old path after rename = %v, want NotFound", err)
	}
	if _, err := s.Lookup(ctx, "zone1", "/new"); err != nil {
		t.Fatalf("Lookup new path after rename: %v", err)
	}
}

func TestRenameToExistingFails(t *testing.T) {
	ctx := t.Context()
	s := newStore()

	if _, err := s.Create(ctx, "zone1", "/a", inode.KindFile, "alice", nil); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	if _, err := s.Create(ctx, "zone1", "/b", inode.KindFile, "alice", nil); err != nil {
		t.Fatalf("Create b: %v", err)
	}

	_, err := s.Rename(ctx, "zone1", "/a", "/b")
	if !errors.Is(err, errors.AlreadyExists) {
		t.Fatalf("Rename onto existing = %v, want AlreadyExists", err)
	}
}

func TestListChildren(t *testing.T) {
	ctx := t.Context()
	s := newStore()

	if _, err := s.Create(ctx, "zone1", "/dir", inode.KindDirectory, "alice", nil); err != nil {
		t.Fatalf("Create dir: %v", err)
	}
	for _, name := range []string{"/dir/a", "/dir/b", "/dir/c"} {
		if _, err := s.Create(ctx, "zone1", name, inode.KindFile, "alice", nil); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}
	// Nested descendant must not show up as a direct child of /dir.
	if _, err := s.Create(ctx, "zone1", "/dir/a/nested", inode.KindFile, "alice", nil); err != nil {
		t.Fatalf("Create nested: %v", err)
	}

	entries, _, err := s.ListChildren(ctx, "zone1", "/dir", "", 10)
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	if len(entries) != 3 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name
		}
		t.Fatalf("ListChildren returned %d entries, want 3: %v", len(entries), names)
	}
}
