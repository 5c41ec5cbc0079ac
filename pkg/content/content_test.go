package content_test

import (
	"strings"
	"testing"
	"time"

	"github.com/agentvfs/core/pkg/blobstore/memory"
	"github.com/agentvfs/core/pkg/content"
	metamemory "github.com/agentvfs/core/pkg/metadatastore/memory"
)

func newStore() *content.Store {
	return content.New("zone1", memory.New(), metamemory.New())
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := t.Context()
	s := newStore()

	hash, size, err := s.Put(ctx, strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if size != 11 {
		t.Fatalf("Put size = %d, want 11", size)
	}

	r, err := s.Get(ctx, hash)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer r.Close()

	buf := make([]byte, 64)
	n, _ := r.Read(buf)
	if string(buf[:n]) != "hello world" {
		t.Fatalf("Get data = %q, want %q", buf[:n], "hello world")
	}
}

func TestPutDeduplicatesIdenticalContent(t *testing.T) {
	ctx := t.Context()
	s := newStore()

	h1, _, err := s.Put(ctx, strings.NewReader("same bytes"))
	if err != nil {
		t.Fatalf("Put 1: %v", err)
	}
	h2, _, err := s.Put(ctx, strings.NewReader("same bytes"))
	if err != nil {
		t.Fatalf("Put 2: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hashes differ for identical content: %s vs %s", h1, h2)
	}

	count, err := s.Decref(ctx, h1)
	if err != nil {
		t.Fatalf("Decref: %v", err)
	}
	if count != 1 {
		t.Fatalf("Decref after 2 puts = %d, want 1 (still referenced)", count)
	}

	exists, err := s.Exists(ctx, h1)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Fatalf("Exists = false after single decref, want true (refcount still 1)")
	}
}

func TestDecrefToZeroTombstonesThenSweepReclaims(t *testing.T) {
	ctx := t.Context()
	s := newStore()

	hash, _, err := s.Put(ctx, strings.NewReader("to be deleted"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	count, err := s.Decref(ctx, hash)
	if err != nil {
		t.Fatalf("Decref: %v", err)
	}
	if count != 0 {
		t.Fatalf("Decref = %d, want 0", count)
	}

	exists, err := s.Exists(ctx, hash)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatalf("Exists = true after refcount 0, want false")
	}

	// Immediately within the grace window, a sweep must not reclaim.
	stats, err := s.Sweep(ctx, content.SweepOptions{GraceWindow: time.Hour})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if stats.BlobsReclaimed != 0 {
		t.Fatalf("Sweep reclaimed %d blobs within grace window, want 0", stats.BlobsReclaimed)
	}

	if _, err := s.Get(ctx, hash); err != nil {
		t.Fatalf("Get within grace window: %v", err)
	}

	// Past the grace window, the sweep reclaims it.
	stats, err = s.Sweep(ctx, content.SweepOptions{GraceWindow: time.Nanosecond})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if stats.BlobsReclaimed != 1 {
		t.Fatalf("Sweep reclaimed %d blobs, want 1", stats.BlobsReclaimed)
	}
}

func TestIncrefKeepsContentAlive(t *testing.T) {
	ctx := t.Context()
	s := newStore()

	hash, _, err := s.Put(ctx, strings.NewReader("shared"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Incref(ctx, hash); err != nil {
		t.Fatalf("Incref: %v", err)
	}

	if count, err := s.Decref(ctx, hash); err != nil || count != 1 {
		t.Fatalf("Decref = %d, %v; want 1, nil", count, err)
	}
	if count, err := s.Decref(ctx, hash); err != nil || count != 0 {
		t.Fatalf("second Decref = %d, %v; want 0, nil", count, err)
	}
}
