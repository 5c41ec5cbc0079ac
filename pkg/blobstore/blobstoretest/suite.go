// Package blobstoretest provides a backend-agnostic conformance suite for
// blobstore.Store implementations, mirroring the metadatastore conformance
// suite's StoreFactory + RunConformanceSuite shape.
package blobstoretest

import (
	"bytes"
	"io"
	"testing"

	"github.com/agentvfs/core/pkg/blobstore"
	"github.com/agentvfs/core/pkg/errors"
)

// StoreFactory builds a fresh, empty Store for a single test.
type StoreFactory func(t *testing.T) blobstore.Store

// RunConformanceSuite exercises the common contract every BlobStore backend
// must satisfy.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Run("WriteReadDelete", func(t *testing.T) { testWriteReadDelete(t, factory) })
	t.Run("ReadMissingIsNotFound", func(t *testing.T) { testReadMissingIsNotFound(t, factory) })
	t.Run("RangeRead", func(t *testing.T) { testRangeRead(t, factory) })
	t.Run("Exists", func(t *testing.T) { testExists(t, factory) })
	t.Run("ListPrefix", func(t *testing.T) { testListPrefix(t, factory) })
	t.Run("OverwriteReplaces", func(t *testing.T) { testOverwriteReplaces(t, factory) })
	t.Run("DeleteIsIdempotent", func(t *testing.T) { testDeleteIdempotent(t, factory) })
}

func testWriteReadDelete(t *testing.T, factory StoreFactory) {
	ctx := t.Context()
	s := factory(t)

	size, err := s.Write(ctx, "a", bytes.NewReader([]byte("hello world")))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if size != 11 {
		t.Fatalf("Write size = %d, want 11", size)
	}

	r, err := s.Read(ctx, "a", nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	data, err := io.ReadAll(r)
	_ = r.Close()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "hello world" {
		t.Fatalf("Read data = %q, want %q", data, "hello world")
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read(ctx, "a", nil); !errors.Is(err, errors.NotFound) {
		t.Fatalf("Read after delete = %v, want NotFound", err)
	}
}

func testReadMissingIsNotFound(t *testing.T, factory StoreFactory) {
	ctx := t.Context()
	s := factory(t)

	if _, err := s.Read(ctx, "missing", nil); !errors.Is(err, errors.NotFound) {
		t.Fatalf("Read missing = %v, want NotFound", err)
	}
}

func testRangeRead(t *testing.T, factory StoreFactory) {
	ctx := t.Context()
	s := factory(t)

	if _, err := s.Write(ctx, "b", bytes.NewReader([]byte("0123456789"))); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := s.Read(ctx, "b", &blobstore.Range{Offset: 2, Length: 3})
	if err != nil {
		t.Fatalf("Read range: %v", err)
	}
	data, err := io.ReadAll(r)
	_ = r.Close()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "234" {
		t.Fatalf("ranged read = %q, want %q", data, "234")
	}

	r2, err := s.Read(ctx, "b", &blobstore.Range{Offset: 7})
	if err != nil {
		t.Fatalf("Read open-ended range: %v", err)
	}
	data2, err := io.ReadAll(r2)
	_ = r2.Close()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data2) != "789" {
		t.Fatalf("open-ended range read = %q, want %q", data2, "789")
	}
}

func testExists(t *testing.T, factory StoreFactory) {
	ctx := t.Context()
	s := factory(t)

	ok, err := s.Exists(ctx, "c")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Fatalf("Exists on missing key = true, want false")
	}

	if _, err := s.Write(ctx, "c", bytes.NewReader([]byte("x"))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	ok, err = s.Exists(ctx, "c")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Fatalf("Exists after write = false, want true")
	}
}

func testListPrefix(t *testing.T, factory StoreFactory) {
	ctx := t.Context()
	s := factory(t)

	keys := []string{"p/one", "p/two", "p/three", "q/other"}
	for _, k := range keys {
		if _, err := s.Write(ctx, k, bytes.NewReader([]byte(k))); err != nil {
			t.Fatalf("Write %s: %v", k, err)
		}
	}

	got, err := s.List(ctx, "p/", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List(p/) returned %d keys, want 3: %v", len(got), got)
	}

	limited, err := s.List(ctx, "p/", 1)
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("List(p/, limit=1) returned %d keys, want 1", len(limited))
	}
}

func testOverwriteReplaces(t *testing.T, factory StoreFactory) {
	ctx := t.Context()
	s := factory(t)

	if _, err := s.Write(ctx, "d", bytes.NewReader([]byte("first"))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := s.Write(ctx, "d", bytes.NewReader([]byte("second-value"))); err != nil {
		t.Fatalf("Write overwrite: %v", err)
	}

	r, err := s.Read(ctx, "d", nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	data, err := io.ReadAll(r)
	_ = r.Close()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "second-value" {
		t.Fatalf("Read after overwrite = %q, want %q", data, "second-value")
	}
}

func testDeleteIdempotent(t *testing.T, factory StoreFactory) {
	ctx := t.Context()
	s := factory(t)

	if err := s.Delete(ctx, "never-existed"); err != nil {
		t.Fatalf("Delete on missing key = %v, want nil", err)
	}
	if _, err := s.Write(ctx, "e", bytes.NewReader([]byte("x"))); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Delete(ctx, "e"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "e"); err != nil {
		t.Fatalf("second Delete = %v, want nil", err)
	}
}
