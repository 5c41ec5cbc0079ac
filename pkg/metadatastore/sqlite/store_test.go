package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/agentvfs/core/pkg/metadatastore"
	"github.com/agentvfs/core/pkg/metadatastore/sqlite"
	"github.com/agentvfs/core/pkg/metadatastore/storetest"
)

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) metadatastore.Store {
		store, err := sqlite.Open(t.Context(), sqlite.Config{Path: filepath.Join(t.TempDir(), "meta.db")})
		if err != nil {
			t.Fatalf("sqlite.Open: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}
