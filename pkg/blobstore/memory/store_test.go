package memory_test

import (
	"testing"

	"github.com/agentvfs/core/pkg/blobstore"
	"github.com/agentvfs/core/pkg/blobstore/blobstoretest"
	"github.com/agentvfs/core/pkg/blobstore/memory"
)

func TestConformance(t *testing.T) {
	blobstoretest.RunConformanceSuite(t, func(t *testing.T) blobstore.Store {
		return memory.New()
	})
}
