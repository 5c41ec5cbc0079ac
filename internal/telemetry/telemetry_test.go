package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "agentvfs", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Should be able to call shutdown without error
	err = shutdown(ctx)
	assert.NoError(t, err)

	// Should not be enabled
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	// Reset state
	tracer = nil
	enabled = false

	// Without initialization, should return no-op tracer
	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// Even without initialization, StartSpan should work (no-op)
	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)

	// Should be able to end the span
	span.End()
}

func TestSpanFromContext(t *testing.T) {
	ctx := context.Background()

	// Should return a span even without active span
	span := SpanFromContext(ctx)
	require.NotNil(t, span)
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	// Should not panic with no active span
	require.NotPanics(t, func() {
		AddEvent(ctx, "test.event")
	})
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()

	// Should not panic with nil error
	require.NotPanics(t, func() {
		RecordError(ctx, nil)
	})

	// Should not panic with error
	require.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Ok, "success")
	})

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Error, "failed")
	})
}

func TestSetAttributes(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetAttributes(ctx, Zone("zone-a"))
	})
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	traceID := TraceID(ctx)
	assert.Equal(t, "", traceID)
}

func TestSpanID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	spanID := SpanID(ctx)
	assert.Equal(t, "", spanID)
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("Operation", func(t *testing.T) {
		attr := Operation("read")
		assert.Equal(t, AttrOperation, string(attr.Key))
		assert.Equal(t, "read", attr.Value.AsString())
	})

	t.Run("Zone", func(t *testing.T) {
		attr := Zone("zone-a")
		assert.Equal(t, AttrZone, string(attr.Key))
		assert.Equal(t, "zone-a", attr.Value.AsString())
	})

	t.Run("Path", func(t *testing.T) {
		attr := Path("/docs/report.md")
		assert.Equal(t, AttrPath, string(attr.Key))
		assert.Equal(t, "/docs/report.md", attr.Value.AsString())
	})

	t.Run("Subject", func(t *testing.T) {
		attr := Subject("user:alice")
		assert.Equal(t, AttrSubject, string(attr.Key))
		assert.Equal(t, "user:alice", attr.Value.AsString())
	})

	t.Run("Object", func(t *testing.T) {
		attr := Object("doc:report")
		assert.Equal(t, AttrObject, string(attr.Key))
		assert.Equal(t, "doc:report", attr.Value.AsString())
	})

	t.Run("Relation", func(t *testing.T) {
		attr := Relation("viewer")
		assert.Equal(t, AttrRelation, string(attr.Key))
		assert.Equal(t, "viewer", attr.Value.AsString())
	})

	t.Run("Allow", func(t *testing.T) {
		attr := Allow(true)
		assert.Equal(t, AttrAllow, string(attr.Key))
		assert.True(t, attr.Value.AsBool())
	})

	t.Run("AtRevision", func(t *testing.T) {
		attr := AtRevision(42)
		assert.Equal(t, AttrAtRevision, string(attr.Key))
		assert.Equal(t, int64(42), attr.Value.AsInt64())
	})

	t.Run("TraversalDepth", func(t *testing.T) {
		attr := TraversalDepth(3)
		assert.Equal(t, AttrTraversalDepth, string(attr.Key))
		assert.Equal(t, int64(3), attr.Value.AsInt64())
	})

	t.Run("Consistency", func(t *testing.T) {
		attr := Consistency("BOUNDED")
		assert.Equal(t, AttrConsistency, string(attr.Key))
		assert.Equal(t, "BOUNDED", attr.Value.AsString())
	})

	t.Run("CacheHit", func(t *testing.T) {
		attr := CacheHit(true)
		assert.Equal(t, AttrCacheHit, string(attr.Key))
		assert.True(t, attr.Value.AsBool())
	})

	t.Run("CacheTier", func(t *testing.T) {
		attr := CacheTier("L1")
		assert.Equal(t, AttrCacheTier, string(attr.Key))
		assert.Equal(t, "L1", attr.Value.AsString())
	})

	t.Run("ContentHash", func(t *testing.T) {
		attr := ContentHash("abc123")
		assert.Equal(t, AttrContentHash, string(attr.Key))
		assert.Equal(t, "abc123", attr.Value.AsString())
	})

	t.Run("Refcount", func(t *testing.T) {
		attr := Refcount(2)
		assert.Equal(t, AttrRefcount, string(attr.Key))
		assert.Equal(t, int64(2), attr.Value.AsInt64())
	})

	t.Run("Bucket", func(t *testing.T) {
		attr := Bucket("my-bucket")
		assert.Equal(t, AttrBucket, string(attr.Key))
		assert.Equal(t, "my-bucket", attr.Value.AsString())
	})

	t.Run("StorageKey", func(t *testing.T) {
		attr := StorageKey("path/to/object")
		assert.Equal(t, AttrKey, string(attr.Key))
		assert.Equal(t, "path/to/object", attr.Value.AsString())
	})

	t.Run("VersionID", func(t *testing.T) {
		attr := VersionID(7)
		assert.Equal(t, AttrVersionID, string(attr.Key))
		assert.Equal(t, int64(7), attr.Value.AsInt64())
	})
}

func TestStartVFSSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartVFSSpan(ctx, "read", "/docs/report.md")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartVFSSpan(ctx, "write", "/docs/other.md", Size(4096))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartRebacSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartRebacSpan(ctx, "check", Subject("user:alice"), Object("doc:report"))
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestStartContentSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartContentSpan(ctx, "read", "content-123")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartContentSpan(ctx, "write", "content-456", Size(1024))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartCacheSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartCacheSpan(ctx, "lookup")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartCacheSpan(ctx, "write", CacheHit(false))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}
