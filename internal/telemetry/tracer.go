package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for VFS, ReBAC, and cache-tier spans. These follow
// OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// VFS operation attributes
	// ========================================================================
	AttrOperation = "vfs.operation" // read, write, rename, rebac_check, ...
	AttrZone      = "vfs.zone"
	AttrPath      = "vfs.path"
	AttrOldPath   = "vfs.old_path"
	AttrNewPath   = "vfs.new_path"
	AttrSize      = "vfs.size"
	AttrMountPoint = "vfs.mount_point"

	// ========================================================================
	// ReBAC attributes
	// ========================================================================
	AttrSubject        = "rebac.subject"
	AttrObject         = "rebac.object"
	AttrRelation       = "rebac.relation"
	AttrAllow          = "rebac.allow"
	AttrReason         = "rebac.reason"
	AttrAtRevision     = "rebac.at_revision"
	AttrTraversalDepth = "rebac.traversal_depth"
	AttrConsistency    = "rebac.consistency"

	// ========================================================================
	// Cache attributes
	// ========================================================================
	AttrCacheHit  = "cache.hit"
	AttrCacheTier = "cache.tier"
	AttrCacheSize = "cache.size"

	// ========================================================================
	// Content / storage backend attributes
	// ========================================================================
	AttrContentHash = "content.hash"
	AttrRefcount    = "content.refcount"
	AttrStoreName   = "store.name"
	AttrStoreType   = "store.type"
	AttrBucket      = "storage.bucket"
	AttrKey         = "storage.key"
	AttrRegion      = "storage.region"

	// ========================================================================
	// Version attributes
	// ========================================================================
	AttrVersionID = "version.id"
	AttrInodeID   = "inode.id"
)

// Span names for operations.
// Format: <component>.<operation>
const (
	SpanVFSRead     = "vfs.read"
	SpanVFSWrite    = "vfs.write"
	SpanVFSMkdir    = "vfs.mkdir"
	SpanVFSRemove   = "vfs.remove"
	SpanVFSRename   = "vfs.rename"
	SpanVFSReaddir  = "vfs.readdir"
	SpanVFSStat     = "vfs.stat"
	SpanVFSGrep     = "vfs.grep"

	SpanRebacCheck = "rebac.check"
	SpanRebacWrite = "rebac.write"
	SpanRebacRead  = "rebac.read"
	SpanRebacExpand = "rebac.expand"

	SpanCacheLookup  = "cache.lookup"
	SpanCacheWrite   = "cache.write"
	SpanCacheInvalidate = "cache.invalidate"
	SpanCacheEvict   = "cache.evict"

	SpanContentRead  = "content.read"
	SpanContentWrite = "content.write"
	SpanContentStat  = "content.stat"
	SpanContentGC    = "content.gc"

	SpanMetaLookup = "metadata.lookup"
	SpanMetaUpdate = "metadata.update"
	SpanMetaCreate = "metadata.create"
	SpanMetaDelete = "metadata.delete"

	SpanVersionAppend  = "version.append"
	SpanVersionRestore = "version.restore"
)

// Operation returns an attribute for the VFS/ReBAC operation name.
func Operation(op string) attribute.KeyValue { return attribute.String(AttrOperation, op) }

// Zone returns an attribute for the tenant/zone ID.
func Zone(zone string) attribute.KeyValue { return attribute.String(AttrZone, zone) }

// Path returns an attribute for a VFS path.
func Path(path string) attribute.KeyValue { return attribute.String(AttrPath, path) }

// OldPath returns an attribute for a rename source path.
func OldPath(path string) attribute.KeyValue { return attribute.String(AttrOldPath, path) }

// NewPath returns an attribute for a rename destination path.
func NewPath(path string) attribute.KeyValue { return attribute.String(AttrNewPath, path) }

// Size returns an attribute for a byte size.
func Size(size uint64) attribute.KeyValue { return attribute.Int64(AttrSize, int64(size)) }

// MountPoint returns an attribute for a mount point path.
func MountPoint(p string) attribute.KeyValue { return attribute.String(AttrMountPoint, p) }

// Subject returns an attribute for a ReBAC subject (principal or userset).
func Subject(subject string) attribute.KeyValue { return attribute.String(AttrSubject, subject) }

// Object returns an attribute for a ReBAC object.
func Object(object string) attribute.KeyValue { return attribute.String(AttrObject, object) }

// Relation returns an attribute for a ReBAC relation name.
func Relation(relation string) attribute.KeyValue { return attribute.String(AttrRelation, relation) }

// Allow returns an attribute for a check decision's allow/deny outcome.
func Allow(allow bool) attribute.KeyValue { return attribute.Bool(AttrAllow, allow) }

// Reason returns an attribute for a check decision's reason tag.
func Reason(reason string) attribute.KeyValue { return attribute.String(AttrReason, reason) }

// AtRevision returns an attribute for the zone revision a decision was made at.
func AtRevision(rev uint64) attribute.KeyValue { return attribute.Int64(AttrAtRevision, int64(rev)) }

// TraversalDepth returns an attribute for userset-rewrite recursion depth.
func TraversalDepth(depth int) attribute.KeyValue {
	return attribute.Int(AttrTraversalDepth, depth)
}

// Consistency returns an attribute for the requested consistency level.
func Consistency(level string) attribute.KeyValue {
	return attribute.String(AttrConsistency, level)
}

// CacheHit returns an attribute for a cache hit/miss indicator.
func CacheHit(hit bool) attribute.KeyValue { return attribute.Bool(AttrCacheHit, hit) }

// CacheTier returns an attribute identifying which cache tier handled a request.
func CacheTier(tier string) attribute.KeyValue { return attribute.String(AttrCacheTier, tier) }

// ContentHash returns an attribute for a content-addressed blob hash.
func ContentHash(hash string) attribute.KeyValue { return attribute.String(AttrContentHash, hash) }

// Refcount returns an attribute for a blob's reference count.
func Refcount(n int64) attribute.KeyValue { return attribute.Int64(AttrRefcount, n) }

// StoreName returns an attribute for a store name.
func StoreName(name string) attribute.KeyValue { return attribute.String(AttrStoreName, name) }

// StoreType returns an attribute for a store implementation kind.
func StoreType(t string) attribute.KeyValue { return attribute.String(AttrStoreType, t) }

// Bucket returns an attribute for an S3 bucket name.
func Bucket(name string) attribute.KeyValue { return attribute.String(AttrBucket, name) }

// StorageKey returns an attribute for an S3 object key.
func StorageKey(key string) attribute.KeyValue { return attribute.String(AttrKey, key) }

// Region returns an attribute for a cloud region.
func Region(region string) attribute.KeyValue { return attribute.String(AttrRegion, region) }

// VersionID returns an attribute for a version identifier.
func VersionID(id uint64) attribute.KeyValue { return attribute.Int64(AttrVersionID, int64(id)) }

// InodeID returns an attribute for an inode identifier.
func InodeID(id uint64) attribute.KeyValue { return attribute.Int64(AttrInodeID, int64(id)) }

// StartVFSSpan starts a span for a VFS operation.
func StartVFSSpan(ctx context.Context, operation, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{Operation(operation), Path(path)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, "vfs."+operation, trace.WithAttributes(allAttrs...))
}

// StartRebacSpan starts a span for a ReBAC check/write/read operation.
func StartRebacSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "rebac."+operation, trace.WithAttributes(attrs...))
}

// StartContentSpan starts a span for a content store operation.
func StartContentSpan(ctx context.Context, operation, hash string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{ContentHash(hash)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, "content."+operation, trace.WithAttributes(allAttrs...))
}

// StartCacheSpan starts a span for a cache-tier operation.
func StartCacheSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "cache."+operation, trace.WithAttributes(attrs...))
}

// StartMetadataSpan starts a span for a metadata store operation.
func StartMetadataSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "metadata."+operation, trace.WithAttributes(attrs...))
}
