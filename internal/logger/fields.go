package logger

import (
	"log/slog"
)

// Standard field keys for structured logging, shared by VFS, ReBAC, and
// cache-tier log statements. Use these keys consistently so log
// aggregation/querying works across components.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Operation identity
	KeyOperation = "operation" // read, write, rebac_check, rebac_write, ...
	KeyZone      = "zone"
	KeySubject   = "subject"
	KeyObject    = "object"
	KeyRelation  = "relation"
	KeyPath      = "path"
	KeyOldPath   = "old_path"
	KeyNewPath   = "new_path"

	// ReBAC check outcome
	KeyAllow           = "allow"
	KeyReason          = "reason"
	KeyAtRevision      = "at_revision"
	KeyTraversalDepth  = "traversal_depth"
	KeyConsistency     = "consistency"
	KeyCacheHit        = "cache_hit"
	KeyCacheTier       = "cache_tier"

	// Content / storage
	KeyContentHash = "content_hash"
	KeyRefcount    = "refcount"
	KeySize        = "size"
	KeyMountPoint  = "mount_point"
	KeyBackend     = "backend"
	KeyStoreType   = "store_type"

	// Versioning
	KeyVersionID = "version_id"
	KeyInodeID   = "inode_id"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
	KeyAttempt    = "attempt"
	KeyMaxRetries = "max_retries"
)

// TraceID returns a slog.Attr for the OpenTelemetry trace ID.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for the OpenTelemetry span ID.
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// Operation returns a slog.Attr for the operation name.
func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }

// Zone returns a slog.Attr for the tenant/zone ID.
func Zone(zone string) slog.Attr { return slog.String(KeyZone, zone) }

// Subject returns a slog.Attr for the calling principal or userset.
func Subject(subject string) slog.Attr { return slog.String(KeySubject, subject) }

// Object returns a slog.Attr for the object under check.
func Object(object string) slog.Attr { return slog.String(KeyObject, object) }

// Relation returns a slog.Attr for a ReBAC relation name.
func Relation(relation string) slog.Attr { return slog.String(KeyRelation, relation) }

// Path returns a slog.Attr for a VFS path.
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// OldPath returns a slog.Attr for a rename source path.
func OldPath(p string) slog.Attr { return slog.String(KeyOldPath, p) }

// NewPath returns a slog.Attr for a rename destination path.
func NewPath(p string) slog.Attr { return slog.String(KeyNewPath, p) }

// Allow returns a slog.Attr for a check decision's allow/deny outcome.
func Allow(allow bool) slog.Attr { return slog.Bool(KeyAllow, allow) }

// Reason returns a slog.Attr for a check decision's reason tag.
func Reason(reason string) slog.Attr { return slog.String(KeyReason, reason) }

// AtRevision returns a slog.Attr for the zone revision a decision was made at.
func AtRevision(rev uint64) slog.Attr { return slog.Uint64(KeyAtRevision, rev) }

// TraversalDepth returns a slog.Attr for the userset-rewrite recursion depth.
func TraversalDepth(depth int) slog.Attr { return slog.Int(KeyTraversalDepth, depth) }

// Consistency returns a slog.Attr for the requested consistency level.
func Consistency(level string) slog.Attr { return slog.String(KeyConsistency, level) }

// CacheHit returns a slog.Attr for a cache hit/miss indicator.
func CacheHit(hit bool) slog.Attr { return slog.Bool(KeyCacheHit, hit) }

// CacheTier returns a slog.Attr identifying which cache tier handled a request.
func CacheTier(tier string) slog.Attr { return slog.String(KeyCacheTier, tier) }

// ContentHash returns a slog.Attr for a content-addressed blob hash.
func ContentHash(hash string) slog.Attr { return slog.String(KeyContentHash, hash) }

// Refcount returns a slog.Attr for a blob's reference count.
func Refcount(n int64) slog.Attr { return slog.Int64(KeyRefcount, n) }

// Size returns a slog.Attr for a byte size.
func Size(n uint64) slog.Attr { return slog.Uint64(KeySize, n) }

// MountPoint returns a slog.Attr for a mount point path.
func MountPoint(p string) slog.Attr { return slog.String(KeyMountPoint, p) }

// Backend returns a slog.Attr for a backend identifier.
func Backend(id string) slog.Attr { return slog.String(KeyBackend, id) }

// StoreType returns a slog.Attr for a store implementation kind.
func StoreType(t string) slog.Attr { return slog.String(KeyStoreType, t) }

// VersionID returns a slog.Attr for a version identifier.
func VersionID(id uint64) slog.Attr { return slog.Uint64(KeyVersionID, id) }

// InodeID returns a slog.Attr for an inode identifier.
func InodeID(id uint64) slog.Attr { return slog.Uint64(KeyInodeID, id) }

// DurationMs returns a slog.Attr for an operation duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric/string error code.
func ErrorCode(code string) slog.Attr { return slog.String(KeyErrorCode, code) }

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }

// MaxRetries returns a slog.Attr for the maximum retry attempt count.
func MaxRetries(n int) slog.Attr { return slog.Int(KeyMaxRetries, n) }
