// Package coordinator implements the CacheCoordinator (spec.md §4.L): the
// single choke point for write-path cache coherence. Every ReBAC tuple
// write/delete runs the L1→L2→L3 invalidation protocol synchronously
// before the write's revision is handed back to the caller, then fires
// registered namespace-invalidator callbacks asynchronously.
package coordinator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/agentvfs/core/pkg/cache/l1"
	"github.com/agentvfs/core/pkg/cache/l2"
	"github.com/agentvfs/core/pkg/cache/l3"
	"github.com/agentvfs/core/pkg/errors"
	"github.com/agentvfs/core/pkg/rebac/tuple"
)

// Invalidator is a pluggable sink notified after a write's synchronous
// invalidation completes (spec.md §4.L step 4: "pluggable sinks such as
// event bus consumers").
type Invalidator func(t tuple.Tuple, revision uint64)

// Coordinator wires the three cache tiers together behind WriteTuple and
// DeleteTuple.
type Coordinator struct {
	l1 *l1.Cache
	l2 *l2.Cache
	l3 *l3.Store

	mu           sync.Mutex // guards invalidators; notification holds it only to copy the slice header
	invalidators []Invalidator
}

// New builds a Coordinator over the three cache tiers.
func New(l1c *l1.Cache, l2c *l2.Cache, l3s *l3.Store) *Coordinator {
	return &Coordinator{l1: l1c, l2: l2c, l3: l3s}
}

// L1Stats exposes the decision cache's cumulative counters for metrics
// export, without giving callers direct write access to the tier.
func (c *Coordinator) L1Stats() l1.Stats { return c.l1.Stats() }

// L2Size exposes the namespace-view cache's resident entry count for
// metrics export.
func (c *Coordinator) L2Size() int { return c.l2.Size() }

// RegisterInvalidator adds a callback fired (asynchronously) after every
// successful invalidation. Registration is copy-on-write, so notification
// holds the mutex only long enough to take a snapshot and iterates it
// unlocked.
func (c *Coordinator) RegisterInvalidator(fn Invalidator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := make([]Invalidator, len(c.invalidators)+1)
	copy(next, c.invalidators)
	next[len(next)-1] = fn
	c.invalidators = next
}

func (c *Coordinator) snapshotInvalidators() []Invalidator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidators
}

// Invalidate runs the four-step protocol of spec.md §4.L for a tuple
// mutation t committed at revision. massInvalidation selects the
// schema-wide path (L1 DropAll + L3 DeleteAllViews) instead of the
// targeted one — used for group-edge changes, which can affect an
// unbounded set of cached decisions via the closure.
func (c *Coordinator) Invalidate(ctx context.Context, t tuple.Tuple, revision uint64, massInvalidation bool) error {
	// Step 1: L1.
	if massInvalidation {
		c.l1.DropAll()
	} else {
		c.l1.Invalidate(func(key string) bool { return l1KeyTouchesObject(key, t) })
	}

	// Step 2: L2.
	if massInvalidation {
		c.l2.InvalidateAll()
	} else {
		c.l2.Invalidate(t.Subject.Type, t.Subject.ID, t.Zone)
		if t.Object.Type == "mount" {
			// A mount-object tuple can change visibility for any subject;
			// over-invalidate the whole zone's L2 rather than under-invalidate.
			c.l2.InvalidateAll()
		}
	}

	// Step 3: L3, retried with backoff inside deleteViewsWithRetry; a
	// persistent failure surfaces as CacheUnavailable (default policy:
	// proceed-with-warning, since L3 self-heals via its revision tag).
	if err := c.deleteViewsWithRetry(ctx, t, massInvalidation); err != nil {
		return errors.NewCacheUnavailable("L3 delete_views", err)
	}

	// Step 4: notify invalidator sinks. MAY be asynchronous.
	for _, inv := range c.snapshotInvalidators() {
		go inv(t, revision)
	}
	return nil
}

func (c *Coordinator) deleteViewsWithRetry(ctx context.Context, t tuple.Tuple, massInvalidation bool) error {
	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var err error
		if massInvalidation {
			_, err = c.l3.DeleteAllViews(ctx, t.Zone)
		} else {
			_, err = c.l3.DeleteViews(ctx, t.Zone, func(subjectKey string) bool {
				return subjectKey == t.Subject.Type+":"+t.Subject.ID
			})
		}
		if err == nil {
			return nil
		}
		if !errors.Is(err, errors.Unavailable) {
			return err
		}
		lastErr = err
		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
			}
		}
	}
	return lastErr
}

// InvalidateMountChange drops every cached namespace view in zone after a
// mount table mutation (add_mount/remove_mount), which is not itself a
// tuple write and so bypasses Invalidate's per-tuple targeting (spec.md
// §4.F: "publish the change via CacheCoordinator so L2/L3 namespace
// caches are invalidated").
func (c *Coordinator) InvalidateMountChange(ctx context.Context, zone string) error {
	c.l2.InvalidateAll()
	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if _, err := c.l3.DeleteAllViews(ctx, zone); err != nil {
			if !errors.Is(err, errors.Unavailable) {
				return err
			}
			lastErr = err
			continue
		}
		return nil
	}
	return errors.NewCacheUnavailable("L3 delete_all_views", lastErr)
}

// l1KeyTouchesObject reports whether an L1 cache key (built by l1.Key)
// concerns the mutated tuple's object, per spec.md §4.I's invalidation
// scope: "object ∈ {O, parents-of-O...} OR subject is reachable from S."
// Parent traversal is handled by the mass-invalidation fallback above
// rather than threaded through key matching here.
func l1KeyTouchesObject(key string, t tuple.Tuple) bool {
	objectFragment := t.Object.Type + ":" + t.Object.ID
	return strings.Contains(key, "|"+objectFragment+"|")
}
