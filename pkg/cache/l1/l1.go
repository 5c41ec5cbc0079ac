// Package l1 implements the L1 Decision Cache (spec.md §4.I): a sharded,
// in-process LRU cache of ReBAC check decisions, consulted before
// re-running the check engine's recursive evaluation. Grounded on the
// teacher's two-level-locking cache (pkg/cache/cache.go: a global map
// guarded by globalMu plus per-entry locks) and its snapshot-then-sort
// LRU eviction (pkg/cache/eviction.go's evictLRUToTarget), adapted from
// per-file block buffers to per-shard decision entries.
package l1

import (
	"cmp"
	"hash/fnv"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentvfs/core/pkg/rebac/check"
	"github.com/agentvfs/core/pkg/rebac/tuple"
)

const ShardCount = 16
const DefaultTTL = 5 * time.Second
const DefaultMaxEntriesPerShard = 4096

type entry struct {
	decision   check.Decision
	revision   uint64
	expiresAt  time.Time
	lastAccess time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Cache is the sharded L1 decision cache.
type Cache struct {
	shards        [ShardCount]*shard
	ttl           time.Duration
	maxPerShard   int
	hits, misses  atomic.Uint64
	invalidations atomic.Uint64
}

// New builds an empty Cache with the default TTL and per-shard capacity.
func New() *Cache {
	c := &Cache{ttl: DefaultTTL, maxPerShard: DefaultMaxEntriesPerShard}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	return c
}

// Key builds the cache key for a (subject, permission, object, zone)
// decision, matching spec.md §4.I's cache key tuple.
func Key(subj tuple.Subject, permission string, object tuple.Object, zone string) string {
	return subj.Type + ":" + subj.ID + "#" + subj.Relation + "|" + permission + "|" +
		object.Type + ":" + object.ID + "|" + zone
}

func (c *Cache) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%ShardCount]
}

// Lookup returns the cached decision for key if present, unexpired, and
// recorded at a revision >= minRevision. Returns CacheHit=true on the
// returned Decision.
func (c *Cache) Lookup(key string, minRevision uint64) (check.Decision, bool) {
	sh := c.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok {
		c.misses.Add(1)
		return check.Decision{}, false
	}
	if time.Now().After(e.expiresAt) || e.revision < minRevision {
		c.misses.Add(1)
		return check.Decision{}, false
	}
	e.lastAccess = time.Now()
	c.hits.Add(1)
	d := e.decision
	d.CacheHit = true
	return d, true
}

// Insert stores decision under key, recorded at atRevision, evicting the
// shard's least-recently-used entries first if it is at capacity.
func (c *Cache) Insert(key string, decision check.Decision, atRevision uint64) {
	sh := c.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if len(sh.entries) >= c.maxPerShard {
		evictLRU(sh, len(sh.entries)-c.maxPerShard+1)
	}

	now := time.Now()
	sh.entries[key] = &entry{
		decision: decision, revision: atRevision,
		expiresAt: now.Add(c.ttl), lastAccess: now,
	}
}

func evictLRU(sh *shard, n int) {
	type access struct {
		key  string
		last time.Time
	}
	snapshot := make([]access, 0, len(sh.entries))
	for k, e := range sh.entries {
		snapshot = append(snapshot, access{k, e.lastAccess})
	}
	slices.SortFunc(snapshot, func(a, b access) int {
		return cmp.Compare(a.last.UnixNano(), b.last.UnixNano())
	})
	for i := 0; i < n && i < len(snapshot); i++ {
		delete(sh.entries, snapshot[i].key)
	}
}

// Invalidate removes every entry whose key matches predicate, across all
// shards, returning the number removed.
func (c *Cache) Invalidate(predicate func(key string) bool) int {
	removed := 0
	for _, sh := range c.shards {
		sh.mu.Lock()
		for k := range sh.entries {
			if predicate(k) {
				delete(sh.entries, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	c.invalidations.Add(uint64(removed))
	return removed
}

// DropAll clears every shard, for schema-wide invalidation (e.g. a group
// edge change whose transitive impact cannot be targeted by key).
func (c *Cache) DropAll() {
	for _, sh := range c.shards {
		sh.mu.Lock()
		n := len(sh.entries)
		sh.entries = make(map[string]*entry)
		sh.mu.Unlock()
		c.invalidations.Add(uint64(n))
	}
}

// Stats is the cumulative counters exported for metrics collection.
type Stats struct {
	Hits          uint64
	Misses        uint64
	Invalidations uint64
}

// Stats returns the cache's cumulative hit/miss/invalidation counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Invalidations: c.invalidations.Load()}
}
