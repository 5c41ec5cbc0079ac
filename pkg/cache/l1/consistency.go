package l1

import (
	"context"

	"github.com/agentvfs/core/pkg/rebac/check"
)

// ConsistencyLevel selects how a Checker weighs a cached decision against
// a fresh re-evaluation (spec.md §4.H's "consistency levels").
type ConsistencyLevel int

const (
	// Eventual serves the current L1 entry if present, regardless of its
	// recorded revision.
	Eventual ConsistencyLevel = iota
	// Bounded serves the L1 entry only if its recorded revision is >= the
	// caller's VersionToken revision; otherwise evaluates and populates.
	Bounded
	// Strong bypasses L1 and re-evaluates at the engine's current state.
	Strong
)

// Checker composes the check engine with the L1 cache to implement
// spec.md §4.H's rebac_check(..., consistency, at_least_revision?).
type Checker struct {
	engine *check.Engine
	cache  *Cache
}

// NewChecker builds a Checker over engine and cache.
func NewChecker(engine *check.Engine, cache *Cache) *Checker {
	return &Checker{engine: engine, cache: cache}
}

// Check evaluates req at the given consistency level, consulting and
// populating L1 per spec.md §4.H's semantics for EVENTUAL/BOUNDED/STRONG.
func (c *Checker) Check(ctx context.Context, req check.Request, level ConsistencyLevel, atLeastRevision uint64) (check.Decision, error) {
	key := Key(req.Subject, req.Permission, req.Object, req.Zone)

	if level == Strong {
		return c.evaluateAndCache(ctx, req, key)
	}

	minRevision := uint64(0)
	if level == Bounded {
		minRevision = atLeastRevision
	}
	if d, ok := c.cache.Lookup(key, minRevision); ok {
		return d, nil
	}
	return c.evaluateAndCache(ctx, req, key)
}

func (c *Checker) evaluateAndCache(ctx context.Context, req check.Request, key string) (check.Decision, error) {
	d, err := c.engine.Check(ctx, req)
	if err != nil {
		return d, err
	}
	c.cache.Insert(key, d, d.AtRevision)
	return d, nil
}
