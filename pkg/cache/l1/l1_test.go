package l1_test

import (
	"testing"

	"github.com/agentvfs/core/pkg/cache/l1"
	"github.com/agentvfs/core/pkg/rebac/check"
	"github.com/agentvfs/core/pkg/rebac/tuple"
)

func key() string {
	return l1.Key(
		tuple.Subject{Type: "user", ID: "alice"},
		"can-read",
		tuple.Object{Type: "file", ID: "doc1"},
		"zone1",
	)
}

func TestInsertThenLookupHits(t *testing.T) {
	c := l1.New()
	k := key()

	if _, ok := c.Lookup(k, 0); ok {
		t.Fatalf("Lookup on empty cache = hit, want miss")
	}

	c.Insert(k, check.Decision{Allow: true, AtRevision: 5}, 5)

	d, ok := c.Lookup(k, 0)
	if !ok {
		t.Fatalf("Lookup after Insert = miss, want hit")
	}
	if !d.Allow || !d.CacheHit {
		t.Fatalf("Lookup = %+v, want Allow=true CacheHit=true", d)
	}

	if s := c.Stats(); s.Hits != 1 || s.Misses != 1 {
		t.Fatalf("Stats = %+v, want 1 hit and 1 miss", s)
	}
}

func TestLookupRejectsStaleRevision(t *testing.T) {
	c := l1.New()
	k := key()
	c.Insert(k, check.Decision{Allow: true, AtRevision: 3}, 3)

	if _, ok := c.Lookup(k, 10); ok {
		t.Fatalf("Lookup with minRevision above entry revision = hit, want miss")
	}
}

func TestInvalidateRemovesMatchingKeys(t *testing.T) {
	c := l1.New()
	k := key()
	c.Insert(k, check.Decision{Allow: true}, 1)

	removed := c.Invalidate(func(key string) bool { return true })
	if removed != 1 {
		t.Fatalf("Invalidate removed = %d, want 1", removed)
	}
	if _, ok := c.Lookup(k, 0); ok {
		t.Fatalf("Lookup after Invalidate = hit, want miss")
	}
}

func TestDropAllClearsEveryShard(t *testing.T) {
	c := l1.New()
	for i := 0; i < 32; i++ {
		subj := tuple.Subject{Type: "user", ID: string(rune('a' + i))}
		k := l1.Key(subj, "can-read", tuple.Object{Type: "file", ID: "doc"}, "zone1")
		c.Insert(k, check.Decision{Allow: true}, 1)
	}
	c.DropAll()

	for i := 0; i < 32; i++ {
		subj := tuple.Subject{Type: "user", ID: string(rune('a' + i))}
		k := l1.Key(subj, "can-read", tuple.Object{Type: "file", ID: "doc"}, "zone1")
		if _, ok := c.Lookup(k, 0); ok {
			t.Fatalf("Lookup after DropAll = hit for %q, want miss", k)
		}
	}
}
