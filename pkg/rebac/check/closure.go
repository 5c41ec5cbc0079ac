package check

import (
	"context"
	"sync"

	"github.com/agentvfs/core/pkg/rebac/tuple"
)

// closure is the transitive group-membership index spec.md §4.H describes:
// "the engine maintains a precomputed closure table (subject → set of
// reachable group ids)." Rebuilt wholesale on every write/delete touching
// the group relation — simple and always correct, at the cost of scanning
// the zone's group edges on every such mutation; acceptable since group
// edges change far less often than permission checks are evaluated.
type closure struct {
	mu         sync.RWMutex
	reachable  map[string]map[string]map[string]bool // zone -> memberKey -> set of groupKeys
}

func newClosure() *closure {
	return &closure{reachable: make(map[string]map[string]map[string]bool)}
}

func memberKey(t string, id string) string { return t + ":" + id }

// Rebuild recomputes zone's closure from the tuple store's current group
// edges, per spec.md's "refreshed on tuple writes affecting group edges."
func (c *closure) Rebuild(ctx context.Context, tuples *tuple.Store, zone, groupObjectType, groupRelation string) error {
	edges := make(map[string][]string) // memberKey -> []groupKey (direct membership edges)

	cursor := ""
	for {
		entries, next, err := tuples.List(ctx, tuple.Filter{
			Zone: zone, ObjectType: groupObjectType, Relation: groupRelation,
		}, cursor, 512)
		if err != nil {
			return err
		}
		for _, e := range entries {
			group := memberKey(e.Object.Type, e.Object.ID)
			member := memberKey(e.Subject.Type, e.Subject.ID)
			edges[member] = append(edges[member], group)
		}
		if next == "" {
			break
		}
		cursor = next
	}

	reachable := make(map[string]map[string]bool)
	for start := range edges {
		visited := make(map[string]bool)
		queue := []string{start}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, g := range edges[cur] {
				if visited[g] {
					continue
				}
				visited[g] = true
				queue = append(queue, g)
			}
		}
		reachable[start] = visited
	}

	c.mu.Lock()
	c.reachable[zone] = reachable
	c.mu.Unlock()
	return nil
}

// IsMember reports whether subjectKey is known to transitively reach
// groupKey in zone's closure. A false negative (stale closure) is
// possible between a group-edge write and the next Rebuild; callers on
// the hot check path fall back to direct recursive resolution, so this
// is purely an O(1) shortcut, not a correctness boundary.
func (c *closure) IsMember(zone, subjectKey, groupKey string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	groups, ok := c.reachable[zone][subjectKey]
	if !ok {
		return false
	}
	return groups[groupKey]
}
