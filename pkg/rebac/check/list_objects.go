package check

import (
	"context"
	"sort"

	"github.com/agentvfs/core/pkg/rebac/tuple"
)

// ListObjects implements spec.md §4.H's list_objects(subject, permission,
// object_type, zone, cursor, limit) → objects[]. There is no reverse
// index from subject to the objects it can reach, so this enumerates
// every object_id that has at least one tuple in zone and re-runs Check
// per candidate — correct, and bounded by the same graph limits as a
// single check, but O(distinct objects) rather than O(1). Candidates are
// ordered by object id so cursor/limit paginate deterministically.
func (e *Engine) ListObjects(ctx context.Context, subj tuple.Subject, permission, objectType, zone, cursor string, limit int) ([]string, string, error) {
	if limit <= 0 {
		limit = 100
	}

	ids, err := e.candidateObjectIDs(ctx, objectType, zone)
	if err != nil {
		return nil, "", err
	}
	sort.Strings(ids)

	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id > cursor {
				start = i
				break
			}
			start = i + 1
		}
	}

	var out []string
	next := ""
	for i := start; i < len(ids); i++ {
		id := ids[i]
		d, err := e.Check(ctx, Request{Subject: subj, Permission: permission, Object: tuple.Object{Type: objectType, ID: id, Zone: zone}, Zone: zone})
		if err != nil {
			continue // Indeterminate/Unavailable objects are skipped, not fatal to the page
		}
		if !d.Allow {
			continue
		}
		out = append(out, id)
		if len(out) >= limit {
			next = id
			break
		}
	}
	return out, next, nil
}

func (e *Engine) candidateObjectIDs(ctx context.Context, objectType, zone string) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	cursor := ""
	for {
		entries, next, err := e.tuples.List(ctx, tuple.Filter{Zone: zone, ObjectType: objectType}, cursor, 512)
		if err != nil {
			return nil, err
		}
		for _, t := range entries {
			if !seen[t.Object.ID] {
				seen[t.Object.ID] = true
				ids = append(ids, t.Object.ID)
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return ids, nil
}
