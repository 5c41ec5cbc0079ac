// Package tuple implements the ReBAC Tuple Store (spec.md §4.G): a
// persistent, zone-scoped set of (subject, relation, object) relationship
// tuples, the Zanzibar-style substrate the check engine evaluates rewrite
// rules against. Persisted through metadatastore.Store as JSON records,
// like inodes, content, and versions; tuple writes and deletes are
// unconditional, with no CAS precondition. Grounded on the teacher's sequential ACE-processing
// style (pkg/metadata/acl/evaluate.go) for how relationship facts are
// modeled as discrete, independently-matchable records.
package tuple

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentvfs/core/pkg/errors"
	"github.com/agentvfs/core/pkg/metadatastore"
)

// Subject identifies either a concrete principal (Relation == "") or a
// userset — the set of subjects holding Relation on an object of this
// type/id (group membership is modeled this way: group:eng#member).
type Subject struct {
	Type     string
	ID       string
	Relation string
	Zone     string
}

// Object identifies the resource a tuple's relation is asserted on.
type Object struct {
	Type string
	ID   string
	Zone string
}

// Tuple is one relationship fact: spec.md §3's "(subject, relation,
// object, zone_id, caveat?, expiry?)".
type Tuple struct {
	Subject  Subject
	Relation string
	Object   Object
	Zone     string
	Caveat   string // optional predicate name evaluated at check time, e.g. "not-expired"
	Expiry   *time.Time
	Revision uint64
}

// IsUserset reports whether t.Subject denotes a userset rather than a
// concrete principal.
func (s Subject) IsUserset() bool { return s.Relation != "" }

// Expired reports whether t carries an expiry that has passed as of now.
func (t Tuple) Expired(now time.Time) bool {
	return t.Expiry != nil && now.After(*t.Expiry)
}

type persisted struct {
	SubjectType     string     `json:"subject_type"`
	SubjectID       string     `json:"subject_id"`
	SubjectRelation string     `json:"subject_relation,omitempty"`
	SubjectZone     string     `json:"subject_zone"`
	Relation        string     `json:"relation"`
	ObjectType      string     `json:"object_type"`
	ObjectID        string     `json:"object_id"`
	ObjectZone      string     `json:"object_zone"`
	Zone            string     `json:"zone"`
	Caveat          string     `json:"caveat,omitempty"`
	Expiry          *time.Time `json:"expiry,omitempty"`
}

func toPersisted(t Tuple) persisted {
	return persisted{
		SubjectType: t.Subject.Type, SubjectID: t.Subject.ID, SubjectRelation: t.Subject.Relation, SubjectZone: t.Subject.Zone,
		Relation:   t.Relation,
		ObjectType: t.Object.Type, ObjectID: t.Object.ID, ObjectZone: t.Object.Zone,
		Zone: t.Zone, Caveat: t.Caveat, Expiry: t.Expiry,
	}
}

func (p persisted) toTuple(revision uint64) Tuple {
	return Tuple{
		Subject:  Subject{Type: p.SubjectType, ID: p.SubjectID, Relation: p.SubjectRelation, Zone: p.SubjectZone},
		Relation: p.Relation,
		Object:   Object{Type: p.ObjectType, ID: p.ObjectID, Zone: p.ObjectZone},
		Zone:     p.Zone, Caveat: p.Caveat, Expiry: p.Expiry, Revision: revision,
	}
}

// Key returns the canonical string key for a tuple, matching spec.md §6's
// layout:
// rebac/tuple/{zone}/{object_type}:{object_id}/{relation}/{subject_type}:{subject_id}[/{subject_relation}]
func Key(t Tuple) string {
	subj := fmt.Sprintf("%s:%s", t.Subject.Type, t.Subject.ID)
	if t.Subject.Relation != "" {
		subj = subj + "/" + t.Subject.Relation
	}
	return fmt.Sprintf("rebac/tuple/%s/%s:%s/%s/%s", t.Zone, t.Object.Type, t.Object.ID, t.Relation, subj)
}

func storeKey(t Tuple) []byte { return []byte(Key(t)) }

func objectPrefix(zone, objectType, objectID string) []byte {
	return []byte(fmt.Sprintf("rebac/tuple/%s/%s:%s/", zone, objectType, objectID))
}

func zonePrefix(zone string) []byte {
	return []byte(fmt.Sprintf("rebac/tuple/%s/", zone))
}

// Store implements the ReBAC Tuple Store over a metadatastore.Store.
type Store struct {
	backing metadatastore.Store
}

// New builds a tuple Store over backing.
func New(backing metadatastore.Store) *Store {
	return &Store{backing: backing}
}

// Write inserts or replaces t, enforcing spec.md §4.G's tenant-isolation
// invariant: the subject's and object's zones must match the tuple's zone.
// Returns the zone revision at which the write committed.
func (s *Store) Write(ctx context.Context, t Tuple) (uint64, error) {
	if t.Subject.Zone != t.Zone || t.Object.Zone != t.Zone {
		return 0, errors.NewCrossTenant(Key(t))
	}

	data, err := json.Marshal(toPersisted(t))
	if err != nil {
		return 0, errors.NewCorrupt("tuple record", err)
	}
	revision, err := s.backing.Put(ctx, t.Zone, storeKey(t), data, nil)
	if err != nil {
		return 0, err
	}
	return revision, nil
}

// Delete removes t, returning the zone revision at which the delete
// committed.
func (s *Store) Delete(ctx context.Context, t Tuple) (uint64, error) {
	return s.backing.Delete(ctx, t.Zone, storeKey(t), nil)
}

// ReadAt returns the tuple at key if present and, when minRevision is
// non-zero, only if its last write revision is >= minRevision; otherwise
// NotFound.
func (s *Store) ReadAt(ctx context.Context, t Tuple, minRevision uint64) (*Tuple, error) {
	entry, err := s.backing.Get(ctx, storeKey(t))
	if err != nil {
		return nil, err
	}
	if minRevision != 0 && entry.Revision < minRevision {
		return nil, errors.NewNotFound("tuple", Key(t))
	}
	var p persisted
	if err := json.Unmarshal(entry.Value, &p); err != nil {
		return nil, errors.NewCorrupt("tuple record", err)
	}
	out := p.toTuple(entry.Revision)
	return &out, nil
}

// Filter selects tuples for List. Zone is required; all other fields are
// optional narrowing predicates. Supplying ObjectType+ObjectID enables a
// targeted prefix scan (O(matching)); otherwise the whole zone is scanned
// and filtered in-process.
type Filter struct {
	Zone        string
	ObjectType  string
	ObjectID    string
	Relation    string
	SubjectType string
	SubjectID   string
}

func (f Filter) matches(t Tuple) bool {
	if f.ObjectType != "" && t.Object.Type != f.ObjectType {
		return false
	}
	if f.ObjectID != "" && t.Object.ID != f.ObjectID {
		return false
	}
	if f.Relation != "" && t.Relation != f.Relation {
		return false
	}
	if f.SubjectType != "" && t.Subject.Type != f.SubjectType {
		return false
	}
	if f.SubjectID != "" && t.Subject.ID != f.SubjectID {
		return false
	}
	return true
}

// List returns tuples matching filter, paginated by cursor/limit.
func (s *Store) List(ctx context.Context, filter Filter, cursor string, limit int) ([]Tuple, string, error) {
	if limit <= 0 {
		limit = 100
	}
	var prefix []byte
	if filter.ObjectType != "" && filter.ObjectID != "" {
		prefix = objectPrefix(filter.Zone, filter.ObjectType, filter.ObjectID)
	} else {
		prefix = zonePrefix(filter.Zone)
	}

	out := make([]Tuple, 0, limit)
	afterKey := []byte(cursor)
	for {
		entries, next, err := s.backing.PrefixScan(ctx, prefix, afterKey, limit*4+16)
		if err != nil {
			return nil, "", err
		}
		for _, e := range entries {
			var p persisted
			if err := json.Unmarshal(e.Value, &p); err != nil {
				return nil, "", errors.NewCorrupt("tuple record", err)
			}
			t := p.toTuple(e.Revision)
			if filter.matches(t) {
				out = append(out, t)
				if len(out) >= limit {
					return out, string(e.Key), nil
				}
			}
		}
		if next == nil {
			return out, "", nil
		}
		afterKey = next
	}
}
