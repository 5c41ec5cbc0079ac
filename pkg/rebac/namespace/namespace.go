// Package namespace holds the per-object-type ReBAC schema (spec.md §3's
// "Namespace definition"): for each object type, the permitted relations
// and their userset-rewrite rules. Namespace config is static and
// read-only at runtime — updates are out of scope (spec.md §3) — so it is
// expressed here as literal Go data rather than a mutable store.
package namespace

import "github.com/agentvfs/core/pkg/errors"

// Rewrite is a userset-rewrite expression node (spec.md §4.H).
type Rewrite interface{ isRewrite() }

// This selects any subject with a direct tuple for the relation currently
// being evaluated.
type This struct{}

// ComputedUserset unions over subjects holding Relation on the same
// object.
type ComputedUserset struct{ Relation string }

// TupleToUserset unions, for every tuple (x, Pivot, object), the subjects
// of Target on x. Encodes "admins of parent folder inherit to children."
type TupleToUserset struct{ Pivot, Target string }

// Union is the union of its children.
type Union struct{ Children []Rewrite }

// Intersection requires all children to hold.
type Intersection struct{ Children []Rewrite }

// Exclusion holds when Base holds and Subtract does not.
type Exclusion struct{ Base, Subtract Rewrite }

func (This) isRewrite()            {}
func (ComputedUserset) isRewrite() {}
func (TupleToUserset) isRewrite()  {}
func (Union) isRewrite()           {}
func (Intersection) isRewrite()    {}
func (Exclusion) isRewrite()       {}


// ObjectTypeDef is one object type's schema: its relations and which of
// them are administrative (able to alter ACLs / mount lifecycle).
type ObjectTypeDef struct {
	Relations map[string]Rewrite
	Admin     map[string]bool
}

// Namespace is the full per-object-type schema.
type Namespace struct {
	Types map[string]ObjectTypeDef

	// GroupObjectType/GroupRelation name the relation the check engine's
	// transitive closure index is built over (spec.md §4.H: "group-style
	// relations (member-of)").
	GroupObjectType string
	GroupRelation   string
}

// Rewrite looks up the rewrite rule for (objectType, relation). Returns
// SchemaError if either is not defined.
func (n Namespace) Rewrite(objectType, relation string) (Rewrite, error) {
	def, ok := n.Types[objectType]
	if !ok {
		return nil, errors.NewSchemaError(objectType)
	}
	rw, ok := def.Relations[relation]
	if !ok {
		return nil, errors.NewSchemaError(objectType + "#" + relation)
	}
	return rw, nil
}

// IsAdmin reports whether relation is an administrative relation on
// objectType.
func (n Namespace) IsAdmin(objectType, relation string) bool {
	def, ok := n.Types[objectType]
	if !ok {
		return false
	}
	return def.Admin[relation]
}

// Default returns the namespace schema shared by the agent-facing object
// types spec.md and its expansion name: file, the two SQL granularities,
// the blob and in-memory backends PathRouter can surface, group (for
// transitive membership), and mount (whose lifecycle is admin-only per
// spec.md §4.F).
func Default() Namespace {
	hierarchical := func() map[string]Rewrite {
		return map[string]Rewrite{
			"owner":  This{},
			"editor": Union{Children: []Rewrite{This{}, ComputedUserset{Relation: "owner"}}},
			"viewer": Union{Children: []Rewrite{This{}, ComputedUserset{Relation: "editor"}}},
			"can-read": Union{Children: []Rewrite{
				ComputedUserset{Relation: "viewer"},
				TupleToUserset{Pivot: "parent", Target: "can-read"},
			}},
			"can-write": Union{Children: []Rewrite{
				ComputedUserset{Relation: "editor"},
				TupleToUserset{Pivot: "parent", Target: "can-write"},
			}},
			"can-admin": ComputedUserset{Relation: "owner"},
		}
	}
	admins := map[string]bool{"owner": true, "can-admin": true}

	return Namespace{
		GroupObjectType: "group",
		GroupRelation:   "member",
		Types: map[string]ObjectTypeDef{
			"file":              {Relations: hierarchical(), Admin: admins},
			"database:table":    {Relations: hierarchical(), Admin: admins},
			"blob:bucket":       {Relations: hierarchical(), Admin: admins},
			"memory:namespace":  {Relations: hierarchical(), Admin: admins},
			"database:row": {
				Relations: map[string]Rewrite{
					"can-read": Union{Children: []Rewrite{
						This{}, TupleToUserset{Pivot: "parent", Target: "can-read"},
					}},
					"can-write": Union{Children: []Rewrite{
						This{}, TupleToUserset{Pivot: "parent", Target: "can-write"},
					}},
				},
				Admin: map[string]bool{},
			},
			"group": {
				Relations: map[string]Rewrite{"member": This{}},
				Admin:     map[string]bool{},
			},
			"mount": {
				Relations: map[string]Rewrite{
					"can-admin": This{},
					"can-read":  Union{Children: []Rewrite{This{}, ComputedUserset{Relation: "can-admin"}}},
				},
				Admin: map[string]bool{"can-admin": true},
			},
		},
	}
}
