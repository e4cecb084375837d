// Package catalog holds the entity catalog: the immutable description
// of every resource the service exposes (table, primary key, typed
// scalar attributes and relations). It is loaded once at startup from a
// directory of YAML files, one file per resource, and shared read-only
// by the planner, the rights table and the serializer.
package catalog

import (
	"sort"
)

// ScalarType is the declared type of a scalar attribute. It drives filter
// value coercion in the planner.
type ScalarType string

const (
	TypeInt      ScalarType = "int"
	TypeFloat    ScalarType = "float"
	TypeString   ScalarType = "string"
	TypeBool     ScalarType = "bool"
	TypeDatetime ScalarType = "datetime"
)

// RelationKind discriminates the two relation cardinalities.
type RelationKind string

const (
	ToOne  RelationKind = "to_one"
	ToMany RelationKind = "to_many"
)

// Attribute is a closed variant: either a scalar column or a relation.
// Exactly one of Scalar and Relation is set.
type Attribute struct {
	Name     string
	Scalar   *Scalar
	Relation *Relation
}

// Scalar is a plain table column.
type Scalar struct {
	Type ScalarType
}

// Relation is an edge of the entity graph.
//
//   - ToOne: the local table carries FK pointing at the target primary key.
//   - ToMany with Through: a join table Through carries FK (to the local
//     pk) and ThroughFK (to the target pk).
//   - ToMany without Through: the target table carries FK pointing at the
//     local primary key.
type Relation struct {
	Kind      RelationKind
	Resource  string
	FK        string
	Through   string
	ThroughFK string

	target *Entity
}

// Target returns the linked target entity. Valid after Catalog linking.
func (r *Relation) Target() *Entity { return r.target }

// Entity describes one resource.
type Entity struct {
	Resource   string
	Table      string
	PrimaryKey string

	attributes map[string]*Attribute

	// DefaultOrder is appended after any explicit order when this entity
	// is the base of a request.
	DefaultOrder []OrderTerm
}

// OrderTerm is one term of an entity's default order.
type OrderTerm struct {
	Resource  string
	Field     string
	Direction string
}

// Attribute returns the attribute of the given name, or nil.
func (e *Entity) Attribute(name string) *Attribute {
	return e.attributes[name]
}

// Scalars returns the scalar attribute names in a stable (sorted) order.
// The primary key comes first.
func (e *Entity) Scalars() []string {
	names := make([]string, 0, len(e.attributes))
	for name, attr := range e.attributes {
		if attr.Scalar != nil && name != e.PrimaryKey {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return append([]string{e.PrimaryKey}, names...)
}

// Relations returns the relation attribute names in a stable order.
func (e *Entity) Relations() []string {
	var names []string
	for name, attr := range e.attributes {
		if attr.Relation != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Catalog maps resource names to entity descriptors. Immutable after
// construction.
type Catalog struct {
	entities map[string]*Entity
}

// Entity returns the descriptor for resource, or nil when unknown.
func (c *Catalog) Entity(resource string) *Entity {
	return c.entities[resource]
}

// Resources returns every resource name in sorted order.
func (c *Catalog) Resources() []string {
	names := make([]string, 0, len(c.entities))
	for name := range c.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
