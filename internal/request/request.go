package request

// Reserved identifier tokens. "+" selects a list of records, "-" selects
// exactly one record (error when zero or several rows match).
const (
	IDMany = "+"
	IDOne  = "-"
)

// Reserved resource tokens for resourceless requests. "+" queries every
// resource named by the join-paths, "-" only the first resource of each
// join-path.
const (
	ResourceAll   = "+"
	ResourceFirst = "-"
)

// CountField is a virtual field that turns the whole request into a
// cardinality query.
const CountField = ":count"

// IsReservedID reports whether id is one of the reserved identifier tokens.
func IsReservedID(id string) bool {
	return id == IDMany || id == IDOne
}

// IsReservedResource reports whether resource is one of the reserved
// resource tokens.
func IsReservedResource(resource string) bool {
	return resource == ResourceAll || resource == ResourceFirst
}

// Request is the decoded form of a URI. It is built once per inbound call
// and never mutated afterwards.
type Request struct {
	Resource  string
	ID        string
	Fields    []Field
	Filters   []Filter
	JoinPaths []JoinPath
	Order     []Order
	Limit     *uint64
}

// Field selects one column of one resource. Resource is empty when the
// field applies to the base entity (single-resource request) or to every
// entity in play (resourceless request).
type Field struct {
	Resource string
	Name     string
}

// Filter is one predicate: resource.field comparator value. Resource is
// empty when the filter targets the base entity.
type Filter struct {
	Resource   string
	Field      string
	Comparator string
	Value      string
}

// JoinNode is one step of a join-path: the target resource reached through
// the relation of that name on the previous entity, with an optional
// filter on field/comparator/value.
type JoinNode struct {
	Resource   string
	Field      string
	Comparator string
	Value      string
}

// JoinPath is an ordered chain of relationship traversals.
type JoinPath []JoinNode

// Order is one ordering term. Resource is empty when it targets the base
// entity. Direction is "asc" or "desc".
type Order struct {
	Resource  string
	Field     string
	Direction string
}

// HasCountField reports whether the field list contains the virtual
// :count field, on any resource.
func (r *Request) HasCountField() bool {
	for _, f := range r.Fields {
		if f.Name == CountField {
			return true
		}
	}
	return false
}

// WantsList reports whether the request selects a list of records rather
// than exactly one.
func (r *Request) WantsList() bool {
	return r.ID == "" || r.ID == IDMany
}

// InvolvedResources returns the non-reserved base resource (if any)
// followed by every resource named in every join-path, in declaration
// order. Duplicates are preserved.
func (r *Request) InvolvedResources() []string {
	var involved []string
	if r.Resource != "" && !IsReservedResource(r.Resource) {
		involved = append(involved, r.Resource)
	}
	for _, path := range r.JoinPaths {
		for _, node := range path {
			involved = append(involved, node.Resource)
		}
	}
	return involved
}
