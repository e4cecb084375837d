// Package rights implements role-based authorization over request
// operations. Rights are declared per role and resource as operation
// tokens with wildcard and negation support, expanded once at startup
// into an immutable role -> resource -> operation-set table.
package rights

import (
	"fmt"
	"strings"

	"github.com/damiencorpataux/relrest/internal/catalog"
	"github.com/damiencorpataux/relrest/internal/request"
)

// Operation is one of the four CRUD operations, carried as its single
// letter form internally.
type Operation byte

const (
	Create Operation = 'c'
	Read   Operation = 'r'
	Update Operation = 'u'
	Delete Operation = 'd'
)

func (op Operation) String() string {
	switch op {
	case Create:
		return "create"
	case Read:
		return "read"
	case Update:
		return "update"
	case Delete:
		return "delete"
	}
	return fmt.Sprintf("Operation(%q)", byte(op))
}

var allOperations = []Operation{Create, Read, Update, Delete}

// WildcardRole is implicitly granted to every caller in addition to its
// declared roles.
const WildcardRole = "*"

type opSet map[Operation]struct{}

// Rights is the expanded authorization table. The zero value (or one
// built from no declarations) permits everything: authorization is
// opt-in at the service level.
type Rights struct {
	byRole map[string]map[string]opSet
}

// New returns an empty Rights table bound to no declarations.
func New() *Rights {
	return &Rights{byRole: map[string]map[string]opSet{}}
}

// RoleSpec describes the rights of a set of roles:
// role -> resource-or-"*" -> operation tokens. Operation tokens are
// "*", "-*", or an optionally "-"-prefixed operation name or letter
// ("read", "r", "-delete", "-d").
type RoleSpec map[string]map[string][]string

// AddRoles expands and applies the given role descriptions. Resource "*"
// expands to every catalog resource. Within one call every grant is
// applied before any revocation, so a revocation wins regardless of its
// declaration order inside the call; successive calls apply in sequence.
func (r *Rights) AddRoles(c *catalog.Catalog, spec RoleSpec) error {
	type change struct {
		role, resource string
		op             Operation
	}
	var grants, revocations []change

	for role, description := range spec {
		for resource, tokens := range description {
			resources := []string{resource}
			if resource == "*" {
				resources = c.Resources()
			}
			for _, token := range tokens {
				ops, revoke, err := expandToken(token)
				if err != nil {
					return fmt.Errorf("role %q, resource %q: %w", role, resource, err)
				}
				for _, res := range resources {
					for _, op := range ops {
						ch := change{role: role, resource: res, op: op}
						if revoke {
							revocations = append(revocations, ch)
						} else {
							grants = append(grants, ch)
						}
					}
				}
			}
		}
	}

	for _, ch := range grants {
		byResource, ok := r.byRole[ch.role]
		if !ok {
			byResource = map[string]opSet{}
			r.byRole[ch.role] = byResource
		}
		ops, ok := byResource[ch.resource]
		if !ok {
			ops = opSet{}
			byResource[ch.resource] = ops
		}
		ops[ch.op] = struct{}{}
	}
	for _, ch := range revocations {
		delete(r.byRole[ch.role][ch.resource], ch.op)
	}
	return nil
}

// expandToken parses one operation token into the operations it names
// and whether it revokes them.
func expandToken(token string) (ops []Operation, revoke bool, err error) {
	name := token
	if strings.HasPrefix(name, "-") {
		revoke = true
		name = name[1:]
	}
	switch strings.ToLower(name) {
	case "*":
		return allOperations, revoke, nil
	case "c", "create":
		return []Operation{Create}, revoke, nil
	case "r", "read":
		return []Operation{Read}, revoke, nil
	case "u", "update":
		return []Operation{Update}, revoke, nil
	case "d", "delete":
		return []Operation{Delete}, revoke, nil
	}
	return nil, false, fmt.Errorf("invalid operation token %q", token)
}

// Declared reports whether any rights have been declared at all.
func (r *Rights) Declared() bool {
	return r != nil && len(r.byRole) > 0
}

// Authorize permits op on req for the given caller roles. With no
// declared rights it always permits. Otherwise the operation is allowed
// when at least one role (the caller's roles plus the wildcard role)
// grants it on at least one resource involved in the request, that is
// the base resource or any join-path resource. Denial returns a
// *ForbiddenError.
func (r *Rights) Authorize(op Operation, req *request.Request, roles []string) error {
	if !r.Declared() {
		return nil
	}

	forRoles := append([]string{WildcardRole}, roles...)
	involved := req.InvolvedResources()

	for _, role := range forRoles {
		byResource, ok := r.byRole[role]
		if !ok {
			continue
		}
		for _, resource := range involved {
			if _, ok := byResource[resource][op]; ok {
				return nil
			}
		}
	}

	return &ForbiddenError{
		Roles:     forRoles,
		Operation: op,
		Resources: involved,
	}
}

// ForbiddenError reports an authorization denial.
type ForbiddenError struct {
	Roles     []string
	Operation Operation
	Resources []string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("roles %v not allowed to %s on resources %v",
		e.Roles, e.Operation, e.Resources)
}
