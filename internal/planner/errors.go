package planner

import "fmt"

// UnresolvedReferenceError reports a resource or field the catalog does
// not know, or a component that cannot be resolved against a base entity
// (e.g. a filter without a resource in a resourceless request).
type UnresolvedReferenceError struct {
	Detail string
}

func (e *UnresolvedReferenceError) Error() string {
	return "unresolved reference: " + e.Detail
}

func unresolvedf(format string, args ...any) error {
	return &UnresolvedReferenceError{Detail: fmt.Sprintf(format, args...)}
}

// UnsupportedOperationError reports an unknown comparator.
type UnsupportedOperationError struct {
	Comparator string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("comparator not supported: %q", e.Comparator)
}

// MissingIdentifierError reports an update or delete without a concrete
// identifier.
type MissingIdentifierError struct {
	Resource string
	ID       string
}

func (e *MissingIdentifierError) Error() string {
	return fmt.Sprintf("operation on %q requires a concrete identifier, got %q", e.Resource, e.ID)
}

// NotFoundError reports zero rows where exactly one was required.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("no %s found with id %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("no %s found", e.Resource)
}

// MultipleResultsError reports several rows where exactly one was
// required.
type MultipleResultsError struct {
	Resource string
	Count    int
}

func (e *MultipleResultsError) Error() string {
	return fmt.Sprintf("expected exactly one %s, matched %d", e.Resource, e.Count)
}
