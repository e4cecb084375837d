package service

import (
	"context"
	"errors"
	"testing"

	"github.com/damiencorpataux/relrest/internal/catalog/catalogtest"
	"github.com/damiencorpataux/relrest/internal/planner"
	"github.com/damiencorpataux/relrest/internal/request"
	"github.com/damiencorpataux/relrest/internal/rights"
)

// The error paths below fail before any query executes, so no database
// session is wired.
func newService(t *testing.T, spec rights.RoleSpec) *Service {
	t.Helper()
	c := catalogtest.Load(t)
	r := rights.New()
	if spec != nil {
		if err := r.AddRoles(c, spec); err != nil {
			t.Fatal(err)
		}
	}
	return New(c, r, nil)
}

func TestRead_GrammarError(t *testing.T) {
	s := newService(t, nil)
	_, err := s.Read(context.Background(), "a/b/c/d", nil)
	var grammar *request.GrammarError
	if !errors.As(err, &grammar) {
		t.Fatalf("expected GrammarError, got %T: %v", err, err)
	}
}

func TestOperations_Forbidden(t *testing.T) {
	s := newService(t, rights.RoleSpec{"*": {"*": []string{"read"}}})
	ctx := context.Background()

	var forbidden *rights.ForbiddenError
	if _, err := s.Create(ctx, "tag", map[string]any{"name": "x"}, nil); !errors.As(err, &forbidden) {
		t.Fatalf("create: expected ForbiddenError, got %v", err)
	}
	if _, err := s.Update(ctx, "tag/1", map[string]any{"name": "x"}, nil); !errors.As(err, &forbidden) {
		t.Fatalf("update: expected ForbiddenError, got %v", err)
	}
	if err := s.Delete(ctx, "tag/1", nil); !errors.As(err, &forbidden) {
		t.Fatalf("delete: expected ForbiddenError, got %v", err)
	}
	if forbidden.Operation != rights.Delete {
		t.Errorf("ForbiddenError operation = %v", forbidden.Operation)
	}
}

func TestMutations_RequireConcreteIdentifier(t *testing.T) {
	s := newService(t, nil)
	ctx := context.Background()

	var missing *planner.MissingIdentifierError
	if _, err := s.Update(ctx, "tag/+", nil, nil); !errors.As(err, &missing) {
		t.Fatalf("update: expected MissingIdentifierError, got %v", err)
	}
	if err := s.Delete(ctx, "tag", nil); !errors.As(err, &missing) {
		t.Fatalf("delete: expected MissingIdentifierError, got %v", err)
	}
	if missing.Resource != "tag" {
		t.Errorf("error names resource %q", missing.Resource)
	}
}

func TestRead_UnknownResource(t *testing.T) {
	s := newService(t, nil)
	_, err := s.Read(context.Background(), "nosuch", nil)
	var unresolved *planner.UnresolvedReferenceError
	if !errors.As(err, &unresolved) {
		t.Fatalf("expected UnresolvedReferenceError, got %T: %v", err, err)
	}
}
