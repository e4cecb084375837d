package planner

import (
	"strconv"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/damiencorpataux/relrest/internal/catalog"
)

// buildCondition turns one (field, comparator, value) predicate on the
// given entity instance into a squirrel condition. The declared attribute
// type drives value coercion.
func buildCondition(ref *entityRef, field, comparator, value string) (squirrel.Sqlizer, error) {
	attr := ref.entity.Attribute(field)
	if attr == nil || attr.Scalar == nil {
		return nil, unresolvedf("resource %q has no scalar attribute %q", ref.entity.Resource, field)
	}
	column := ref.alias + "." + field
	typ := attr.Scalar.Type

	switch comparator {
	case "eq", "ne", "lt", "le", "gt", "ge":
		v, err := coerceValue(typ, value)
		if err != nil {
			return nil, err
		}
		switch comparator {
		case "eq":
			return squirrel.Eq{column: v}, nil
		case "ne":
			return squirrel.NotEq{column: v}, nil
		case "lt":
			return squirrel.Lt{column: v}, nil
		case "le":
			return squirrel.LtOrEq{column: v}, nil
		case "gt":
			return squirrel.Gt{column: v}, nil
		default:
			return squirrel.GtOrEq{column: v}, nil
		}

	case "like":
		return squirrel.Like{column: value}, nil

	case "in", "notin":
		values, err := coerceList(typ, value)
		if err != nil {
			return nil, err
		}
		if comparator == "in" {
			return squirrel.Eq{column: values}, nil
		}
		return squirrel.NotEq{column: values}, nil
	}

	return nil, &UnsupportedOperationError{Comparator: comparator}
}

// coerceValue marshals a raw URI value according to the attribute type.
// Booleans follow the original convention: a non-numeric string is true,
// a numeric string is false iff it parses to zero.
func coerceValue(typ catalog.ScalarType, value string) (any, error) {
	switch typ {
	case catalog.TypeInt:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, unresolvedf("value %q is not a valid integer", value)
		}
		return n, nil
	case catalog.TypeFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, unresolvedf("value %q is not a valid number", value)
		}
		return f, nil
	case catalog.TypeBool:
		if !isNumeric(value) {
			return true, nil
		}
		n, _ := strconv.ParseInt(value, 10, 64)
		return n != 0, nil
	default:
		return value, nil
	}
}

// coerceList splits a comma-separated membership value and coerces each
// element. An empty value yields an empty list (matching nothing for
// "in", everything for "notin").
func coerceList(typ catalog.ScalarType, value string) ([]any, error) {
	if value == "" {
		return []any{}, nil
	}
	parts := strings.Split(value, ",")
	values := make([]any, 0, len(parts))
	for _, part := range parts {
		v, err := coerceValue(typ, part)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
