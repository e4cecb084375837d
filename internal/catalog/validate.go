package catalog

import (
	"fmt"
	"strings"
)

var validScalarTypes = map[ScalarType]bool{
	TypeInt:      true,
	TypeFloat:    true,
	TypeString:   true,
	TypeBool:     true,
	TypeDatetime: true,
}

// validate checks structural soundness of the whole catalog after
// linking. The URI grammar reserves "+", "-" and the ":" prefix, so no
// resource or attribute may use them as a name.
func (c *Catalog) validate() error {
	for resource, entity := range c.entities {
		if err := validateName(resource); err != nil {
			return fmt.Errorf("resource %q: %w", resource, err)
		}

		pk := entity.Attribute(entity.PrimaryKey)
		if pk == nil || pk.Scalar == nil {
			return fmt.Errorf("entity %s: primary key %q is not a declared scalar attribute", resource, entity.PrimaryKey)
		}

		for name, attr := range entity.attributes {
			if err := validateName(name); err != nil {
				return fmt.Errorf("entity %s: attribute %q: %w", resource, name, err)
			}

			switch {
			case attr.Scalar != nil:
				if !validScalarTypes[attr.Scalar.Type] {
					return fmt.Errorf("entity %s: attribute %q has invalid type %q", resource, name, attr.Scalar.Type)
				}
			case attr.Relation != nil:
				rel := attr.Relation
				if rel.Kind != ToOne && rel.Kind != ToMany {
					return fmt.Errorf("entity %s: relation %q must have kind to_one or to_many, got %q", resource, name, rel.Kind)
				}
				if rel.Through != "" && rel.Kind != ToMany {
					return fmt.Errorf("entity %s: relation %q: through is only valid on to_many", resource, name)
				}
			default:
				return fmt.Errorf("entity %s: attribute %q is neither scalar nor relation", resource, name)
			}
		}
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if name == "+" || name == "-" {
		return fmt.Errorf("name %q is reserved by the URI grammar", name)
	}
	if strings.HasPrefix(name, ":") {
		return fmt.Errorf("name %q collides with virtual fields", name)
	}
	if strings.ContainsAny(name, "./,?&=") {
		return fmt.Errorf("name %q contains URI grammar delimiters", name)
	}
	return nil
}
