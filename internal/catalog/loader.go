package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// entitySpec is the YAML shape of one resource file. The resource name is
// the file name without extension.
type entitySpec struct {
	Table        string                  `yaml:"table"`
	PrimaryKey   string                  `yaml:"primary_key"`
	Attributes   map[string]string       `yaml:"attributes"`
	Relations    map[string]relationSpec `yaml:"relations"`
	DefaultOrder []string                `yaml:"default_order"`
}

type relationSpec struct {
	Kind      string `yaml:"kind"`
	Resource  string `yaml:"resource"`
	FK        string `yaml:"fk"`
	Through   string `yaml:"through"`
	ThroughFK string `yaml:"through_fk"`
}

// Load reads every *.yml file in dir, links relation targets and
// validates the result. The returned Catalog is immutable.
func Load(dir string) (*Catalog, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no entity files (*.yml) found in %s", dir)
	}

	c := &Catalog{entities: map[string]*Entity{}}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		resource := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		entity, err := buildEntity(resource, data)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", resource, err)
		}
		c.entities[resource] = entity
	}

	if err := c.link(); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func buildEntity(resource string, data []byte) (*Entity, error) {
	var spec entitySpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("yaml parse error: %w", err)
	}
	if spec.Table == "" {
		spec.Table = resource
	}
	if spec.PrimaryKey == "" {
		spec.PrimaryKey = "id"
	}

	e := &Entity{
		Resource:   resource,
		Table:      spec.Table,
		PrimaryKey: spec.PrimaryKey,
		attributes: map[string]*Attribute{},
	}

	for name, typ := range spec.Attributes {
		e.attributes[name] = &Attribute{
			Name:   name,
			Scalar: &Scalar{Type: ScalarType(typ)},
		}
	}

	for name, rel := range spec.Relations {
		if _, taken := e.attributes[name]; taken {
			return nil, fmt.Errorf("relation %q collides with a scalar attribute", name)
		}
		target := rel.Resource
		if target == "" {
			target = name
		}
		r := &Relation{
			Kind:      RelationKind(rel.Kind),
			Resource:  target,
			FK:        rel.FK,
			Through:   rel.Through,
			ThroughFK: rel.ThroughFK,
		}
		// Default foreign keys follow the usual naming convention.
		if r.FK == "" {
			switch r.Kind {
			case ToOne:
				r.FK = name + "_id"
			case ToMany:
				r.FK = resource + "_id"
			}
		}
		if r.Through != "" && r.ThroughFK == "" {
			r.ThroughFK = target + "_id"
		}
		e.attributes[name] = &Attribute{Name: name, Relation: r}
	}

	for _, raw := range spec.DefaultOrder {
		term, err := parseOrderTerm(raw)
		if err != nil {
			return nil, err
		}
		e.DefaultOrder = append(e.DefaultOrder, term)
	}

	return e, nil
}

// parseOrderTerm parses a default-order entry: field, field.direction,
// resource.field or resource.field.direction.
func parseOrderTerm(raw string) (OrderTerm, error) {
	parts := strings.Split(raw, ".")
	term := OrderTerm{Direction: "asc"}
	switch len(parts) {
	case 1:
		term.Field = parts[0]
	case 2:
		if parts[1] == "asc" || parts[1] == "desc" {
			term.Field, term.Direction = parts[0], parts[1]
		} else {
			term.Resource, term.Field = parts[0], parts[1]
		}
	case 3:
		term.Resource, term.Field, term.Direction = parts[0], parts[1], parts[2]
	default:
		return term, fmt.Errorf("invalid default_order entry %q", raw)
	}
	if term.Field == "" {
		return term, fmt.Errorf("invalid default_order entry %q", raw)
	}
	if term.Direction != "asc" && term.Direction != "desc" {
		return term, fmt.Errorf("invalid default_order direction in %q", raw)
	}
	return term, nil
}

// link resolves relation target references.
func (c *Catalog) link() error {
	for resource, entity := range c.entities {
		for name, attr := range entity.attributes {
			if attr.Relation == nil {
				continue
			}
			target, ok := c.entities[attr.Relation.Resource]
			if !ok {
				return fmt.Errorf("entity %s: relation %q targets unknown resource %q", resource, name, attr.Relation.Resource)
			}
			attr.Relation.target = target
		}
	}
	return nil
}
