package rights

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/damiencorpataux/relrest/internal/catalog"
)

// LoadFile reads a RoleSpec from a YAML file and expands it against the
// catalog. A missing path yields an empty table, i.e. authorization
// disabled.
func LoadFile(path string, c *catalog.Catalog) (*Rights, error) {
	r := New()
	if path == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, err
	}

	var spec RoleSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("roles file %s: %w", path, err)
	}
	if err := r.AddRoles(c, spec); err != nil {
		return nil, fmt.Errorf("roles file %s: %w", path, err)
	}
	return r, nil
}
