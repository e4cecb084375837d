// Package catalogtest provides the reference catalog used across tests:
// the event/tag/type schema with many-to-many event relations and a
// self-referential tag parent.
package catalogtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/damiencorpataux/relrest/internal/catalog"
)

// Files is the YAML source of the reference catalog, keyed by file name.
var Files = map[string]string{
	"event.yml": `
table: event
primary_key: id
attributes:
  id: int
  summary: string
  description: string
  time: datetime
relations:
  type:
    kind: to_many
    through: nn_event_type
    fk: event_id
    through_fk: type_id
  tag:
    kind: to_many
    through: nn_event_tag
    fk: event_id
    through_fk: tag_id
default_order:
  - time
  - summary
`,
	"type.yml": `
table: type
primary_key: id
attributes:
  id: int
  name: string
relations:
  event:
    kind: to_many
    through: nn_event_type
    fk: type_id
    through_fk: event_id
default_order:
  - name
`,
	"tag.yml": `
table: tag
primary_key: id
attributes:
  id: int
  name: string
  color: string
relations:
  tag:
    kind: to_one
    fk: tag_id
  event:
    kind: to_many
    through: nn_event_tag
    fk: tag_id
    through_fk: event_id
default_order:
  - name
`,
}

// Load writes the reference YAML files into a temp dir and loads them.
func Load(t *testing.T) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()
	for name, content := range Files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	c, err := catalog.Load(dir)
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	return c
}
