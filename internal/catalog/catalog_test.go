package catalog_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/damiencorpataux/relrest/internal/catalog"
	"github.com/damiencorpataux/relrest/internal/catalog/catalogtest"
)

func loadFrom(t *testing.T, files map[string]string) (*catalog.Catalog, error) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return catalog.Load(dir)
}

func TestLoad_ReferenceCatalog(t *testing.T) {
	c := catalogtest.Load(t)

	if diff := cmp.Diff([]string{"event", "tag", "type"}, c.Resources()); diff != "" {
		t.Fatalf("resources mismatch (-want +got):\n%s", diff)
	}

	tag := c.Entity("tag")
	if tag == nil {
		t.Fatal("tag entity missing")
	}
	if tag.Table != "tag" || tag.PrimaryKey != "id" {
		t.Fatalf("tag descriptor mismatch: %+v", tag)
	}
	if diff := cmp.Diff([]string{"id", "color", "name"}, tag.Scalars()); diff != "" {
		t.Fatalf("tag scalars mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"event", "tag"}, tag.Relations()); diff != "" {
		t.Fatalf("tag relations mismatch (-want +got):\n%s", diff)
	}

	// self-referential to-one relation
	parent := tag.Attribute("tag")
	if parent == nil || parent.Relation == nil {
		t.Fatal("tag.tag relation missing")
	}
	if parent.Relation.Kind != catalog.ToOne || parent.Relation.FK != "tag_id" {
		t.Fatalf("tag.tag relation mismatch: %+v", parent.Relation)
	}
	if parent.Relation.Target() != tag {
		t.Fatal("self-referential relation must link back to the same entity")
	}

	// many-to-many through join table
	events := tag.Attribute("event").Relation
	if events.Kind != catalog.ToMany || events.Through != "nn_event_tag" ||
		events.FK != "tag_id" || events.ThroughFK != "event_id" {
		t.Fatalf("tag.event relation mismatch: %+v", events)
	}

	if len(tag.DefaultOrder) != 1 || tag.DefaultOrder[0].Field != "name" || tag.DefaultOrder[0].Direction != "asc" {
		t.Fatalf("tag default order mismatch: %+v", tag.DefaultOrder)
	}
}

func TestLoad_DefaultsAndConventions(t *testing.T) {
	c, err := loadFrom(t, map[string]string{
		"author.yml": `
attributes:
  id: int
  name: string
relations:
  book:
    kind: to_many
`,
		"book.yml": `
attributes:
  id: int
  title: string
relations:
  author:
    kind: to_one
`,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	author := c.Entity("author")
	if author.Table != "author" || author.PrimaryKey != "id" {
		t.Fatalf("table/pk defaults not applied: %+v", author)
	}
	// has-many fk defaults to <local resource>_id on the target table
	if rel := author.Attribute("book").Relation; rel.FK != "author_id" || rel.Resource != "book" {
		t.Fatalf("to_many fk convention mismatch: %+v", rel)
	}
	// to-one fk defaults to <relation name>_id on the local table
	if rel := c.Entity("book").Attribute("author").Relation; rel.FK != "author_id" {
		t.Fatalf("to_one fk convention mismatch: %+v", rel)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown relation target": {
			"tag.yml": "attributes: {id: int}\nrelations: {event: {kind: to_many}}",
		},
		"invalid relation kind": {
			"tag.yml": "attributes: {id: int}\nrelations: {tag: {kind: sideways, resource: tag}}",
		},
		"invalid scalar type": {
			"tag.yml": "attributes: {id: int, name: varchar}",
		},
		"missing primary key attribute": {
			"tag.yml": "primary_key: uid\nattributes: {id: int}",
		},
		"through on to_one": {
			"tag.yml": "attributes: {id: int}\nrelations: {parent: {kind: to_one, resource: tag, through: nn}}",
		},
		"reserved attribute name": {
			"tag.yml": "attributes: {id: int, '+': string}",
		},
	}
	for name, files := range cases {
		if _, err := loadFrom(t, files); err == nil {
			t.Errorf("%s: expected load error", name)
		}
	}
}

func TestValidate_ReservedResourceName(t *testing.T) {
	_, err := loadFrom(t, map[string]string{"+.yml": "attributes: {id: int}"})
	if err == nil || !strings.Contains(err.Error(), "reserved") {
		t.Fatalf("expected reserved-name error, got %v", err)
	}
}
