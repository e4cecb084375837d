package planner

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/damiencorpataux/relrest/internal/catalog/catalogtest"
)

func TestSplitRecord_SkipsUnknownKeysAndPrimaryKey(t *testing.T) {
	entity := catalogtest.Load(t).Entity("tag")

	cols, vals, toMany, err := splitRecord(entity, map[string]any{
		"id":          float64(9),
		"name":        "sports",
		"nosuchfield": 1,
		"tag":         float64(1),
		"event":       []any{float64(2), float64(3)},
	})
	if err != nil {
		t.Fatal(err)
	}

	got := map[string]any{}
	for i, col := range cols {
		got[col] = vals[i]
	}
	want := map[string]any{
		"name":   "sports",
		"tag_id": int64(1),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}

	if len(toMany) != 1 || toMany[0].name != "event" {
		t.Fatalf("to-many sets = %+v", toMany)
	}
	if diff := cmp.Diff([]any{int64(2), int64(3)}, toMany[0].ids); diff != "" {
		t.Errorf("event ids (-want +got):\n%s", diff)
	}
}

func TestSplitRecord_NilToOneClearsForeignKey(t *testing.T) {
	entity := catalogtest.Load(t).Entity("tag")

	cols, vals, _, err := splitRecord(entity, map[string]any{"tag": nil})
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 1 || cols[0] != "tag_id" || vals[0] != nil {
		t.Errorf("cols = %v, vals = %v", cols, vals)
	}
}

func TestSplitRecord_ToManyRejectsScalar(t *testing.T) {
	entity := catalogtest.Load(t).Entity("tag")

	_, _, _, err := splitRecord(entity, map[string]any{"event": float64(2)})
	var unresolved *UnresolvedReferenceError
	if !errors.As(err, &unresolved) {
		t.Errorf("err = %v", err)
	}
}
