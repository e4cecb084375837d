package itests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
)

func do(t *testing.T, method, path string, body any) (int, any) {
	t.Helper()

	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, baseURL+path, payload)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded any
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return resp.StatusCode, decoded
}

func get(t *testing.T, path string) (int, any) {
	t.Helper()
	return do(t, http.MethodGet, path, nil)
}

func asRecord(t *testing.T, v any) map[string]any {
	t.Helper()
	record, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected an object, got %T: %v", v, v)
	}
	return record
}

func asList(t *testing.T, v any) []any {
	t.Helper()
	list, ok := v.([]any)
	if !ok {
		t.Fatalf("expected a list, got %T: %v", v, v)
	}
	return list
}

// count fetches a :count URI and returns the value under its ":count"
// key.
func count(t *testing.T, path string) float64 {
	t.Helper()
	status, body := get(t, path)
	if status != http.StatusOK {
		t.Fatalf("%s: status %d: %v", path, status, body)
	}
	n, ok := asRecord(t, body)[":count"].(float64)
	if !ok {
		t.Fatalf("%s: no :count key in %v", path, body)
	}
	return n
}

func TestList(t *testing.T) {
	requireServer(t)
	status, body := get(t, "/resource/tag")
	if status != http.StatusOK {
		t.Fatalf("status %d: %v", status, body)
	}
	tags := asList(t, body)
	if len(tags) != 4 {
		t.Fatalf("expected 4 tags, got %d", len(tags))
	}
	// Default order is by name.
	if name := asRecord(t, tags[0])["name"]; name != "home" {
		t.Errorf("first tag = %v", name)
	}
}

func TestReadOne(t *testing.T) {
	requireServer(t)
	status, body := get(t, "/resource/tag/1")
	if status != http.StatusOK {
		t.Fatalf("status %d: %v", status, body)
	}
	record := asRecord(t, body)
	if record["id"] != float64(1) || record["name"] != "urgent" {
		t.Errorf("record = %v", record)
	}

	status, _ = get(t, "/resource/tag/999")
	if status != http.StatusNotFound {
		t.Errorf("missing tag: status %d", status)
	}
}

func TestFieldSelection(t *testing.T) {
	requireServer(t)
	status, body := get(t, "/resource/tag/1/name")
	if status != http.StatusOK {
		t.Fatalf("status %d: %v", status, body)
	}
	record := asRecord(t, body)
	if record["name"] != "urgent" {
		t.Errorf("record = %v", record)
	}
	if _, ok := record["color"]; ok {
		t.Error("unselected field must be omitted")
	}
}

func TestRelationLoads(t *testing.T) {
	requireServer(t)
	status, body := get(t, "/resource/tag/1/name,event")
	if status != http.StatusOK {
		t.Fatalf("status %d: %v", status, body)
	}
	record := asRecord(t, body)
	events := asList(t, record["/event"])
	if len(events) != 1 || events[0] != float64(1) {
		t.Errorf("/event = %v", events)
	}

	// The to-one parent tag serializes as the related primary key.
	status, body = get(t, "/resource/tag/2/tag")
	if status != http.StatusOK {
		t.Fatalf("status %d: %v", status, body)
	}
	if parent := asRecord(t, body)["/tag"]; parent != float64(1) {
		t.Errorf("/tag = %v", parent)
	}
}

func TestCounts(t *testing.T) {
	requireServer(t)

	if n := count(t, "/resource/tag/+/:count"); n != 4 {
		t.Errorf("tag count = %v", n)
	}

	// One row per tag-event association.
	if n := count(t, "/resource/tag/+/:count?/event"); n != 4 {
		t.Errorf("joined count = %v", n)
	}

	// Independent paths combine combinatorially: 4 tags x 4 events.
	if n := count(t, "/resource/+/+/:count?/tag&/event"); n != 16 {
		t.Errorf("cross join count = %v", n)
	}
}

func TestJoinPathFilter(t *testing.T) {
	requireServer(t)
	// Events carrying tag 2 ("work"): standup and retrospective.
	status, body := get(t, "/resource/event?/tag=2")
	if status != http.StatusOK {
		t.Fatalf("status %d: %v", status, body)
	}
	events := asList(t, body)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %v", body)
	}
	if summary := asRecord(t, events[0])["summary"]; summary != "standup" {
		t.Errorf("first event = %v", summary)
	}
}

func TestResourcelessTuples(t *testing.T) {
	requireServer(t)
	status, body := get(t, "/resource/+/+/tag.name,event.summary?/tag/event")
	if status != http.StatusOK {
		t.Fatalf("status %d: %v", status, body)
	}
	rows := asList(t, body)
	if len(rows) == 0 {
		t.Fatal("expected grouped tuples")
	}
	first := asRecord(t, rows[0])
	if _, ok := asRecord(t, first["tag"])["name"]; !ok {
		t.Errorf("grouped row = %v", first)
	}
}

func TestCreateUpdateDelete(t *testing.T) {
	requireServer(t)

	status, body := do(t, http.MethodPut, "/resource/tag", map[string]any{
		"name":  "sports",
		"color": "teal",
		"tag":   1,
		"event": []any{2, 3},
	})
	if status != http.StatusCreated {
		t.Fatalf("create: status %d: %v", status, body)
	}
	created := asRecord(t, body)
	id := created["id"].(float64)
	if created["name"] != "sports" {
		t.Errorf("created = %v", created)
	}

	path := fmt.Sprintf("/resource/tag/%.0f", id)

	status, body = get(t, path+"/event,tag")
	if status != http.StatusOK {
		t.Fatalf("read created: status %d: %v", status, body)
	}
	record := asRecord(t, body)
	if events := asList(t, record["/event"]); len(events) != 2 {
		t.Errorf("/event = %v", events)
	}
	if record["/tag"] != float64(1) {
		t.Errorf("/tag = %v", record["/tag"])
	}

	status, body = do(t, http.MethodPatch, path, map[string]any{"color": "navy"})
	if status != http.StatusOK {
		t.Fatalf("update: status %d: %v", status, body)
	}
	if asRecord(t, body)["color"] != "navy" {
		t.Errorf("updated = %v", body)
	}

	status, _ = do(t, http.MethodDelete, path, nil)
	if status != http.StatusNoContent {
		t.Fatalf("delete: status %d", status)
	}
	status, _ = get(t, path)
	if status != http.StatusNotFound {
		t.Errorf("deleted tag still readable: status %d", status)
	}

	// The join rows went with it.
	if n := count(t, "/resource/tag/+/:count?/event"); n != 4 {
		t.Errorf("association count after delete = %v", n)
	}
}

func TestUpdateIgnoresUnknownKeysAndFieldList(t *testing.T) {
	requireServer(t)

	// The URI field list scopes the re-read, never the update, and keys
	// the catalog does not declare are dropped.
	status, body := do(t, http.MethodPatch, "/resource/tag/3/name", map[string]any{
		"color":       "slate",
		"nosuchfield": 1,
	})
	if status != http.StatusOK {
		t.Fatalf("update: status %d: %v", status, body)
	}
	record := asRecord(t, body)
	if record["name"] != "home" {
		t.Errorf("re-read = %v", record)
	}
	if _, ok := record["color"]; ok {
		t.Error("field list must scope the re-read")
	}

	status, body = get(t, "/resource/tag/3")
	if status != http.StatusOK {
		t.Fatalf("read back: status %d: %v", status, body)
	}
	record = asRecord(t, body)
	if record["color"] != "slate" {
		t.Errorf("color = %v", record["color"])
	}
	if _, ok := record["nosuchfield"]; ok {
		t.Errorf("unknown key persisted: %v", record)
	}

	status, _ = do(t, http.MethodPatch, "/resource/tag/3", map[string]any{"color": "green"})
	if status != http.StatusOK {
		t.Fatalf("restore: status %d", status)
	}
}

func TestExactlyOneIdentifier(t *testing.T) {
	requireServer(t)

	// "-" requires exactly one match; 4 seeded tags conflict.
	status, _ := get(t, "/resource/tag/-")
	if status != http.StatusConflict {
		t.Errorf("ambiguous match: status %d", status)
	}

	status, body := get(t, "/resource/tag/-?name=urgent")
	if status != http.StatusOK {
		t.Fatalf("unique match: status %d: %v", status, body)
	}
	if asRecord(t, body)["id"] != float64(1) {
		t.Errorf("record = %v", body)
	}
}

func TestUpdateMissing(t *testing.T) {
	requireServer(t)
	status, _ := do(t, http.MethodPatch, "/resource/tag/9999", map[string]any{"name": "x"})
	if status != http.StatusNotFound {
		t.Errorf("status %d", status)
	}
	status, _ = do(t, http.MethodPatch, "/resource/tag", map[string]any{"name": "x"})
	if status != http.StatusBadRequest {
		t.Errorf("identifierless update: status %d", status)
	}
}

func TestDecodeEndpoint(t *testing.T) {
	requireServer(t)
	status, body := get(t, "/decode/tag/1/name?color.like=re%25")
	if status != http.StatusOK {
		t.Fatalf("status %d: %v", status, body)
	}
	introspection := asRecord(t, body)
	if introspection["received"] == "" || introspection["encoded"] == "" {
		t.Errorf("introspection = %v", introspection)
	}
}

func TestResourceIndexEndpoint(t *testing.T) {
	requireServer(t)
	status, body := get(t, "/resource-index")
	if status != http.StatusOK {
		t.Fatalf("status %d: %v", status, body)
	}
	index := asRecord(t, body)
	tag := asRecord(t, index["tag"])
	if tag["table"] != "tag" {
		t.Errorf("tag entry = %v", tag)
	}
}

func TestGrammarRejected(t *testing.T) {
	requireServer(t)
	status, _ := get(t, "/resource/a/b/c/d")
	if status != http.StatusBadRequest {
		t.Errorf("status %d", status)
	}
}
