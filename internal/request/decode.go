package request

import (
	"net/url"
	"strconv"
	"strings"
)

// Defaults supplies the values used for components a URI leaves out.
// Resource is normally empty, meaning "inherit from the base entity at
// planning time".
type Defaults struct {
	Resource   string
	Field      string
	Comparator string
	Direction  string
}

// DefaultDefaults returns the conventional defaulting configuration:
// primary key field, equality comparator, ascending order.
func DefaultDefaults() Defaults {
	return Defaults{Field: "id", Comparator: "eq", Direction: "asc"}
}

// Virtual query parameters, extracted separately from filters and
// join-paths.
const (
	limitParam = "_limit"
	orderParam = "_order"
)

// Decode parses a URI of the form
//
//	[/]resource[/id[/fields]]?[filter&...][/joinpath&...][_limit=n][_order=...]
//
// into a Request. Missing filter, join-node and order components are
// filled from d. Values are kept as strings; type coercion against the
// catalog happens in the planner.
func Decode(uri string, d Defaults) (*Request, error) {
	rawPath, rawQuery, _ := strings.Cut(uri, "?")

	segments := strings.Split(strings.Trim(rawPath, "/"), "/")
	if len(segments) > 3 {
		return nil, grammarErrf(uri, "path must contain at most 3 segments (resource/id/fields), got %d", len(segments))
	}
	for len(segments) < 3 {
		segments = append(segments, "")
	}

	req := &Request{
		Resource: unescape(segments[0]),
		ID:       unescape(segments[1]),
	}

	for _, descriptor := range strings.Split(segments[2], ",") {
		if descriptor == "" {
			continue
		}
		field, err := parseField(uri, unescape(descriptor), d)
		if err != nil {
			return nil, err
		}
		req.Fields = append(req.Fields, field)
	}

	for _, pair := range parseQueryPairs(rawQuery) {
		switch {
		case strings.HasPrefix(pair.key, "/"):
			path, err := parseJoinPath(uri, pair.key, d)
			if err != nil {
				return nil, err
			}
			req.JoinPaths = append(req.JoinPaths, path)

		case pair.key == limitParam:
			limit, err := strconv.ParseUint(pair.value, 10, 64)
			if err != nil {
				return nil, grammarErrf(uri, "%s must be a non-negative integer, got %q", limitParam, pair.value)
			}
			req.Limit = &limit

		case pair.key == orderParam:
			for _, descriptor := range strings.Split(pair.value, ",") {
				if descriptor == "" {
					continue
				}
				order, err := parseOrder(uri, unescape(descriptor), d)
				if err != nil {
					return nil, err
				}
				req.Order = append(req.Order, order)
			}

		default:
			filter, err := parseFilter(uri, unescape(pair.key), d)
			if err != nil {
				return nil, err
			}
			filter.Value = unescape(pair.value)
			req.Filters = append(req.Filters, filter)
		}
	}

	return req, nil
}

type queryPair struct {
	key   string
	value string
}

// parseQueryPairs splits a raw query string into key/value pairs,
// preserving declaration order. A repeated key keeps its first position
// but takes the last declared value. Join-path keys contain "=" in their
// node filters, so the remainder after the first "=" is re-joined into
// the key.
func parseQueryPairs(rawQuery string) []queryPair {
	var pairs []queryPair
	index := map[string]int{}

	for _, raw := range strings.Split(rawQuery, "&") {
		if raw == "" {
			continue
		}
		key, value, hasValue := strings.Cut(raw, "=")
		if strings.HasPrefix(key, "/") && hasValue {
			key = key + "=" + value
			value = ""
		}
		if at, seen := index[key]; seen {
			pairs[at].value = value
			continue
		}
		index[key] = len(pairs)
		pairs = append(pairs, queryPair{key: key, value: value})
	}
	return pairs
}

// parseField parses a field descriptor: [resource.]field
func parseField(uri, descriptor string, d Defaults) (Field, error) {
	parts := strings.Split(descriptor, ".")
	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return Field{}, grammarErrf(uri, "empty field descriptor")
		}
		return Field{Resource: d.Resource, Name: parts[0]}, nil
	case 2:
		return Field{Resource: parts[0], Name: parts[1]}, nil
	default:
		return Field{}, grammarErrf(uri, "field %q must contain at most 2 components (resource.field)", descriptor)
	}
}

// parseFilter parses a filter key: [resource.]field[.comparator]
// A two-component key is always field.comparator; naming a resource
// requires the full three-component form.
func parseFilter(uri, key string, d Defaults) (Filter, error) {
	parts := strings.Split(key, ".")
	f := Filter{Resource: d.Resource, Field: d.Field, Comparator: d.Comparator}
	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return Filter{}, grammarErrf(uri, "empty filter descriptor")
		}
		f.Field = parts[0]
	case 2:
		f.Field, f.Comparator = parts[0], parts[1]
	case 3:
		f.Resource, f.Field, f.Comparator = parts[0], parts[1], parts[2]
	default:
		return Filter{}, grammarErrf(uri, "filter %q must contain at most 3 components (resource.field.comparator)", key)
	}
	return f, nil
}

// parseJoinPath parses a join-path key: ("/" joinnode)+ where each node
// is [resource[.field[.comparator]]][=value].
func parseJoinPath(uri, key string, d Defaults) (JoinPath, error) {
	var path JoinPath
	for _, rawNode := range strings.Split(strings.TrimPrefix(key, "/"), "/") {
		descriptor, value, _ := strings.Cut(rawNode, "=")

		parts := strings.Split(descriptor, ".")
		if len(parts) > 3 {
			return nil, grammarErrf(uri, "join-node %q must contain at most 3 components (resource.field.comparator)", rawNode)
		}
		for len(parts) < 3 {
			parts = append(parts, "")
		}

		node := JoinNode{
			Resource:   unescape(parts[0]),
			Field:      parts[1],
			Comparator: parts[2],
			Value:      unescape(value),
		}
		if node.Resource == "" {
			node.Resource = d.Resource
		}
		if node.Field == "" {
			node.Field = d.Field
		}
		if node.Comparator == "" {
			node.Comparator = d.Comparator
		}
		path = append(path, node)
	}
	return path, nil
}

// parseOrder parses an order descriptor. One component is a field, three
// are resource.field.direction. With two components the last one is a
// direction when it reads asc/desc, a field otherwise.
func parseOrder(uri, descriptor string, d Defaults) (Order, error) {
	parts := strings.Split(descriptor, ".")
	o := Order{Resource: d.Resource, Direction: d.Direction}
	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return Order{}, grammarErrf(uri, "empty order descriptor")
		}
		o.Field = parts[0]
	case 2:
		if isDirection(parts[1]) {
			o.Field, o.Direction = parts[0], parts[1]
		} else {
			o.Resource, o.Field = parts[0], parts[1]
		}
	case 3:
		o.Resource, o.Field, o.Direction = parts[0], parts[1], parts[2]
	default:
		return Order{}, grammarErrf(uri, "order %q must contain at most 3 components (resource.field.direction)", descriptor)
	}
	if !isDirection(o.Direction) {
		return Order{}, grammarErrf(uri, "order direction must be asc or desc, got %q", o.Direction)
	}
	return o, nil
}

func isDirection(s string) bool {
	return s == "asc" || s == "desc"
}

// unescape undoes percent-encoding, leaving the input untouched when it
// is not valid percent-encoding. "+" is never treated as a space: it is a
// reserved token of the grammar.
func unescape(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	if decoded, err := url.PathUnescape(s); err == nil {
		return decoded
	}
	return s
}
