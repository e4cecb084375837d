package request

import (
	"fmt"
	"strings"
)

// Encode renders a Request back into a URI string. It is the structural
// inverse of Decode: filters, join-paths and order terms are emitted in
// their full dotted form, so decoding the result yields an equivalent
// Request. Repeated filter and join-path declarations are deduplicated.
// Percent-escaping is the caller's responsibility.
func Encode(r *Request) string {
	fields := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		fields = append(fields, joinDotted(f.Resource, f.Name))
	}
	path := strings.TrimRight(strings.Join([]string{r.Resource, r.ID, strings.Join(fields, ",")}, "/"), "/")

	var query []string
	seen := map[string]bool{}
	appendOnce := func(part string) {
		if !seen[part] {
			seen[part] = true
			query = append(query, part)
		}
	}

	for _, f := range r.Filters {
		appendOnce(joinDotted(f.Resource, f.Field, f.Comparator) + "=" + f.Value)
	}
	for _, jp := range r.JoinPaths {
		var b strings.Builder
		for _, node := range jp {
			b.WriteString("/" + joinDotted(node.Resource, node.Field, node.Comparator))
			if node.Value != "" {
				b.WriteString("=" + node.Value)
			}
		}
		appendOnce(b.String())
	}
	for _, o := range r.Order {
		appendOnce(orderParam + "=" + joinDotted(o.Resource, o.Field, o.Direction))
	}
	if r.Limit != nil {
		query = append(query, fmt.Sprintf("%s=%d", limitParam, *r.Limit))
	}

	if len(query) == 0 {
		return path
	}
	return path + "?" + strings.Join(query, "&")
}

// joinDotted joins the given components with dots, skipping empty leading
// components so that a filter without a resource encodes as
// "field.comparator".
func joinDotted(components ...string) string {
	nonEmpty := components[:0:0]
	for _, c := range components {
		if c != "" {
			nonEmpty = append(nonEmpty, c)
		}
	}
	return strings.Join(nonEmpty, ".")
}
