// Package serialize flattens executed read results into the JSON shapes
// of the wire format: flat records with "/"-prefixed relation keys, and
// per-resource grouped objects for combinatorial rows.
package serialize

import (
	"github.com/damiencorpataux/relrest/internal/planner"
)

// Record is one serialized entity instance: loaded scalar fields by
// name, loaded relations under "/"-prefixed keys carrying the related
// primary key (to-one) or primary key list (to-many). Attributes that
// were not loaded are absent.
type Record = map[string]any

// Result turns a raw planner result into its JSON value: a count
// object, a single record, a list of records, or a list of grouped
// tuple objects.
func Result(res *planner.Result) any {
	switch {
	case res.Count != nil:
		return Record{":count": *res.Count}
	case res.Resourceless:
		tuples := make([]Record, 0, len(res.Tuples))
		for _, tuple := range res.Tuples {
			tuples = append(tuples, Tuple(tuple))
		}
		if res.Single {
			return tuples[0]
		}
		return tuples
	default:
		records := make([]Record, 0, len(res.Rows))
		for _, row := range res.Rows {
			records = append(records, Row(row))
		}
		if res.Single {
			return records[0]
		}
		return records
	}
}

// Row flattens one entity row.
func Row(row planner.Row) Record {
	record := make(Record, len(row.Scalars)+len(row.ToOne)+len(row.ToMany))
	for field, value := range row.Scalars {
		record[field] = value
	}
	for name, pk := range row.ToOne {
		record["/"+name] = pk
	}
	for name, pks := range row.ToMany {
		record["/"+name] = pks
	}
	return record
}

// Tuple groups one combinatorial row by resource: the "resource.field"
// labels become nested {resource: {field: value}} objects. When the same
// resource participates several times the later instance wins.
func Tuple(tuple planner.TupleRow) Record {
	record := Record{}
	for i, label := range tuple.Labels {
		resource, field := splitLabel(label)
		group, ok := record[resource].(Record)
		if !ok {
			group = Record{}
			record[resource] = group
		}
		group[field] = tuple.Values[i]
	}
	return record
}

func splitLabel(label string) (resource, field string) {
	for i := 0; i < len(label); i++ {
		if label[i] == '.' {
			return label[:i], label[i+1:]
		}
	}
	return "", label
}
