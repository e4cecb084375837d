package planner

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/damiencorpataux/relrest/internal/request"
)

// DB is the store session the planner executes against. *pgx.Conn and
// pgxpool satisfy it. A session is scoped to one in-flight request and
// is not safe for concurrent use.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Row is one fetched entity instance. Only loaded attributes are
// present; the serializer omits everything else.
type Row struct {
	Resource string
	Scalars  map[string]any
	Fields   []string         // scalar field names in projection order
	ToOne    map[string]any   // relation name -> related primary key (nil when unset)
	ToMany   map[string][]any // relation name -> related primary keys
}

// TupleRow is one combinatorial row of a resourceless query: values
// labeled "resource.field" in projection order.
type TupleRow struct {
	Labels []string
	Values []any
}

// Result is the raw outcome of a read, before serialization. Exactly
// one of Count, Rows or Tuples is meaningful.
type Result struct {
	Count        *int64
	Resourceless bool
	Single       bool
	Rows         []Row
	Tuples       []TupleRow
}

// Read plans and executes a read request.
func (p *Planner) Read(ctx context.Context, req *request.Request) (*Result, error) {
	plan, err := p.Plan(req)
	if err != nil {
		return nil, err
	}

	sql, args, err := plan.SQL()
	if err != nil {
		return nil, err
	}

	if plan.count {
		var count int64
		rows, err := p.DB.Query(ctx, sql, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		if rows.Next() {
			if err := rows.Scan(&count); err != nil {
				return nil, err
			}
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return &Result{Count: &count}, nil
	}

	rows, err := p.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &Result{Resourceless: plan.resourceless, Single: plan.single}

	if plan.resourceless {
		labels := make([]string, len(plan.columns))
		for i, col := range plan.columns {
			labels[i] = col.ref.entity.Resource + "." + col.field
		}
		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				return nil, err
			}
			result.Tuples = append(result.Tuples, TupleRow{Labels: labels, Values: values})
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		if plan.single {
			if err := requireOne(len(result.Tuples), req); err != nil {
				return nil, err
			}
		}
		return result, nil
	}

	base := plan.base
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := Row{
			Resource: base.entity.Resource,
			Scalars:  make(map[string]any, len(plan.columns)),
			ToOne:    map[string]any{},
			ToMany:   map[string][]any{},
		}
		for i, col := range plan.columns {
			row.Scalars[col.field] = values[i]
			row.Fields = append(row.Fields, col.field)
		}
		for i, rel := range plan.toOne {
			row.ToOne[rel.name] = values[len(plan.columns)+i]
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := p.loadToMany(ctx, plan, result.Rows); err != nil {
		return nil, err
	}
	if plan.single {
		if err := requireOne(len(result.Rows), req); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func requireOne(n int, req *request.Request) error {
	switch {
	case n == 0:
		id := req.ID
		if request.IsReservedID(id) {
			id = ""
		}
		return &NotFoundError{Resource: req.Resource, ID: id}
	case n > 1:
		return &MultipleResultsError{Resource: req.Resource, Count: n}
	}
	return nil
}

// loadToMany fetches the related primary keys of every requested
// to-many relation, one query per relation over the page of base rows.
func (p *Planner) loadToMany(ctx context.Context, plan *Plan, rowSet []Row) error {
	if len(plan.toMany) == 0 || len(rowSet) == 0 {
		return nil
	}

	pk := plan.base.entity.PrimaryKey
	ids := make([]any, 0, len(rowSet))
	index := make(map[any]int, len(rowSet))
	for i, row := range rowSet {
		id := row.Scalars[pk]
		ids = append(ids, id)
		index[id] = i
	}

	for _, load := range plan.toMany {
		rel := load.rel
		var sb squirrel.SelectBuilder
		if rel.Through != "" {
			sb = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
				Select(rel.FK, rel.ThroughFK).
				From(rel.Through).
				Where(squirrel.Eq{rel.FK: ids})
		} else {
			sb = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
				Select(rel.FK, rel.Target().PrimaryKey).
				From(rel.Target().Table).
				Where(squirrel.Eq{rel.FK: ids})
		}
		sql, args, err := sb.ToSql()
		if err != nil {
			return err
		}
		rows, err := p.DB.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		for rows.Next() {
			var localID, relatedID any
			if err := rows.Scan(&localID, &relatedID); err != nil {
				rows.Close()
				return err
			}
			if i, ok := index[localID]; ok {
				rowSet[i].ToMany[load.name] = append(rowSet[i].ToMany[load.name], relatedID)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
		// A row with no related entities still marks the relation as
		// loaded, serializing to an empty list.
		for i := range rowSet {
			if _, ok := rowSet[i].ToMany[load.name]; !ok {
				rowSet[i].ToMany[load.name] = []any{}
			}
		}
	}
	return nil
}
