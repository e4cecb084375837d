package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/damiencorpataux/relrest/internal/catalog"
	"github.com/damiencorpataux/relrest/internal/request"
)

// toManySet is a requested replacement of a to-many relation's members.
type toManySet struct {
	name string
	rel  *catalog.Relation
	ids  []any
}

// Create inserts one record and returns its primary key. Scalar keys
// become insert columns, to-one keys set the fk column, to-many keys
// attach the named related instances. Unknown keys are skipped. All
// statements run in one transaction.
func (p *Planner) Create(ctx context.Context, req *request.Request, record map[string]any) (any, error) {
	entity := p.Catalog.Entity(req.Resource)
	if entity == nil {
		return nil, unresolvedf("unknown resource %q", req.Resource)
	}
	cols, vals, toMany, err := splitRecord(entity, record)
	if err != nil {
		return nil, err
	}

	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var id any
	if len(cols) == 0 {
		sql := fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s", entity.Table, entity.PrimaryKey)
		err = tx.QueryRow(ctx, sql).Scan(&id)
	} else {
		sql, args, buildErr := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
			Insert(entity.Table).
			Columns(cols...).
			Values(vals...).
			Suffix("RETURNING " + entity.PrimaryKey).
			ToSql()
		if buildErr != nil {
			return nil, buildErr
		}
		err = tx.QueryRow(ctx, sql, args...).Scan(&id)
	}
	if err != nil {
		return nil, err
	}

	for _, set := range toMany {
		if err := applyToMany(ctx, tx, id, set, false); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return id, nil
}

// Update patches the identified record. The request must carry a
// concrete identifier. To-many keys replace the relation's membership
// entirely. The URI field selection does not restrict which keys apply.
func (p *Planner) Update(ctx context.Context, req *request.Request, record map[string]any) error {
	entity, id, err := p.identified(req)
	if err != nil {
		return err
	}
	cols, vals, toMany, err := splitRecord(entity, record)
	if err != nil {
		return err
	}

	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := existsInTx(ctx, tx, entity, id); err != nil {
		return err
	}

	if len(cols) > 0 {
		ub := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
			Update(entity.Table).
			Where(squirrel.Eq{entity.PrimaryKey: id})
		for i, col := range cols {
			ub = ub.Set(col, vals[i])
		}
		sql, args, err := ub.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return err
		}
	}

	for _, set := range toMany {
		if err := applyToMany(ctx, tx, id, set, true); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Delete removes the identified record along with its join-table rows.
func (p *Planner) Delete(ctx context.Context, req *request.Request) error {
	entity, id, err := p.identified(req)
	if err != nil {
		return err
	}

	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Detach join-table rows first so the delete succeeds regardless of
	// the schema's referential actions.
	for _, name := range entity.Relations() {
		rel := entity.Attribute(name).Relation
		if rel.Through == "" {
			continue
		}
		sql := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", rel.Through, rel.FK)
		if _, err := tx.Exec(ctx, sql, id); err != nil {
			return err
		}
	}

	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", entity.Table, entity.PrimaryKey)
	tag, err := tx.Exec(ctx, sql, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Resource: entity.Resource, ID: req.ID}
	}
	return tx.Commit(ctx)
}

// identified resolves the entity and the coerced concrete identifier of
// a mutation request.
func (p *Planner) identified(req *request.Request) (*catalog.Entity, any, error) {
	entity := p.Catalog.Entity(req.Resource)
	if entity == nil {
		return nil, nil, unresolvedf("unknown resource %q", req.Resource)
	}
	if req.ID == "" || request.IsReservedID(req.ID) {
		return nil, nil, &MissingIdentifierError{Resource: req.Resource, ID: req.ID}
	}
	id, err := coerceValue(entity.Attribute(entity.PrimaryKey).Scalar.Type, req.ID)
	if err != nil {
		return nil, nil, err
	}
	return entity, id, nil
}

func existsInTx(ctx context.Context, tx pgx.Tx, entity *catalog.Entity, id any) error {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", entity.PrimaryKey, entity.Table, entity.PrimaryKey)
	var got any
	err := tx.QueryRow(ctx, sql, id).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return &NotFoundError{Resource: entity.Resource, ID: fmt.Sprint(id)}
	}
	return err
}

// splitRecord partitions a record's keys into insert/update columns and
// to-many membership sets. Keys the entity does not declare are skipped.
func splitRecord(entity *catalog.Entity, record map[string]any) (cols []string, vals []any, toMany []toManySet, err error) {
	for key, value := range record {
		attr := entity.Attribute(key)
		if attr == nil || key == entity.PrimaryKey {
			continue
		}
		switch {
		case attr.Scalar != nil:
			cols = append(cols, key)
			vals = append(vals, normalizeValue(attr.Scalar.Type, value))

		case attr.Relation.Kind == catalog.ToOne:
			target := attr.Relation.Target()
			var fk any
			if value != nil {
				fk = normalizeValue(target.Attribute(target.PrimaryKey).Scalar.Type, value)
			}
			cols = append(cols, attr.Relation.FK)
			vals = append(vals, fk)

		default:
			ids, listErr := relatedIDs(attr.Relation, value)
			if listErr != nil {
				return nil, nil, nil, listErr
			}
			toMany = append(toMany, toManySet{name: key, rel: attr.Relation, ids: ids})
		}
	}
	return cols, vals, toMany, nil
}

func relatedIDs(rel *catalog.Relation, value any) ([]any, error) {
	if value == nil {
		return nil, nil
	}
	list, ok := value.([]any)
	if !ok {
		return nil, unresolvedf("to-many relation %q takes a list of %s identifiers", rel.Resource, rel.Resource)
	}
	target := rel.Target()
	typ := target.Attribute(target.PrimaryKey).Scalar.Type
	ids := make([]any, len(list))
	for i, v := range list {
		ids[i] = normalizeValue(typ, v)
	}
	return ids, nil
}

// applyToMany attaches the set's members to the given base row. With
// replace, the current membership is detached first.
func applyToMany(ctx context.Context, tx pgx.Tx, id any, set toManySet, replace bool) error {
	rel := set.rel
	if rel.Through != "" {
		if replace {
			sql := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", rel.Through, rel.FK)
			if _, err := tx.Exec(ctx, sql, id); err != nil {
				return err
			}
		}
		if len(set.ids) == 0 {
			return nil
		}
		ib := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
			Insert(rel.Through).
			Columns(rel.FK, rel.ThroughFK)
		for _, related := range set.ids {
			ib = ib.Values(id, related)
		}
		sql, args, err := ib.ToSql()
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, sql, args...)
		return err
	}

	// Without a join table membership lives on the target's fk column.
	target := rel.Target()
	if replace {
		sql := fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = $1", target.Table, rel.FK, rel.FK)
		if _, err := tx.Exec(ctx, sql, id); err != nil {
			return err
		}
	}
	if len(set.ids) == 0 {
		return nil
	}
	sql, args, err := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update(target.Table).
		Set(rel.FK, id).
		Where(squirrel.Eq{target.PrimaryKey: set.ids}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, sql, args...)
	return err
}

// normalizeValue maps a decoded JSON value onto the declared attribute
// type so the driver binds the right parameter type. JSON numbers decode
// as float64.
func normalizeValue(typ catalog.ScalarType, value any) any {
	if typ == catalog.TypeInt {
		if f, ok := value.(float64); ok {
			return int64(f)
		}
	}
	return value
}
