// Package planner compiles a decoded Request into SQL over the entity
// catalog and executes it: filters, join-path chains, projection, order,
// limit, count, plus the create/update/delete write path.
package planner

import (
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/damiencorpataux/relrest/internal/catalog"
	"github.com/damiencorpataux/relrest/internal/request"
)

// Planner builds and executes queries against one catalog and one
// database session. A Planner is scoped to a single in-flight request.
type Planner struct {
	Catalog *catalog.Catalog
	DB      DB
}

// entityRef is one participating entity instance with its SQL alias.
// The same resource may participate several times under distinct
// aliases (once per join-path node naming it).
type entityRef struct {
	entity *catalog.Entity
	alias  string
}

// planColumn is one projected scalar column.
type planColumn struct {
	ref   *entityRef
	field string
}

// toOneLoad is a requested to-one relation of the base entity; its fk
// column is selected alongside the scalar columns and carries the
// related primary key directly.
type toOneLoad struct {
	name  string
	fkCol string
}

// toManyLoad is a requested to-many relation of the base entity, loaded
// with a follow-up query over the page of base rows.
type toManyLoad struct {
	name string
	rel  *catalog.Relation
}

// Plan is a fully built read query, ready to execute.
type Plan struct {
	builder      squirrel.SelectBuilder
	base         *entityRef
	all          []*entityRef // base + every join-path node, in order
	projected    []*entityRef // entity instances whose columns are returned
	columns      []planColumn
	toOne        []toOneLoad
	toMany       []toManyLoad
	count        bool
	single       bool
	resourceless bool
	id           string
}

// aliaser hands out the t0, t1, ... entity aliases and j0, j1, ...
// join-table aliases.
type aliaser struct {
	entities int
	joins    int
}

func (a *aliaser) entity() string {
	alias := fmt.Sprintf("t%d", a.entities)
	a.entities++
	return alias
}

func (a *aliaser) join() string {
	alias := fmt.Sprintf("j%d", a.joins)
	a.joins++
	return alias
}

// Plan resolves the request against the catalog and builds the SQL
// query per the read algorithm: resolve entities, seed, filter, join,
// limit, count short-circuit, order, project.
func (p *Planner) Plan(req *request.Request) (*Plan, error) {
	plan := &Plan{
		builder:      squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).Select(),
		count:        req.HasCountField(),
		single:       !req.WantsList(),
		resourceless: request.IsReservedResource(req.Resource),
		id:           req.ID,
	}
	var aliases aliaser

	// 1. Resolve participating entities and build FROM/JOIN clauses.
	if plan.resourceless {
		if len(req.JoinPaths) == 0 {
			return nil, unresolvedf("resourceless request %q requires at least one join-path, eg: +?/tag/event", req.Resource)
		}
		if req.ID != "" && !request.IsReservedID(req.ID) {
			return nil, unresolvedf("resourceless request cannot carry identifier %q; filter on a resource id instead, eg: +/+?/tag=1", req.ID)
		}
	} else {
		entity := p.Catalog.Entity(req.Resource)
		if entity == nil {
			return nil, unresolvedf("unknown resource %q", req.Resource)
		}
		plan.base = &entityRef{entity: entity, alias: aliases.entity()}
		plan.all = append(plan.all, plan.base)
		plan.projected = append(plan.projected, plan.base)
		plan.builder = plan.builder.From(fmt.Sprintf("%s AS %s", entity.Table, plan.base.alias))
	}

	// Join-path edges are outer joins only for the "+" selector.
	outer := req.Resource == request.ResourceAll

	type nodeFilter struct {
		ref  *entityRef
		node request.JoinNode
	}
	var nodeFilters []nodeFilter

	for _, path := range req.JoinPaths {
		prev := plan.base
		for i, node := range path {
			var ref *entityRef

			if prev == nil {
				// No base: the path's first node becomes the surrogate
				// base, a FROM root with no join emitted.
				entity := p.Catalog.Entity(node.Resource)
				if entity == nil {
					return nil, unresolvedf("unknown resource %q in join-path", node.Resource)
				}
				ref = &entityRef{entity: entity, alias: aliases.entity()}
				from := fmt.Sprintf("%s AS %s", entity.Table, ref.alias)
				if len(plan.all) == 0 {
					plan.builder = plan.builder.From(from)
				} else {
					// Independent join-path roots combine combinatorially.
					plan.builder = plan.builder.CrossJoin(from)
				}
			} else {
				attr := prev.entity.Attribute(node.Resource)
				if attr == nil || attr.Relation == nil {
					return nil, unresolvedf("resource %q has no relation %q", prev.entity.Resource, node.Resource)
				}
				ref = &entityRef{entity: attr.Relation.Target(), alias: aliases.entity()}
				plan.builder = joinRelation(plan.builder, attr.Relation, prev, ref, &aliases, outer)
			}

			plan.all = append(plan.all, ref)
			if req.Resource == request.ResourceAll ||
				(req.Resource == request.ResourceFirst && i == 0) {
				plan.projected = append(plan.projected, ref)
			}
			if node.Value != "" {
				nodeFilters = append(nodeFilters, nodeFilter{ref: ref, node: node})
			}
			prev = ref
		}
	}

	// 2. Seed: a concrete identifier constrains the base primary key.
	if req.ID != "" && !request.IsReservedID(req.ID) {
		pk := plan.base.entity
		value, err := coerceValue(pk.Attribute(pk.PrimaryKey).Scalar.Type, req.ID)
		if err != nil {
			return nil, err
		}
		plan.builder = plan.builder.Where(squirrel.Eq{plan.base.alias + "." + pk.PrimaryKey: value})
	}

	// 3. Filters.
	for _, filter := range req.Filters {
		ref, err := plan.resolveFilterRef(filter.Resource)
		if err != nil {
			return nil, err
		}
		cond, err := buildCondition(ref, filter.Field, filter.Comparator, filter.Value)
		if err != nil {
			return nil, err
		}
		plan.builder = plan.builder.Where(cond)
	}
	// Join-node filters apply at their own traversal step.
	for _, nf := range nodeFilters {
		cond, err := buildCondition(nf.ref, nf.node.Field, nf.node.Comparator, nf.node.Value)
		if err != nil {
			return nil, err
		}
		plan.builder = plan.builder.Where(cond)
	}

	// 4. Limit.
	if req.Limit != nil {
		plan.builder = plan.builder.Limit(*req.Limit)
	}

	// 5. Count short-circuit: wrap the query as-is (limit preserved),
	// no ordering or projection.
	if plan.count {
		inner := plan.builder.Column("1")
		plan.builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
			Select("COUNT(*)").
			FromSelect(inner, "q")
		return plan, nil
	}

	// 6. Order: explicit terms, then the base entity's default order.
	for _, o := range req.Order {
		if err := plan.applyOrder(o.Resource, o.Field, o.Direction); err != nil {
			return nil, err
		}
	}
	if plan.base != nil {
		for _, term := range plan.base.entity.DefaultOrder {
			if err := plan.applyOrder(term.Resource, term.Field, term.Direction); err != nil {
				return nil, err
			}
		}
	}

	// 7. Projection.
	if err := plan.project(req); err != nil {
		return nil, err
	}
	return plan, nil
}

// joinRelation emits the join clause(s) for one relation edge, from the
// prev instance to the target instance. to-many-through relations emit
// two joins (join table, then target).
func joinRelation(sb squirrel.SelectBuilder, rel *catalog.Relation, prev, target *entityRef, aliases *aliaser, outer bool) squirrel.SelectBuilder {
	join := sb.InnerJoin
	if outer {
		join = sb.LeftJoin
	}

	switch {
	case rel.Kind == catalog.ToOne:
		// local fk -> target pk
		return join(fmt.Sprintf("%s AS %s ON %s.%s = %s.%s",
			target.entity.Table, target.alias,
			prev.alias, rel.FK,
			target.alias, target.entity.PrimaryKey))

	case rel.Through != "":
		// local pk -> join table -> target pk
		through := aliases.join()
		sb = join(fmt.Sprintf("%s AS %s ON %s.%s = %s.%s",
			rel.Through, through,
			through, rel.FK,
			prev.alias, prev.entity.PrimaryKey))
		join = sb.InnerJoin
		if outer {
			join = sb.LeftJoin
		}
		return join(fmt.Sprintf("%s AS %s ON %s.%s = %s.%s",
			target.entity.Table, target.alias,
			target.alias, target.entity.PrimaryKey,
			through, rel.ThroughFK))

	default:
		// target fk -> local pk
		return join(fmt.Sprintf("%s AS %s ON %s.%s = %s.%s",
			target.entity.Table, target.alias,
			target.alias, rel.FK,
			prev.alias, prev.entity.PrimaryKey))
	}
}

// resolveFilterRef resolves the resource component of a filter to a
// participating entity instance. An empty resource falls back to the
// base entity; with several instances of the same resource the first
// one wins.
func (pl *Plan) resolveFilterRef(resource string) (*entityRef, error) {
	if resource == "" {
		if pl.base == nil {
			return nil, unresolvedf("filter is missing a resource component, which is required in a resourceless request, eg: resource.field.comparator=value")
		}
		return pl.base, nil
	}
	for _, ref := range pl.all {
		if ref.entity.Resource == resource {
			return ref, nil
		}
	}
	return nil, unresolvedf("filter resource %q does not participate in the request", resource)
}

func (pl *Plan) applyOrder(resource, field, direction string) error {
	ref, err := pl.resolveFilterRef(resource)
	if err != nil {
		return err
	}
	attr := ref.entity.Attribute(field)
	if attr == nil || attr.Scalar == nil {
		return unresolvedf("resource %q has no scalar attribute %q to order by", ref.entity.Resource, field)
	}
	dir := "ASC"
	if direction == "desc" {
		dir = "DESC"
	}
	pl.builder = pl.builder.OrderBy(fmt.Sprintf("%s.%s %s", ref.alias, field, dir))
	return nil
}

// project decides the selected columns and requested relation loads.
func (pl *Plan) project(req *request.Request) error {
	if pl.resourceless {
		return pl.projectResourceless(req)
	}
	return pl.projectSingle(req)
}

// projectResourceless builds an explicit labeled column list: one column
// per selected scalar of each projected entity instance. Relations are
// never projected in resourceless mode.
func (pl *Plan) projectResourceless(req *request.Request) error {
	if len(req.Fields) == 0 {
		for _, ref := range pl.projected {
			for _, field := range ref.entity.Scalars() {
				pl.columns = append(pl.columns, planColumn{ref: ref, field: field})
			}
		}
	} else {
		for _, f := range req.Fields {
			if f.Resource != "" {
				ref, err := pl.resolveFilterRef(f.Resource)
				if err != nil {
					return err
				}
				attr := ref.entity.Attribute(f.Name)
				if attr == nil {
					return unresolvedf("resource %q has no attribute %q", f.Resource, f.Name)
				}
				if attr.Scalar == nil {
					continue // relations are never projected as columns
				}
				pl.columns = append(pl.columns, planColumn{ref: ref, field: f.Name})
				continue
			}
			// Without a resource the field selects that column on every
			// projected entity that has it.
			for _, ref := range pl.projected {
				if attr := ref.entity.Attribute(f.Name); attr != nil && attr.Scalar != nil {
					pl.columns = append(pl.columns, planColumn{ref: ref, field: f.Name})
				}
			}
		}
	}

	if len(pl.columns) == 0 {
		return unresolvedf("no column selected by fields %v", req.Fields)
	}
	for _, col := range pl.columns {
		pl.builder = pl.builder.Column(col.ref.alias + "." + col.field)
	}
	return nil
}

// projectSingle restricts the base entity's columns to the selected
// scalar fields (the primary key is always selected). A field naming a
// relation is loaded as related primary keys only.
func (pl *Plan) projectSingle(req *request.Request) error {
	base := pl.base
	selected := map[string]bool{base.entity.PrimaryKey: true}
	pl.columns = append(pl.columns, planColumn{ref: base, field: base.entity.PrimaryKey})

	addScalar := func(field string) {
		if !selected[field] {
			selected[field] = true
			pl.columns = append(pl.columns, planColumn{ref: base, field: field})
		}
	}

	if len(req.Fields) == 0 {
		for _, field := range base.entity.Scalars() {
			addScalar(field)
		}
	} else {
		for _, f := range req.Fields {
			if f.Resource != "" && f.Resource != base.entity.Resource {
				return unresolvedf("field %s.%s does not target the base resource %q; use a resourceless request to project several resources", f.Resource, f.Name, base.entity.Resource)
			}
			attr := base.entity.Attribute(f.Name)
			if attr == nil {
				return unresolvedf("resource %q has no attribute %q", base.entity.Resource, f.Name)
			}
			switch {
			case attr.Scalar != nil:
				addScalar(f.Name)
			case attr.Relation.Kind == catalog.ToOne:
				pl.toOne = append(pl.toOne, toOneLoad{name: f.Name, fkCol: attr.Relation.FK})
			default:
				pl.toMany = append(pl.toMany, toManyLoad{name: f.Name, rel: attr.Relation})
			}
		}
	}

	for _, col := range pl.columns {
		pl.builder = pl.builder.Column(col.ref.alias + "." + col.field)
	}
	// The fk column of a requested to-one relation carries the related
	// primary key; select it after the scalars.
	for _, rel := range pl.toOne {
		pl.builder = pl.builder.Column(base.alias + "." + rel.fkCol)
	}
	return nil
}

// SQL renders the plan. Exposed for logging and tests.
func (pl *Plan) SQL() (string, []any, error) {
	return pl.builder.ToSql()
}
