package zorm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// AssociationKind tags what a resolved association holds.
type AssociationKind int

const (
	// AssociationNotFound means the relation points at nothing: a null or
	// dangling reference, or a single fetch that matched no row.
	AssociationNotFound AssociationKind = iota
	// AssociationOne holds a single fetched Record.
	AssociationOne
	// AssociationMany holds an unevaluated Query.
	AssociationMany
	// AssociationValue holds a plain column value of the record.
	AssociationValue
)

func (k AssociationKind) String() string {
	switch k {
	case AssociationNotFound:
		return "not found"
	case AssociationOne:
		return "one"
	case AssociationMany:
		return "many"
	case AssociationValue:
		return "value"
	}
	return fmt.Sprintf("AssociationKind(%d)", int(k))
}

// Association is the result of resolving a name on a record.
type Association struct {
	Kind AssociationKind
	Name string

	Record *Record // AssociationOne
	Query  *Query  // AssociationMany
	Value  any     // AssociationValue
}

// Found reports whether the association references something.
func (a *Association) Found() bool {
	return a != nil && a.Kind != AssociationNotFound
}

// All materializes the association as a slice of records. A not-found
// association yields an empty slice. Each call on a many association runs
// a fresh copy of its query.
func (a *Association) All(ctx context.Context) ([]*Record, error) {
	if a == nil {
		return nil, nil
	}

	switch a.Kind {
	case AssociationOne:
		return []*Record{a.Record}, nil
	case AssociationMany:
		return a.Query.Clone().All(ctx)
	case AssociationValue:
		return nil, fmt.Errorf("%w: %s is a column, not a relation", ErrInvalidRelation, a.Name)
	}
	return nil, nil
}

func notFoundAssociation(name string) *Association {
	return &Association{Kind: AssociationNotFound, Name: name}
}

func manyAssociation(name string, q *Query) (*Association, error) {
	if q.err != nil {
		return nil, q.err
	}
	return &Association{Kind: AssociationMany, Name: name, Query: q}, nil
}

// fetchAssociation evaluates q for one row; no row is a not-found association.
func fetchAssociation(ctx context.Context, name string, q *Query) (*Association, error) {
	rec, err := q.FetchOne(ctx)
	if IsNotFound(err) {
		return notFoundAssociation(name), nil
	}
	if err != nil {
		return nil, err
	}
	return &Association{Kind: AssociationOne, Name: name, Record: rec}, nil
}

// matchKey filters column on value. A null value matches no row instead of
// rendering an IS NULL comparison.
func matchKey(q *Query, column string, value any) *Query {
	if isNullValue(value) {
		return q.WhereIn(column)
	}
	return q.Where(column, value)
}

// Relation resolves name on the record. See Resolve.
func (r *Record) Relation(ctx context.Context, name string) (*Association, error) {
	return Resolve(ctx, r, name)
}

// Resolve looks name up on rec in this order: a relation stored with
// SetRelated, a morph-one-or-many, a morph-to, a morph-many-through, a static
// relation, a plain column. Anything else is ErrUndefinedAttribute.
//
// Morph-one-or-many (unless Single), morph-many-through, HasMany and
// BelongsToMany resolve to a lazy query; the others fetch at most one row.
// Every call builds a new query, nothing is cached on the record.
func Resolve(ctx context.Context, rec *Record, name string) (*Association, error) {
	if rec == nil || rec.model == nil {
		return nil, fmt.Errorf("%w: cannot resolve %q on a nil record", ErrInvalidRelation, name)
	}

	if assoc, ok := rec.related[name]; ok {
		return assoc, nil
	}

	var (
		def   = rec.model
		assoc *Association
		err   error
	)

	if spec, ok := def.morphOneOrMany[name]; ok {
		assoc, err = resolveMorphOneOrMany(ctx, rec, name, spec)
	} else if spec, ok := def.morphTo[name]; ok {
		assoc, err = resolveMorphTo(ctx, rec, name, spec)
	} else if spec, ok := def.morphManyThrough[name]; ok {
		assoc, err = resolveMorphManyThrough(rec, name, spec)
	} else if rel, ok := def.relations[name]; ok {
		assoc, err = resolveStatic(ctx, rec, name, rel)
	} else if value, ok := rec.attrs[name]; ok {
		return &Association{Kind: AssociationValue, Name: name, Value: value}, nil
	} else {
		err = ErrUndefinedAttribute
	}

	if err != nil {
		return nil, WrapRelationError(name, def.Name, err)
	}
	return assoc, nil
}

// resolveMorphOneOrMany selects the target rows whose `_id`/`_type` pair
// points at rec.
//
//	SELECT "upvote".* FROM "upvotes" AS "upvote"
//	WHERE "upvote"."upvoteable_id" = ? AND "upvote"."upvoteable_type" = ?
func resolveMorphOneOrMany(ctx context.Context, rec *Record, name string, spec MorphOneOrMany) (*Association, error) {
	q := rec.conn.Query(spec.Model)
	matchKey(q, q.Qualify(idColumn(spec)), rec.PrimaryKeyValue())
	q.Where(q.Qualify(typeColumn(spec)), rec.MorphType())

	if spec.Single {
		if isNullValue(rec.PrimaryKeyValue()) {
			return notFoundAssociation(name), nil
		}
		return fetchAssociation(ctx, name, q)
	}
	return manyAssociation(name, q)
}

// resolveMorphTo fetches the row named by rec's own `_type` and `_id`
// values. Null, empty or unknown references are not found without a query.
func resolveMorphTo(ctx context.Context, rec *Record, name string, spec MorphTo) (*Association, error) {
	id := rec.Get(idColumn(spec))
	typ := rec.Get(typeColumn(spec))
	if isNullValue(id) || isNullValue(typ) {
		return notFoundAssociation(name), nil
	}
	if rec.conn == nil {
		return nil, ErrNoConnection
	}

	target, err := rec.conn.Registry.Model(keyString(typ))
	if err != nil {
		rec.conn.Logger().Warn("dangling polymorphic reference",
			zap.String("model", rec.model.Name),
			zap.String("relation", name),
			zap.Any("type", typ),
			zap.Any("id", id))
		return notFoundAssociation(name), nil
	}

	q := newQuery(rec.conn, target)
	q.Where(q.Qualify(target.PrimaryKey), id)
	return fetchAssociation(ctx, name, q)
}

// resolveMorphManyThrough selects the targets linked to rec through the
// pivot, one row per target, excluding targets without a pivot row.
//
// Polymorphic start (the pivot's `_id`/`_type` pair identifies rec):
//
//	SELECT "project".*, COUNT("taggables"."taggable_id") AS polymorphic_count
//	FROM "projects" AS "project"
//	LEFT JOIN "taggables" ON "taggables"."tag_id" = "project"."id"
//	WHERE "taggables"."taggable_id" = ? AND "taggables"."taggable_type" = ?
//	GROUP BY "project"."id" HAVING polymorphic_count > ?
//
// Polymorphic end joins on the `_id` column instead, matches rec on the far
// key and compares `_type` with the target's discriminator.
//
// In both directions the pivot's `_type` column must hold MorphType of the
// polymorphic model, the singular table name ("blog_post" for BlogPost), not
// the model name. Pivot rows written with model names ("BlogPost") have to be
// rewritten to match.
func resolveMorphManyThrough(rec *Record, name string, spec MorphManyThrough) (*Association, error) {
	q := rec.conn.Query(spec.Model)
	target := q.Model()
	if target == nil {
		return nil, q.Err()
	}

	var (
		pivotID   = q.QualifyTable(spec.Pivot, idColumn(spec))
		pivotType = q.QualifyTable(spec.Pivot, typeColumn(spec))
		farKey    = q.QualifyTable(spec.Pivot, spec.ForeignOrFarKey)
		targetPK  = q.Qualify(target.PrimaryKey)
	)

	q.Select(q.Qualify("*")).
		SelectAs("COUNT("+pivotID+")", polymorphicCountAlias)

	if spec.PolymorphicStart {
		q.Join(q.QuoteIdentifier(spec.Pivot), JoinTypeLeft).On(farKey, Eq, targetPK)
		matchKey(q, pivotID, rec.PrimaryKeyValue())
		q.Where(pivotType, rec.MorphType())
	} else {
		q.Join(q.QuoteIdentifier(spec.Pivot), JoinTypeLeft).On(pivotID, Eq, targetPK)
		matchKey(q, farKey, rec.PrimaryKeyValue())
		q.Where(pivotType, target.MorphType())
	}

	q.GroupBy(targetPK).
		Having(polymorphicCountAlias, GT, 0)

	return manyAssociation(name, q)
}
