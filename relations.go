package zorm

import (
	"context"
	"fmt"
)

// RelationType defines the type of a static (non-polymorphic) relation.
type RelationType string

const (
	// RelationHasOne represents a one-to-one relationship where the related
	// row carries the foreign key.
	RelationHasOne RelationType = "HasOne"

	// RelationHasMany represents a one-to-many relationship where the related
	// rows carry the foreign key.
	RelationHasMany RelationType = "HasMany"

	// RelationBelongsTo represents the inverse side: the current row carries
	// the foreign key of its parent.
	RelationBelongsTo RelationType = "BelongsTo"

	// RelationBelongsToMany represents a many-to-many relationship through a
	// join table.
	RelationBelongsToMany RelationType = "BelongsToMany"
)

// Relation is implemented by the static relation configs.
type Relation interface {
	RelationType() RelationType
	RelatedModel() string
}

// HasManyConfig defines the configuration for a HasMany relationship.
// Empty keys are inferred when the registry is built.
type HasManyConfig struct {
	// Model is the logical name of the related model.
	Model string

	// PropertyForeignKey is the column on the related table pointing at the owner.
	// Example: Post has many Comments, PropertyForeignKey = "post_id".
	PropertyForeignKey string

	// LocalKey is the owner column the foreign key references. Defaults to the owner's primary key.
	LocalKey string
}

// HasOneConfig is the one-to-one counterpart of HasManyConfig.
type HasOneConfig struct {
	Model              string
	PropertyForeignKey string
	LocalKey           string
}

// BelongsToConfig defines the configuration for a BelongsTo relationship.
// Example: a Comment belongs to a Post.
type BelongsToConfig struct {
	// Model is the logical name of the parent model.
	Model string

	// LocalForeignKey is the column on the current table referencing the parent.
	// Example: "post_id" on comments.
	LocalForeignKey string

	// ForeignColumnName is the parent column LocalForeignKey references.
	// Defaults to the parent's primary key.
	ForeignColumnName string
}

// BelongsToManyConfig contains configuration for a many-to-many relationship.
type BelongsToManyConfig struct {
	// Model is the logical name of the related model.
	Model string

	// IntermediateTable is the join table. It cannot be inferred.
	IntermediateTable string

	// IntermediateOwnerID is the join table column referencing the owner.
	// Example: in "post_categories" from Post's side, "post_id".
	IntermediateOwnerID string

	// IntermediatePropertyID is the join table column referencing the related model.
	// Example: in "post_categories" from Post's side, "category_id".
	IntermediatePropertyID string

	// PropertyLookupColumn is the related column joined on, usually its primary key.
	PropertyLookupColumn string
}

func (HasOneConfig) RelationType() RelationType        { return RelationHasOne }
func (HasManyConfig) RelationType() RelationType       { return RelationHasMany }
func (BelongsToConfig) RelationType() RelationType     { return RelationBelongsTo }
func (BelongsToManyConfig) RelationType() RelationType { return RelationBelongsToMany }

func (c HasOneConfig) RelatedModel() string        { return c.Model }
func (c HasManyConfig) RelatedModel() string       { return c.Model }
func (c BelongsToConfig) RelatedModel() string     { return c.Model }
func (c BelongsToManyConfig) RelatedModel() string { return c.Model }

// resolveStatic builds the association of a static relation.
func resolveStatic(ctx context.Context, rec *Record, name string, rel Relation) (*Association, error) {
	switch c := rel.(type) {
	case HasManyConfig:
		q := rec.conn.Query(c.Model)
		matchKey(q, q.Qualify(c.PropertyForeignKey), rec.Get(c.LocalKey))
		return manyAssociation(name, q)

	case HasOneConfig:
		key := rec.Get(c.LocalKey)
		if isNullValue(key) {
			return notFoundAssociation(name), nil
		}
		q := rec.conn.Query(c.Model)
		q.Where(q.Qualify(c.PropertyForeignKey), key)
		return fetchAssociation(ctx, name, q)

	case BelongsToConfig:
		key := rec.Get(c.LocalForeignKey)
		if isNullValue(key) {
			return notFoundAssociation(name), nil
		}
		q := rec.conn.Query(c.Model)
		q.Where(q.Qualify(c.ForeignColumnName), key)
		return fetchAssociation(ctx, name, q)

	case BelongsToManyConfig:
		q := rec.conn.Query(c.Model)
		if isNullValue(rec.PrimaryKeyValue()) {
			q.WhereIn(q.Qualify(c.PropertyLookupColumn))
			return manyAssociation(name, q)
		}
		q.WhereIn(q.Qualify(c.PropertyLookupColumn), Raw(fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
			q.QuoteIdentifier(c.IntermediatePropertyID), q.QuoteIdentifier(c.IntermediateTable),
			q.QuoteIdentifier(c.IntermediateOwnerID)), rec.PrimaryKeyValue()))
		return manyAssociation(name, q)
	}

	return nil, fmt.Errorf("%w: %T", ErrInvalidRelation, rel)
}
