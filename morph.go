package zorm

// MorphKind identifies which of the three polymorphic relation shapes a
// declaration belongs to.
type MorphKind string

const (
	// MorphKindTo is a polymorphic BelongsTo: the owning row stores the
	// `_id` and `_type` of exactly one target whose model is read from data.
	MorphKindTo MorphKind = "MorphTo"

	// MorphKindOneOrMany is the inverse of MorphKindTo: the `_id` and `_type`
	// columns live on the target table and point back at the owner.
	MorphKindOneOrMany MorphKind = "MorphOneOrMany"

	// MorphKindManyThrough is a many-to-many association through a pivot table
	// where exactly one pivot edge is polymorphic.
	MorphKindManyThrough MorphKind = "MorphManyThrough"
)

// polymorphicCountAlias names the aggregate column added by many-through queries.
const polymorphicCountAlias = "polymorphic_count"

// MorphSpec is implemented by the three polymorphic declarations.
type MorphSpec interface {
	Kind() MorphKind
	// MorphColumn is the base name of the `_id`/`_type` column pair.
	MorphColumn() string
}

// MorphTo declares that the owning table carries `{Column}_id` and
// `{Column}_type` referencing a single row of a variable model.
//
// Example: an Event with MorphTo{Column: "eventable"} reads
// events.eventable_id and events.eventable_type.
type MorphTo struct {
	Column string
}

// MorphOneOrMany declares that rows of Model reference the owner through
// `{Column}_id` and `{Column}_type` on Model's table.
//
// Example: a Website with MorphOneOrMany{Model: "Upvote", Column: "upvoteable"}
// returns every upvote whose upvoteable_type is "website".
type MorphOneOrMany struct {
	Model  string
	Column string

	// Single turns the relation into a HasOne: resolution fetches one row
	// instead of returning a lazy query.
	Single bool
}

// MorphManyThrough declares a many-to-many association from the owner to Model
// through Pivot. The pivot carries `{Column}_id`, `{Column}_type` and the
// ordinary key ForeignOrFarKey.
type MorphManyThrough struct {
	Model           string
	Column          string
	Pivot           string
	ForeignOrFarKey string

	// PolymorphicStart is true when the pivot's polymorphic columns identify
	// the owner and ForeignOrFarKey identifies the target. When false the
	// owner is matched on ForeignOrFarKey and the target on the polymorphic pair.
	PolymorphicStart bool
}

func (MorphTo) Kind() MorphKind          { return MorphKindTo }
func (MorphOneOrMany) Kind() MorphKind   { return MorphKindOneOrMany }
func (MorphManyThrough) Kind() MorphKind { return MorphKindManyThrough }

func (s MorphTo) MorphColumn() string          { return s.Column }
func (s MorphOneOrMany) MorphColumn() string   { return s.Column }
func (s MorphManyThrough) MorphColumn() string { return s.Column }

func idColumn(s MorphSpec) string   { return s.MorphColumn() + "_id" }
func typeColumn(s MorphSpec) string { return s.MorphColumn() + "_type" }

// morphSpec looks up a declaration of the given kind.
func (d *ModelDef) morphSpec(kind MorphKind, name string) (MorphSpec, bool) {
	switch kind {
	case MorphKindTo:
		s, ok := d.morphTo[name]
		return s, ok
	case MorphKindOneOrMany:
		s, ok := d.morphOneOrMany[name]
		return s, ok
	case MorphKindManyThrough:
		s, ok := d.morphManyThrough[name]
		return s, ok
	}
	return nil, false
}

// MorphKindOf reports which polymorphic kind name is declared under, checking
// in resolution order.
func (d *ModelDef) MorphKindOf(name string) (MorphKind, bool) {
	for _, kind := range []MorphKind{MorphKindOneOrMany, MorphKindTo, MorphKindManyThrough} {
		if _, ok := d.morphSpec(kind, name); ok {
			return kind, true
		}
	}
	return "", false
}

// FieldID returns the `_id` column of a polymorphic declaration.
func (d *ModelDef) FieldID(kind MorphKind, name string) (string, bool) {
	s, ok := d.morphSpec(kind, name)
	if !ok {
		return "", false
	}
	return idColumn(s), true
}

// FieldType returns the `_type` column of a polymorphic declaration.
func (d *ModelDef) FieldType(kind MorphKind, name string) (string, bool) {
	s, ok := d.morphSpec(kind, name)
	if !ok {
		return "", false
	}
	return typeColumn(s), true
}

// TargetModel returns the configured target of a morph-one-or-many or
// morph-many-through declaration. Morph-to targets are data, not
// configuration, so the lookup always fails for MorphKindTo.
func (d *ModelDef) TargetModel(kind MorphKind, name string) (string, bool) {
	switch kind {
	case MorphKindOneOrMany:
		s, ok := d.morphOneOrMany[name]
		return s.Model, ok
	case MorphKindManyThrough:
		s, ok := d.morphManyThrough[name]
		return s.Model, ok
	}
	return "", false
}

// PivotTable returns the pivot of a morph-many-through declaration.
func (d *ModelDef) PivotTable(name string) (string, bool) {
	s, ok := d.morphManyThrough[name]
	return s.Pivot, ok
}

// ForeignOrFarKey returns the ordinary pivot key of a morph-many-through declaration.
func (d *ModelDef) ForeignOrFarKey(name string) (string, bool) {
	s, ok := d.morphManyThrough[name]
	return s.ForeignOrFarKey, ok
}

// IsPolymorphicStart reports the direction of a morph-many-through declaration.
func (d *ModelDef) IsPolymorphicStart(name string) (bool, bool) {
	s, ok := d.morphManyThrough[name]
	return s.PolymorphicStart, ok
}
