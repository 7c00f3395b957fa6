package zorm

import (
	"maps"
	"slices"
)

// ModelDef is the static description of a model: where it is stored and which
// relations it declares. It is built once with Define. NewRegistry registers
// a completed copy, so one definition can back several registries.
type ModelDef struct {
	// Name is the logical model name, e.g. "Upvote".
	Name string
	// Table is the backing table, inferred as plural(snake(Name)) when empty.
	Table string
	// PrimaryKey defaults to "id".
	PrimaryKey string
	// Columns optionally lists the table's columns. It is only used by
	// connection schema validation and PrintSchematic.
	Columns []string

	morphTo          map[string]MorphTo
	morphOneOrMany   map[string]MorphOneOrMany
	morphManyThrough map[string]MorphManyThrough
	relations        map[string]Relation

	// run by NewRegistry on its own copy once every model is known
	resolveRelations []func(owner *ModelDef, reg *Registry) error
	errs             []error
}

// clone copies the definition so a registry can complete it without touching
// the caller's value.
func (d *ModelDef) clone() *ModelDef {
	c := *d
	c.Columns = slices.Clone(d.Columns)
	c.morphTo = maps.Clone(d.morphTo)
	c.morphOneOrMany = maps.Clone(d.morphOneOrMany)
	c.morphManyThrough = maps.Clone(d.morphManyThrough)
	c.relations = maps.Clone(d.relations)
	return &c
}

// MorphType is the discriminator value other rows store to point at this model.
func (d *ModelDef) MorphType() string {
	return MorphTypeName(d.Table)
}

// alias is the name the table is selected under, matching MorphType. It is
// quoted when rendered since singular names such as "order" are keywords.
func (d *ModelDef) alias() string {
	return d.MorphType()
}

// HasColumn reports whether column is declared in Columns.
func (d *ModelDef) HasColumn(column string) bool {
	return slices.Contains(d.Columns, column)
}

// RelationNames returns every relation the model declares, sorted.
func (d *ModelDef) RelationNames() []string {
	names := make([]string, 0, len(d.morphTo)+len(d.morphOneOrMany)+len(d.morphManyThrough)+len(d.relations))
	names = slices.AppendSeq(names, maps.Keys(d.morphTo))
	names = slices.AppendSeq(names, maps.Keys(d.morphOneOrMany))
	names = slices.AppendSeq(names, maps.Keys(d.morphManyThrough))
	names = slices.AppendSeq(names, maps.Keys(d.relations))
	slices.Sort(names)
	return slices.Compact(names)
}

// Relation returns the static (non-polymorphic) relation declared under name.
func (d *ModelDef) Relation(name string) (Relation, bool) {
	rel, ok := d.relations[name]
	return rel, ok
}

// declaredKinds lists every kind name is declared under. More than one entry
// means the name is ambiguous.
func (d *ModelDef) declaredKinds(name string) []string {
	var kinds []string
	for _, kind := range []MorphKind{MorphKindOneOrMany, MorphKindTo, MorphKindManyThrough} {
		if _, ok := d.morphSpec(kind, name); ok {
			kinds = append(kinds, string(kind))
		}
	}
	if rel, ok := d.relations[name]; ok {
		kinds = append(kinds, string(rel.RelationType()))
	}
	return kinds
}

// Record is one row of a model. Records returned by queries are loaded;
// records built with Connection.New are not.
type Record struct {
	model   *ModelDef
	conn    *Connection
	attrs   map[string]any
	related map[string]*Association
	loaded  bool
}

func newRecord(conn *Connection, model *ModelDef, attrs map[string]any, loaded bool) *Record {
	if attrs == nil {
		attrs = make(map[string]any)
	}
	return &Record{
		model:  model,
		conn:   conn,
		attrs:  attrs,
		loaded: loaded,
	}
}

// Model returns the record's model definition.
func (r *Record) Model() *ModelDef { return r.model }

// Connection returns the connection the record resolves relations on.
func (r *Record) Connection() *Connection { return r.conn }

// Loaded reports whether the record was read from the database.
func (r *Record) Loaded() bool { return r.loaded }

// TableName returns the model's table.
func (r *Record) TableName() string { return r.model.Table }

// MorphType returns the discriminator value identifying this record's model.
func (r *Record) MorphType() string { return r.model.MorphType() }

// PrimaryKeyValue returns the value of the model's primary key column.
func (r *Record) PrimaryKeyValue() any {
	return r.attrs[r.model.PrimaryKey]
}

// Get returns a column value, or nil when the column is absent.
func (r *Record) Get(column string) any {
	return r.attrs[column]
}

// Attribute returns a column value and whether the column is present.
func (r *Record) Attribute(column string) (any, bool) {
	v, ok := r.attrs[column]
	return v, ok
}

// Set assigns a column value.
func (r *Record) Set(column string, value any) *Record {
	r.attrs[column] = value
	return r
}

// Attributes returns a copy of the record's columns.
func (r *Record) Attributes() map[string]any {
	return maps.Clone(r.attrs)
}

// SetRelated stores an already materialized relation. Resolution returns it
// as-is instead of building a query.
func (r *Record) SetRelated(name string, assoc *Association) *Record {
	if r.related == nil {
		r.related = make(map[string]*Association)
	}
	r.related[name] = assoc
	return r
}

// Related returns a materialized relation stored with SetRelated.
func (r *Record) Related(name string) (*Association, bool) {
	assoc, ok := r.related[name]
	return assoc, ok
}

// Same reports whether both records are the same row: same model and equal
// primary keys, regardless of the Go type the driver returned for the key.
func (r *Record) Same(other *Record) bool {
	if r == nil || other == nil || r.model != other.model {
		return false
	}
	return compareIDs(r.PrimaryKeyValue(), other.PrimaryKeyValue())
}
