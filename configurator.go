package zorm

import (
	"fmt"
)

// ModelConfigurator collects the declarations of one model. It is only
// used inside Define.
type ModelConfigurator struct {
	def *ModelDef
}

// Define builds a model definition. The table defaults to plural(snake(name))
// and the primary key to "id"; relation keys left empty are inferred when
// the definition is passed to NewRegistry.
//
//	website := zorm.Define("Website", func(c *zorm.ModelConfigurator) {
//		c.MorphOneOrMany("upvotes", zorm.MorphOneOrMany{Model: "Upvote", Column: "upvoteable"})
//	})
func Define(name string, configure func(c *ModelConfigurator)) *ModelDef {
	def := &ModelDef{
		Name:             name,
		morphTo:          map[string]MorphTo{},
		morphOneOrMany:   map[string]MorphOneOrMany{},
		morphManyThrough: map[string]MorphManyThrough{},
		relations:        map[string]Relation{},
	}

	if name == "" {
		def.errs = append(def.errs, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig))
	}

	if configure != nil {
		configure(&ModelConfigurator{def: def})
	}

	if def.Table == "" {
		def.Table = TableNameFor(name)
	}
	if def.PrimaryKey == "" {
		def.PrimaryKey = "id"
	}

	return def
}

func (c *ModelConfigurator) errorf(format string, args ...any) {
	c.def.errs = append(c.def.errs, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, c.def.Name, fmt.Sprintf(format, args...)))
}

// Table overrides the inferred table name.
func (c *ModelConfigurator) Table(name string) *ModelConfigurator {
	c.def.Table = name
	return c
}

// PrimaryKey overrides the default "id" primary key column.
func (c *ModelConfigurator) PrimaryKey(column string) *ModelConfigurator {
	c.def.PrimaryKey = column
	return c
}

// Columns declares the table's columns for schema validation.
func (c *ModelConfigurator) Columns(columns ...string) *ModelConfigurator {
	c.def.Columns = append(c.def.Columns, columns...)
	return c
}

// MorphTo declares a polymorphic reference stored in `{column}_id` and
// `{column}_type` on this model's table.
func (c *ModelConfigurator) MorphTo(name, column string) *ModelConfigurator {
	if column == "" {
		c.errorf("morph-to %q requires a column", name)
		return c
	}
	if _, dup := c.def.morphTo[name]; dup {
		c.errorf("morph-to %q declared twice", name)
		return c
	}

	c.def.morphTo[name] = MorphTo{Column: column}
	return c
}

// MorphOneOrMany declares rows of spec.Model pointing back at this model.
func (c *ModelConfigurator) MorphOneOrMany(name string, spec MorphOneOrMany) *ModelConfigurator {
	if spec.Model == "" || spec.Column == "" {
		c.errorf("morph-one-or-many %q requires model and column", name)
		return c
	}
	if _, dup := c.def.morphOneOrMany[name]; dup {
		c.errorf("morph-one-or-many %q declared twice", name)
		return c
	}

	c.def.morphOneOrMany[name] = spec
	return c
}

// MorphManyThrough declares a many-to-many association through a pivot with
// one polymorphic edge.
func (c *ModelConfigurator) MorphManyThrough(name string, spec MorphManyThrough) *ModelConfigurator {
	if spec.Model == "" || spec.Column == "" || spec.Pivot == "" || spec.ForeignOrFarKey == "" {
		c.errorf("morph-many-through %q requires model, column, pivot and foreign_or_far_key", name)
		return c
	}
	if _, dup := c.def.morphManyThrough[name]; dup {
		c.errorf("morph-many-through %q declared twice", name)
		return c
	}

	c.def.morphManyThrough[name] = spec
	return c
}

func (c *ModelConfigurator) addRelation(name string, rel Relation, resolve relationResolver) {
	if rel.RelatedModel() == "" {
		c.errorf("%s %q requires a model", rel.RelationType(), name)
		return
	}
	if _, dup := c.def.relations[name]; dup {
		c.errorf("relation %q declared twice", name)
		return
	}

	c.def.relations[name] = rel
	c.def.resolveRelations = append(c.def.resolveRelations, func(owner *ModelDef, reg *Registry) error {
		rel, err := resolve(owner, reg)
		if err != nil {
			return err
		}
		owner.relations[name] = rel
		return nil
	})
}

// relationResolver fills the keys a static relation left empty. It works on
// its own copy of the declared config.
type relationResolver func(owner *ModelDef, reg *Registry) (Relation, error)

// HasMany declares a one-to-many relation.
func (c *ModelConfigurator) HasMany(name string, config HasManyConfig) *ModelConfigurator {
	c.addRelation(name, config, func(owner *ModelDef, _ *Registry) (Relation, error) {
		rel := config
		if rel.PropertyForeignKey == "" {
			rel.PropertyForeignKey = foreignKeyFor(owner.Table)
		}
		if rel.LocalKey == "" {
			rel.LocalKey = owner.PrimaryKey
		}
		return rel, nil
	})

	return c
}

// HasOne declares a one-to-one relation where the related row holds the key.
func (c *ModelConfigurator) HasOne(name string, config HasOneConfig) *ModelConfigurator {
	c.addRelation(name, config, func(owner *ModelDef, _ *Registry) (Relation, error) {
		rel := config
		if rel.PropertyForeignKey == "" {
			rel.PropertyForeignKey = foreignKeyFor(owner.Table)
		}
		if rel.LocalKey == "" {
			rel.LocalKey = owner.PrimaryKey
		}
		return rel, nil
	})

	return c
}

// BelongsTo declares that this model holds the key of a parent.
func (c *ModelConfigurator) BelongsTo(name string, config BelongsToConfig) *ModelConfigurator {
	c.addRelation(name, config, func(_ *ModelDef, reg *Registry) (Relation, error) {
		parent, err := reg.Model(config.Model)
		if err != nil {
			return nil, err
		}

		rel := config
		if rel.LocalForeignKey == "" {
			rel.LocalForeignKey = foreignKeyFor(parent.Table)
		}
		if rel.ForeignColumnName == "" {
			rel.ForeignColumnName = parent.PrimaryKey
		}
		return rel, nil
	})

	return c
}

// BelongsToMany declares a many-to-many relation through an explicit join table.
func (c *ModelConfigurator) BelongsToMany(name string, config BelongsToManyConfig) *ModelConfigurator {
	if config.IntermediateTable == "" {
		c.errorf("intermediate table must be explicitly configured for many-to-many relationship %q", name)
		return c
	}

	c.addRelation(name, config, func(owner *ModelDef, reg *Registry) (Relation, error) {
		related, err := reg.Model(config.Model)
		if err != nil {
			return nil, err
		}

		rel := config
		if rel.IntermediateOwnerID == "" {
			rel.IntermediateOwnerID = foreignKeyFor(owner.Table)
		}
		if rel.IntermediatePropertyID == "" {
			rel.IntermediatePropertyID = foreignKeyFor(related.Table)
		}
		if rel.PropertyLookupColumn == "" {
			rel.PropertyLookupColumn = related.PrimaryKey
		}
		return rel, nil
	})

	return c
}
