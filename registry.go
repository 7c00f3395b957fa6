package zorm

import (
	"errors"
	"fmt"
	"strings"
)

// Registry is the model factory of a connection: it maps logical model names
// and stored discriminator values to model definitions. A Registry is
// immutable once NewRegistry returns and safe for concurrent use.
type Registry struct {
	models map[string]*ModelDef // modelKey(Name) -> model
	byType map[string]*ModelDef // MorphType -> model
	order  []*ModelDef
}

// NewRegistry validates a set of model definitions and registers completed
// copies of them. The definitions passed in are never modified.
//
// Besides configuration errors collected by Define it rejects duplicate model
// names, two models sharing a discriminator value, and relation names declared
// under more than one kind on the same model (ErrAmbiguousRelation).
func NewRegistry(defs ...*ModelDef) (*Registry, error) {
	reg := &Registry{
		models: make(map[string]*ModelDef, len(defs)),
		byType: make(map[string]*ModelDef, len(defs)),
	}

	var errs []error
	for _, def := range defs {
		if def == nil {
			continue
		}
		errs = append(errs, def.errs...)
		def = def.clone()

		key := modelKey(def.Name)
		if _, dup := reg.models[key]; dup {
			errs = append(errs, fmt.Errorf("%w: model %s registered twice", ErrInvalidConfig, def.Name))
			continue
		}
		if other, dup := reg.byType[def.MorphType()]; dup {
			errs = append(errs, fmt.Errorf("%w: models %s and %s share the discriminator %q",
				ErrInvalidConfig, other.Name, def.Name, def.MorphType()))
			continue
		}

		reg.models[key] = def
		reg.byType[def.MorphType()] = def
		reg.order = append(reg.order, def)
	}

	for _, def := range reg.order {
		for _, name := range def.RelationNames() {
			if kinds := def.declaredKinds(name); len(kinds) > 1 {
				errs = append(errs, fmt.Errorf("%w: %s.%s is declared as %s",
					ErrAmbiguousRelation, def.Name, name, strings.Join(kinds, " and ")))
			}
		}
	}

	for _, def := range reg.order {
		for _, resolve := range def.resolveRelations {
			if err := resolve(def, reg); err != nil {
				errs = append(errs, fmt.Errorf("model %s: %w", def.Name, err))
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return reg, nil
}

// Model resolves a model by logical name ("BlogPost", "blog_post") or by the
// discriminator value stored in `_type` columns ("blog_post").
func (r *Registry) Model(name string) (*ModelDef, error) {
	if r != nil {
		if def, ok := r.models[modelKey(name)]; ok {
			return def, nil
		}
		if def, ok := r.byType[name]; ok {
			return def, nil
		}
		if def, ok := r.byType[MorphTypeName(modelKey(name))]; ok {
			return def, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
}

// Models returns the registered definitions in registration order.
func (r *Registry) Models() []*ModelDef {
	if r == nil {
		return nil
	}
	return append([]*ModelDef(nil), r.order...)
}
