package migration

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedMigration is returned when migration_config names a
	// migration not present in the compiled-in registry.
	ErrUnsupportedMigration = errors.New("migration: unsupported migration type")
	// ErrDuplicateDefinition guards against two registry entries sharing a
	// name, which would make config selection ambiguous.
	ErrDuplicateDefinition = errors.New("migration: duplicate migration name")
)

// Registry is the static, compiled-in list of migrations a binary knows how
// to run. It is built once at startup and never mutated afterward; config
// only selects and configures a subset of it.
type Registry struct {
	byName map[string]Definition
	order  []string
}

// NewRegistry builds a Registry from definitions, rejecting duplicate names.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{byName: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if _, exists := r.byName[d.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDefinition, d.Name)
		}
		r.byName[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// Lookup returns the named definition, if registered.
func (r *Registry) Lookup(name string) (Definition, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Names returns every registered migration name in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// EnableAllRegular builds an Engine where every Regular-kind migration is
// Enabled with default metadata (activation height 1) and every Hotfix-kind
// migration is Disabled. Used for standalone/test deployments that want the
// full feature set without a config document.
func (r *Registry) EnableAllRegular() *Engine {
	e := newEngine()
	for _, name := range r.order {
		def := r.byName[name]
		status := StatusEnabled
		if def.Kind == KindHotfix {
			status = StatusDisabled
		}
		e.add(&Migration{def: def, Metadata: Metadata{BlockHeight: 1}, Status: status})
	}
	return e
}
