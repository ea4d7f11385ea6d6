package resource

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrInvalidResource is returned for a zero or unknown resource ID.
	ErrInvalidResource = errors.New("resource: invalid resource")
	// ErrDuplicateResource is returned when registering an ID twice.
	ErrDuplicateResource = errors.New("resource: duplicate resource id")
	// ErrRegistryFrozen is returned when registering after Freeze.
	ErrRegistryFrozen = errors.New("resource: registry is frozen")
)

// Registry stores resource definitions keyed by ID.
//
// Registration happens during a single load phase. After Freeze the registry
// never changes, so lookups from any number of owner goroutines need no lock.
type Registry struct {
	mu         sync.Mutex // serializes registration only
	frozen     bool
	defs       map[ID]Definition
	categories map[Category]CategoryInfo
}

// NewRegistry constructs a registry seeded with the given definitions. The
// registry is left open for further registration.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{
		defs:       make(map[ID]Definition, len(defs)),
		categories: make(map[Category]CategoryInfo),
	}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a definition. The ID must be non-zero and not yet present.
func (r *Registry) Register(def Definition) error {
	if def.ID == 0 {
		return fmt.Errorf("%w: id 0 is reserved", ErrInvalidResource)
	}
	if def.StackLimit < 0 || def.QuantityLimit < 0 {
		return fmt.Errorf("%w: negative limit for id %d", ErrInvalidResource, def.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrRegistryFrozen
	}
	if _, exists := r.defs[def.ID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateResource, def.ID)
	}
	r.defs[def.ID] = def
	return nil
}

// RegisterCategory records metadata for a single category flag.
func (r *Registry) RegisterCategory(info CategoryInfo) error {
	if info.Flag == 0 || info.Flag&(info.Flag-1) != 0 {
		return fmt.Errorf("resource: category %q must be a single flag", info.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrRegistryFrozen
	}
	r.categories[info.Flag] = info
	return nil
}

// Freeze ends the load phase.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frozen
}

// Lookup returns the definition for id.
func (r *Registry) Lookup(id ID) (Definition, error) {
	if id == 0 {
		return Definition{}, fmt.Errorf("%w: id 0", ErrInvalidResource)
	}
	def, ok := r.defs[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %d not found", ErrInvalidResource, id)
	}
	return def, nil
}

// Category returns the metadata registered for flag, if any.
func (r *Registry) Category(flag Category) (CategoryInfo, bool) {
	info, ok := r.categories[flag]
	return info, ok
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	return len(r.defs)
}

// Export copies all definitions into a slice sorted by ID, suitable for
// sending to clients.
func (r *Registry) Export() []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByCategory returns the definitions carrying every flag in mask, sorted by ID.
func (r *Registry) ByCategory(mask Category) []Definition {
	var out []Definition
	for _, d := range r.defs {
		if d.Category.Has(mask) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
