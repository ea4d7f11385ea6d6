package recipe

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gravitas-games/craftd/internal/resource"
)

// ID uniquely identifies a recipe. Zero means "no recipe".
type ID uint32

// Definition defines one craft unit: what it consumes, what it yields and
// how long it takes.
type Definition struct {
	ID           ID                  `json:"id"`
	Name         string              `json:"name,omitempty"`
	Duration     time.Duration       `json:"duration"`
	Result       resource.Quantity   `json:"result"`
	Requirements []resource.Quantity `json:"requirements"`
}

var (
	// ErrInvalidRecipe is returned for a zero, unknown or malformed recipe.
	ErrInvalidRecipe = errors.New("recipe: invalid recipe")
	// ErrCatalogFrozen is returned when registering after Freeze.
	ErrCatalogFrozen = errors.New("recipe: catalog is frozen")
)

// Catalog stores recipes with lookup by id and by produced resource.
// Like resource.Registry it is written during load and read-only after
// Freeze.
type Catalog struct {
	mu       sync.Mutex // serializes registration only
	frozen   bool
	recipes  map[ID]Definition
	byResult map[resource.ID][]ID
	registry *resource.Registry
}

// NewCatalog creates an empty catalog. When registry is non-nil every
// requirement and result must reference a registered resource.
func NewCatalog(registry *resource.Registry) *Catalog {
	return &Catalog{
		recipes:  make(map[ID]Definition),
		byResult: make(map[resource.ID][]ID),
		registry: registry,
	}
}

// Register validates and adds a recipe.
func (c *Catalog) Register(def Definition) error {
	if def.ID == 0 {
		return fmt.Errorf("%w: id 0 is reserved", ErrInvalidRecipe)
	}
	if def.Duration <= 0 {
		return fmt.Errorf("%w: recipe %d: duration must be positive", ErrInvalidRecipe, def.ID)
	}
	if def.Result.IsUnset() || def.Result.Amount < 0 {
		return fmt.Errorf("%w: recipe %d: result must be set", ErrInvalidRecipe, def.ID)
	}
	for i, req := range def.Requirements {
		if req.ID == 0 {
			return fmt.Errorf("%w: recipe %d: requirement %d: resource id cannot be zero", ErrInvalidRecipe, def.ID, i)
		}
		if req.Amount <= 0 {
			return fmt.Errorf("%w: recipe %d: requirement %d: amount must be positive", ErrInvalidRecipe, def.ID, i)
		}
	}
	if c.registry != nil {
		if _, err := c.registry.Lookup(def.Result.ID); err != nil {
			return fmt.Errorf("%w: recipe %d result: %v", ErrInvalidRecipe, def.ID, err)
		}
		for i, req := range def.Requirements {
			if _, err := c.registry.Lookup(req.ID); err != nil {
				return fmt.Errorf("%w: recipe %d requirement %d: %v", ErrInvalidRecipe, def.ID, i, err)
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return ErrCatalogFrozen
	}
	if _, exists := c.recipes[def.ID]; exists {
		return fmt.Errorf("%w: duplicate recipe id %d", ErrInvalidRecipe, def.ID)
	}

	// Keep our own copy of the requirement list.
	reqs := make([]resource.Quantity, len(def.Requirements))
	copy(reqs, def.Requirements)
	def.Requirements = reqs

	c.recipes[def.ID] = def
	c.byResult[def.Result.ID] = append(c.byResult[def.Result.ID], def.ID)
	return nil
}

// Freeze ends the load phase.
func (c *Catalog) Freeze() {
	c.mu.Lock()
	c.frozen = true
	c.mu.Unlock()
}

// Lookup retrieves a recipe by id.
func (c *Catalog) Lookup(id ID) (Definition, error) {
	def, ok := c.recipes[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %d not found", ErrInvalidRecipe, id)
	}
	return def, nil
}

// ByResult returns the ids of recipes producing res, in registration order.
func (c *Catalog) ByResult(res resource.ID) []ID {
	ids := c.byResult[res]
	if ids == nil {
		return nil
	}
	result := make([]ID, len(ids))
	copy(result, ids)
	return result
}

// All returns every recipe sorted by id.
func (c *Catalog) All() []Definition {
	out := make([]Definition, 0, len(c.recipes))
	for _, def := range c.recipes {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of recipes.
func (c *Catalog) Count() int {
	return len(c.recipes)
}
