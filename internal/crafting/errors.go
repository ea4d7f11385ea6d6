package crafting

import (
	"errors"

	"github.com/gravitas-games/craftd/internal/recipe"
	"github.com/gravitas-games/craftd/internal/resource"
)

var (
	// ErrInvalidResource re-exports the registry sentinel so callers can map
	// every crafting-facing failure from one package.
	ErrInvalidResource = resource.ErrInvalidResource
	// ErrInvalidRecipe is returned when no recipe is selected or the id is
	// unknown.
	ErrInvalidRecipe = recipe.ErrInvalidRecipe
	// ErrInsufficientResources is returned when the inventory cannot cover the
	// requested number of units.
	ErrInsufficientResources = errors.New("crafting: insufficient resources")
	// ErrAlreadyCrafting is returned for craft or select requests while a craft
	// is running.
	ErrAlreadyCrafting = errors.New("crafting: already crafting")
	// ErrNotCrafting is returned when canceling with no craft running.
	ErrNotCrafting = errors.New("crafting: not crafting")
	// ErrInvalidCount is returned for a unit count below one.
	ErrInvalidCount = errors.New("crafting: invalid count")
)
