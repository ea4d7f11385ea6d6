package crafting

import (
	"time"

	"github.com/gravitas-games/craftd/internal/inventory"
	"github.com/gravitas-games/craftd/internal/recipe"
	"github.com/gravitas-games/craftd/internal/resource"
)

// State represents the crafting session state.
type State int

const (
	// Idle means no craft has run since the last accepted request.
	Idle State = iota
	// Crafting means units are being produced on every tick.
	Crafting
	// Completed means every requested unit was produced.
	Completed
	// Canceled means the owner stopped the craft.
	Canceled
	// Failed means a unit could not complete or the request was rejected.
	Failed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Crafting:
		return "Crafting"
	case Completed:
		return "Completed"
	case Canceled:
		return "Canceled"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether s ends a craft.
func (s State) Terminal() bool {
	return s == Completed || s == Canceled || s == Failed
}

// Inventory is the part of an inventory the engine needs. *inventory.Inventory
// satisfies it.
type Inventory interface {
	Quantity(id resource.ID) int
	ModifyQuantity(id resource.ID, delta int) int
	Fits(removals []resource.Quantity, addition resource.Quantity) bool
	Subscribe(obs inventory.Observer) (unsubscribe func())
}

// Observer receives crafting notifications. Calls happen synchronously on
// the goroutine driving the engine.
type Observer interface {
	// CraftProgress fires on every tick while crafting. percent is the
	// current unit's elapsed/duration ratio clamped to [0, 1].
	CraftProgress(id recipe.ID, percent float64, delta time.Duration)
	// CraftResult fires once per terminal outcome and for rejected requests.
	CraftResult(id recipe.ID, result State, isAuthority bool)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnCraftProgress func(id recipe.ID, percent float64, delta time.Duration)
	OnCraftResult   func(id recipe.ID, result State, isAuthority bool)
}

// CraftProgress implements Observer.
func (f ObserverFuncs) CraftProgress(id recipe.ID, percent float64, delta time.Duration) {
	if f.OnCraftProgress != nil {
		f.OnCraftProgress(id, percent, delta)
	}
}

// CraftResult implements Observer.
func (f ObserverFuncs) CraftResult(id recipe.ID, result State, isAuthority bool) {
	if f.OnCraftResult != nil {
		f.OnCraftResult(id, result, isAuthority)
	}
}

// Status is a copy of the session state for queries.
type Status struct {
	Owner     inventory.OwnerID `json:"owner"`
	State     State             `json:"state"`
	Recipe    recipe.ID         `json:"recipe"`
	Requested int               `json:"requested"`
	Remaining int               `json:"remaining"`
	Produced  int               `json:"produced"`
	Elapsed   time.Duration     `json:"elapsed"`
	Duration  time.Duration     `json:"duration"`
	Craftable int               `json:"craftable"`
}

// Progress returns the current unit's progress ratio.
func (s Status) Progress() float64 {
	if s.State != Crafting || s.Duration <= 0 {
		return 0
	}
	return min(float64(s.Elapsed)/float64(s.Duration), 1)
}
