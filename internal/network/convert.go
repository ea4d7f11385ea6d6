package network

import (
	"strings"

	"github.com/gravitas-games/craftd/internal/crafting"
	"github.com/gravitas-games/craftd/internal/inventory"
	"github.com/gravitas-games/craftd/internal/recipe"
	"github.com/gravitas-games/craftd/internal/resource"
)

// QuantityFrom converts a resource quantity. Unset quantities become the
// zero Quantity.
func QuantityFrom(q resource.Quantity) Quantity {
	if q.IsUnset() {
		return Quantity{}
	}
	return Quantity{ResourceID: uint32(q.ID), Amount: q.Amount}
}

// InventoryFrom converts bag views into the inventory payload.
func InventoryFrom(owner inventory.OwnerID, category inventory.Category, bags []inventory.BagView) InventoryPayload {
	out := InventoryPayload{
		Owner:    string(owner),
		Category: string(category),
		Bags:     make([]BagPayload, 0, len(bags)),
	}
	for _, b := range bags {
		bp := BagPayload{
			ID:        b.ID,
			Capacity:  b.Capacity,
			Used:      b.Used,
			Available: b.Available,
			Slots:     make([]Quantity, len(b.Slots)),
		}
		for i, s := range b.Slots {
			bp.Slots[i] = QuantityFrom(s)
		}
		out.Bags = append(out.Bags, bp)
	}
	return out
}

// ResourcesFrom converts registry definitions.
func ResourcesFrom(defs []resource.Definition) []ResourceInfo {
	out := make([]ResourceInfo, 0, len(defs))
	for _, d := range defs {
		var cats []string
		if d.Category != 0 {
			cats = strings.Split(d.Category.String(), "|")
		}
		out = append(out, ResourceInfo{
			ID:            uint32(d.ID),
			Name:          d.Name,
			Categories:    cats,
			StackLimit:    d.StackLimit,
			QuantityLimit: d.QuantityLimit,
		})
	}
	return out
}

// RecipesFrom converts recipe definitions.
func RecipesFrom(defs []recipe.Definition) []RecipeInfo {
	out := make([]RecipeInfo, 0, len(defs))
	for _, d := range defs {
		info := RecipeInfo{
			ID:           uint32(d.ID),
			Name:         d.Name,
			DurationMs:   d.Duration.Milliseconds(),
			Result:       QuantityFrom(d.Result),
			Requirements: make([]Quantity, 0, len(d.Requirements)),
		}
		for _, r := range d.Requirements {
			info.Requirements = append(info.Requirements, QuantityFrom(r))
		}
		out = append(out, info)
	}
	return out
}

// CraftingFrom converts an engine status.
func CraftingFrom(st crafting.Status) CraftingStatus {
	return CraftingStatus{
		State:     st.State.String(),
		RecipeID:  uint32(st.Recipe),
		Requested: st.Requested,
		Remaining: st.Remaining,
		Progress:  st.Progress(),
		Craftable: st.Craftable,
	}
}
