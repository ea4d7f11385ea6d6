// Package resource holds the static resource definitions shared by every
// owner's inventory. Definitions are plain records looked up by ID; the
// registry is populated during a load phase and read-only afterwards.
package resource

import "strings"

// ID identifies a resource definition. Zero is the "unset" sentinel and is
// never a valid registered ID.
type ID uint32

// Category is a set of bit flags describing what a resource is used for.
type Category uint32

const (
	CategoryScrap Category = 1 << iota
	CategoryCrafting
	CategoryConsumable
	CategoryWeapon
	CategoryEquipped
)

var categoryNames = []struct {
	flag Category
	name string
}{
	{CategoryScrap, "scrap"},
	{CategoryCrafting, "crafting"},
	{CategoryConsumable, "consumable"},
	{CategoryWeapon, "weapon"},
	{CategoryEquipped, "equipped"},
}

// Has reports whether every flag in mask is set on c.
func (c Category) Has(mask Category) bool {
	return mask != 0 && c&mask == mask
}

// String returns the flag names joined by "|".
func (c Category) String() string {
	if c == 0 {
		return "none"
	}
	parts := make([]string, 0, len(categoryNames))
	for _, cn := range categoryNames {
		if c&cn.flag != 0 {
			parts = append(parts, cn.name)
		}
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, "|")
}

// ParseCategory resolves a single flag name as used in definition files.
func ParseCategory(name string) (Category, bool) {
	for _, cn := range categoryNames {
		if cn.name == name {
			return cn.flag, true
		}
	}
	return 0, false
}

// Definition describes one resource type.
type Definition struct {
	ID       ID       `json:"id"`
	Name     string   `json:"name,omitempty"`
	Category Category `json:"category"`
	// StackLimit is the maximum quantity held by a single slot. Zero means
	// unlimited.
	StackLimit int `json:"stackLimit,omitempty"`
	// QuantityLimit is the maximum total quantity an owner may hold across
	// all containers of one inventory. Zero means unlimited.
	QuantityLimit int `json:"quantityLimit,omitempty"`
}

// CategoryInfo carries presentation metadata for a category flag.
type CategoryInfo struct {
	Flag        Category `json:"flag"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
}

// Quantity pairs a resource with an amount. It is used both as slot
// content and as a requirement/result descriptor in recipes.
type Quantity struct {
	ID     ID  `json:"id"`
	Amount int `json:"amount"`
}

// IsUnset reports whether q holds nothing.
func (q Quantity) IsUnset() bool {
	return q.ID == 0 || q.Amount == 0
}
