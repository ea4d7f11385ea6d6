// Package inventory implements the per-owner resource allocation engine:
// fixed-capacity bags of slots, stacking and placement policy, quantity
// limits and change notification. An Inventory is owned by exactly one
// execution context and performs no locking of its own.
package inventory

import "github.com/gravitas-games/craftd/internal/resource"

// OwnerID represents an application-defined owner identifier.
// Can be user id, character id, etc.
type OwnerID string

// Category tags what an inventory is used for, e.g. the shared general
// inventory versus a per-character one.
type Category string

const (
	CategoryGeneral   Category = "general"
	CategoryCharacter Category = "character"
)

// Observer receives change notifications from an inventory. Values are
// copies; observers never see live slot storage.
type Observer interface {
	// SlotChanged fires once per slot whose content changed.
	SlotChanged(bag, slot int, content resource.Quantity)
	// BulkChanged fires once after a mutation that touched more than one slot.
	BulkChanged()
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnSlotChanged func(bag, slot int, content resource.Quantity)
	OnBulkChanged func()
}

// SlotChanged implements Observer.
func (f ObserverFuncs) SlotChanged(bag, slot int, content resource.Quantity) {
	if f.OnSlotChanged != nil {
		f.OnSlotChanged(bag, slot, content)
	}
}

// BulkChanged implements Observer.
func (f ObserverFuncs) BulkChanged() {
	if f.OnBulkChanged != nil {
		f.OnBulkChanged()
	}
}

// BagView is a read-only copy of one bag for presentation layers.
type BagView struct {
	ID        string              `json:"id"`
	Capacity  int                 `json:"capacity"`
	Used      int                 `json:"used"`
	Available int                 `json:"available"`
	Slots     []resource.Quantity `json:"slots"`
}

// BagSnapshot is the persisted form of one bag.
type BagSnapshot struct {
	ID       string              `json:"id"`
	Capacity int                 `json:"capacity"`
	Slots    []resource.Quantity `json:"slots"`
}

// Snapshot is the persisted form of an inventory: an ordered list of bags'
// slot contents, sufficient to rebuild it fully.
type Snapshot struct {
	Owner    OwnerID       `json:"owner"`
	Category Category      `json:"category"`
	Bags     []BagSnapshot `json:"bags"`
}

type slotRef struct {
	bag  int
	slot int
}
