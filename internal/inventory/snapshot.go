package inventory

import (
	"errors"
	"fmt"

	"github.com/gravitas-games/craftd/internal/resource"
)

// ErrInvalidSnapshot is returned when a snapshot cannot be restored without
// breaking an inventory invariant.
var ErrInvalidSnapshot = errors.New("inventory: invalid snapshot")

// Snapshot copies the inventory into its persisted form.
func (inv *Inventory) Snapshot() Snapshot {
	snap := Snapshot{
		Owner:    inv.owner,
		Category: inv.category,
		Bags:     make([]BagSnapshot, 0, len(inv.bags)),
	}
	for _, b := range inv.bags {
		snap.Bags = append(snap.Bags, BagSnapshot{
			ID:       b.id,
			Capacity: len(b.slots),
			Slots:    b.Slots(),
		})
	}
	return snap
}

// FromSnapshot rebuilds an inventory. Every held resource must be known to
// the registry and respect its stack and quantity limits.
func FromSnapshot(registry *resource.Registry, snap Snapshot) (*Inventory, error) {
	if registry == nil {
		return nil, errors.New("inventory: registry required to restore a snapshot")
	}
	inv := New(snap.Owner, snap.Category, registry)
	for bi, bs := range snap.Bags {
		if bs.Capacity <= 0 {
			return nil, fmt.Errorf("%w: bag %d has capacity %d", ErrInvalidSnapshot, bi, bs.Capacity)
		}
		if len(bs.Slots) > bs.Capacity {
			return nil, fmt.Errorf("%w: bag %d holds %d slots, capacity %d", ErrInvalidSnapshot, bi, len(bs.Slots), bs.Capacity)
		}
		id := bs.ID
		if id == "" {
			id = inv.bagKey(bi)
		}
		bag := NewBag(id, bs.Capacity)
		for si, q := range bs.Slots {
			if q.IsUnset() {
				continue
			}
			if q.Amount < 0 {
				return nil, fmt.Errorf("%w: bag %d slot %d has negative amount", ErrInvalidSnapshot, bi, si)
			}
			def, err := registry.Lookup(q.ID)
			if err != nil {
				return nil, fmt.Errorf("%w: bag %d slot %d: %v", ErrInvalidSnapshot, bi, si, err)
			}
			if def.StackLimit > 0 && q.Amount > def.StackLimit {
				return nil, fmt.Errorf("%w: bag %d slot %d exceeds stack limit %d", ErrInvalidSnapshot, bi, si, def.StackLimit)
			}
			bag.set(si, q)
		}
		inv.AddBag(bag)
	}
	for id, total := range inv.totals {
		def, _ := registry.Lookup(id)
		if def.QuantityLimit > 0 && total > def.QuantityLimit {
			return nil, fmt.Errorf("%w: resource %d total %d exceeds quantity limit %d", ErrInvalidSnapshot, id, total, def.QuantityLimit)
		}
	}
	return inv, nil
}
