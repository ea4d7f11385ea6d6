package inventory

import (
	"errors"
	"fmt"

	"github.com/gravitas-games/craftd/internal/resource"
)

// ErrSlotOutOfRange is returned when addressing a bag or slot that does not
// exist.
var ErrSlotOutOfRange = errors.New("inventory: slot out of range")

// Option configures inventory construction.
type Option func(*Inventory)

// WithBags appends one empty bag per capacity, in order.
func WithBags(capacities ...int) Option {
	return func(inv *Inventory) {
		for _, c := range capacities {
			inv.AddBag(NewBag(inv.bagKey(len(inv.bags)), c))
		}
	}
}

type subscription struct {
	id  int
	obs Observer
}

// Inventory aggregates the bags of one owner and exposes the quantity
// mutation contract.
type Inventory struct {
	owner    OwnerID
	category Category
	registry *resource.Registry

	bags []*Bag

	// totals caches the held quantity per resource across all bags.
	totals map[resource.ID]int

	subs    []subscription
	nextSub int
}

// New creates an inventory for owner. The registry resolves stack and
// quantity limits and must be fully loaded before any mutation.
func New(owner OwnerID, category Category, registry *resource.Registry, opts ...Option) *Inventory {
	inv := &Inventory{
		owner:    owner,
		category: category,
		registry: registry,
		totals:   make(map[resource.ID]int),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(inv)
		}
	}
	return inv
}

// Owner returns the owning identifier.
func (inv *Inventory) Owner() OwnerID { return inv.owner }

// Category returns the inventory's category tag.
func (inv *Inventory) Category() Category { return inv.category }

// AddBag appends a bag. Its index is len(Bags()) before the call and stays
// stable for the lifetime of the inventory.
func (inv *Inventory) AddBag(bag *Bag) int {
	inv.bags = append(inv.bags, bag)
	for _, s := range bag.slots {
		if !s.IsUnset() {
			inv.totals[s.ID] += s.Amount
		}
	}
	return len(inv.bags) - 1
}

// BagCount returns the number of bags.
func (inv *Inventory) BagCount() int { return len(inv.bags) }

// Bags returns read-only copies of every bag in index order.
func (inv *Inventory) Bags() []BagView {
	out := make([]BagView, 0, len(inv.bags))
	for _, b := range inv.bags {
		out = append(out, b.view())
	}
	return out
}

// SlotContent returns the content at (bag, slot).
func (inv *Inventory) SlotContent(bag, slot int) (resource.Quantity, error) {
	if bag < 0 || bag >= len(inv.bags) {
		return resource.Quantity{}, fmt.Errorf("%w: bag %d", ErrSlotOutOfRange, bag)
	}
	q, ok := inv.bags[bag].Slot(slot)
	if !ok {
		return resource.Quantity{}, fmt.Errorf("%w: bag %d slot %d", ErrSlotOutOfRange, bag, slot)
	}
	return q, nil
}

// Used counts occupied slots across all bags.
func (inv *Inventory) Used() int {
	n := 0
	for _, b := range inv.bags {
		n += b.Used()
	}
	return n
}

// Available counts unset slots across all bags.
func (inv *Inventory) Available() int {
	n := 0
	for _, b := range inv.bags {
		n += b.Available()
	}
	return n
}

// Quantity returns the total held amount of id.
func (inv *Inventory) Quantity(id resource.ID) int {
	return inv.totals[id]
}

// Subscribe registers an observer. The returned function removes it; after
// that the inventory holds no reference to the observer.
func (inv *Inventory) Subscribe(obs Observer) (unsubscribe func()) {
	if obs == nil {
		return func() {}
	}
	inv.nextSub++
	id := inv.nextSub
	inv.subs = append(inv.subs, subscription{id: id, obs: obs})
	return func() {
		for i, s := range inv.subs {
			if s.id == id {
				inv.subs = append(inv.subs[:i], inv.subs[i+1:]...)
				return
			}
		}
	}
}

// ModifyQuantity adds (delta > 0) or removes (delta < 0) an amount of a
// resource and returns the part of delta that could not be applied, with the
// same sign as delta. A zero return means full success.
//
// Adds top up existing stacks first, then open new stacks in the first unset
// slots, scanning bags and slots in index order, and never exceed the
// resource's quantity limit. Removes drain matching stacks in index order.
// An unknown or zero id, or an inventory without bags, changes nothing and
// returns delta.
func (inv *Inventory) ModifyQuantity(id resource.ID, delta int) int {
	if id == 0 || delta == 0 || len(inv.bags) == 0 || inv.registry == nil {
		return delta
	}
	def, err := inv.registry.Lookup(id)
	if err != nil {
		return delta
	}

	var changed []slotRef
	var remainder int
	if delta > 0 {
		remainder = inv.add(def, delta, &changed)
	} else {
		remainder = -inv.remove(id, -delta, &changed)
	}
	inv.notify(changed)
	return remainder
}

// add places up to amount units of def and returns what was left over.
func (inv *Inventory) add(def resource.Definition, amount int, changed *[]slotRef) int {
	want := amount
	if def.QuantityLimit > 0 {
		headroom := def.QuantityLimit - inv.totals[def.ID]
		if headroom <= 0 {
			return amount
		}
		want = min(want, headroom)
	}

	left := want
	for bi, bag := range inv.bags {
		if left == 0 {
			break
		}
		left = inv.addToBag(bi, bag, def, left, changed)
	}

	inv.totals[def.ID] += want - left
	return amount - (want - left)
}

// addToBag tops up the bag's existing stacks of def, then starts new stacks
// in its first unset slots. It returns what did not fit.
func (inv *Inventory) addToBag(bi int, bag *Bag, def resource.Definition, left int, changed *[]slotRef) int {
	for si, s := range bag.slots {
		if left == 0 {
			return 0
		}
		if s.ID != def.ID || s.Amount == 0 {
			continue
		}
		n := stackRoom(def, s.Amount, left)
		if n == 0 {
			continue
		}
		bag.set(si, resource.Quantity{ID: def.ID, Amount: s.Amount + n})
		left -= n
		*changed = append(*changed, slotRef{bag: bi, slot: si})
	}
	for si, s := range bag.slots {
		if left == 0 {
			return 0
		}
		if !s.IsUnset() {
			continue
		}
		n := stackRoom(def, 0, left)
		bag.set(si, resource.Quantity{ID: def.ID, Amount: n})
		left -= n
		*changed = append(*changed, slotRef{bag: bi, slot: si})
	}
	return left
}

// remove drains up to amount units of id and returns what could not be
// removed.
func (inv *Inventory) remove(id resource.ID, amount int, changed *[]slotRef) int {
	left := amount
	for bi, bag := range inv.bags {
		for si, s := range bag.slots {
			if left == 0 {
				break
			}
			if s.ID != id || s.Amount == 0 {
				continue
			}
			n := min(s.Amount, left)
			bag.set(si, resource.Quantity{ID: id, Amount: s.Amount - n})
			left -= n
			*changed = append(*changed, slotRef{bag: bi, slot: si})
		}
	}
	removed := amount - left
	if removed > 0 {
		inv.totals[id] -= removed
		if inv.totals[id] <= 0 {
			delete(inv.totals, id)
		}
	}
	return left
}

func stackRoom(def resource.Definition, current, want int) int {
	if def.StackLimit == 0 {
		return want
	}
	free := def.StackLimit - current
	if free <= 0 {
		return 0
	}
	return min(free, want)
}

func (inv *Inventory) notify(changed []slotRef) {
	if len(changed) == 0 || len(inv.subs) == 0 {
		return
	}
	// Observers may unsubscribe while being notified.
	subs := make([]subscription, len(inv.subs))
	copy(subs, inv.subs)
	for _, ref := range changed {
		content := inv.bags[ref.bag].slots[ref.slot]
		for _, s := range subs {
			s.obs.SlotChanged(ref.bag, ref.slot, content)
		}
	}
	if len(changed) > 1 {
		for _, s := range subs {
			s.obs.BulkChanged()
		}
	}
}

// Fits reports whether, after removing every quantity in removals, the whole
// addition could be placed. The inventory itself is not modified and no
// observer fires.
func (inv *Inventory) Fits(removals []resource.Quantity, addition resource.Quantity) bool {
	probe := inv.detached()
	for _, r := range removals {
		if r.IsUnset() {
			continue
		}
		if probe.ModifyQuantity(r.ID, -r.Amount) != 0 {
			return false
		}
	}
	if addition.IsUnset() {
		return true
	}
	return probe.ModifyQuantity(addition.ID, addition.Amount) == 0
}

// detached returns a deep copy without observers.
func (inv *Inventory) detached() *Inventory {
	cp := &Inventory{
		owner:    inv.owner,
		category: inv.category,
		registry: inv.registry,
		bags:     make([]*Bag, len(inv.bags)),
		totals:   make(map[resource.ID]int, len(inv.totals)),
	}
	for i, b := range inv.bags {
		cp.bags[i] = b.clone()
	}
	for id, n := range inv.totals {
		cp.totals[id] = n
	}
	return cp
}

// bagKey builds a deterministic per-index bag identifier.
func (inv *Inventory) bagKey(i int) string {
	return fmt.Sprintf("%s/%s#%d", inv.owner, inv.category, i)
}
