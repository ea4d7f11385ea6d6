package inventory

import "github.com/gravitas-games/craftd/internal/resource"

// Bag is a fixed-capacity ordered array of slots. Capacity is set at
// creation and never changes.
type Bag struct {
	id    string
	slots []resource.Quantity
}

// NewBag creates an empty bag. A non-positive capacity yields a bag with no
// slots.
func NewBag(id string, capacity int) *Bag {
	if capacity < 0 {
		capacity = 0
	}
	return &Bag{id: id, slots: make([]resource.Quantity, capacity)}
}

// ID returns the bag's stable identifier.
func (b *Bag) ID() string { return b.id }

// Capacity returns the number of slots.
func (b *Bag) Capacity() int { return len(b.slots) }

// Slot returns the content of slot i.
func (b *Bag) Slot(i int) (resource.Quantity, bool) {
	if i < 0 || i >= len(b.slots) {
		return resource.Quantity{}, false
	}
	return b.slots[i], true
}

// Used counts slots holding something.
func (b *Bag) Used() int {
	n := 0
	for _, s := range b.slots {
		if !s.IsUnset() {
			n++
		}
	}
	return n
}

// Available counts unset slots.
func (b *Bag) Available() int {
	return len(b.slots) - b.Used()
}

// Slots returns a copy of the slot contents.
func (b *Bag) Slots() []resource.Quantity {
	out := make([]resource.Quantity, len(b.slots))
	copy(out, b.slots)
	return out
}

// set stores q in slot i, normalizing empty content to the zero value.
func (b *Bag) set(i int, q resource.Quantity) {
	if q.IsUnset() {
		q = resource.Quantity{}
	}
	b.slots[i] = q
}

func (b *Bag) view() BagView {
	used := b.Used()
	return BagView{
		ID:        b.id,
		Capacity:  len(b.slots),
		Used:      used,
		Available: len(b.slots) - used,
		Slots:     b.Slots(),
	}
}

func (b *Bag) clone() *Bag {
	return &Bag{id: b.id, slots: b.Slots()}
}
