package inventory

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravitas-games/craftd/internal/resource"
)

const (
	resScrap  resource.ID = 1
	resMedkit resource.ID = 2
	resOre    resource.ID = 3
	resCoin   resource.ID = 4
)

func testRegistry(t *testing.T) *resource.Registry {
	t.Helper()
	reg, err := resource.NewRegistry(
		resource.Definition{ID: resScrap, Name: "Scrap", Category: resource.CategoryScrap, StackLimit: 5},
		resource.Definition{ID: resMedkit, Name: "Medkit", Category: resource.CategoryConsumable, StackLimit: 3, QuantityLimit: 7},
		resource.Definition{ID: resOre, Name: "Ore", Category: resource.CategoryCrafting, StackLimit: 10},
		resource.Definition{ID: resCoin, Name: "Coin", Category: resource.CategoryScrap},
	)
	require.NoError(t, err)
	reg.Freeze()
	return reg
}

type recorder struct {
	slots []slotEvent
	bulk  int
}

type slotEvent struct {
	bag, slot int
	content   resource.Quantity
}

func (r *recorder) SlotChanged(bag, slot int, content resource.Quantity) {
	r.slots = append(r.slots, slotEvent{bag: bag, slot: slot, content: content})
}

func (r *recorder) BulkChanged() { r.bulk++ }

func TestModifyQuantityFillsBagAndReturnsRemainder(t *testing.T) {
	inv := New("u1", CategoryGeneral, testRegistry(t), WithBags(2))

	rest := inv.ModifyQuantity(resScrap, 12)

	assert.Equal(t, 2, rest)
	slot0, _ := inv.SlotContent(0, 0)
	slot1, _ := inv.SlotContent(0, 1)
	assert.Equal(t, resource.Quantity{ID: resScrap, Amount: 5}, slot0)
	assert.Equal(t, resource.Quantity{ID: resScrap, Amount: 5}, slot1)
	assert.Equal(t, 10, inv.Quantity(resScrap))
	assert.Equal(t, 0, inv.Available())
}

func TestModifyQuantityTopsUpExistingStacksFirst(t *testing.T) {
	inv := New("u1", CategoryGeneral, testRegistry(t), WithBags(3, 2))

	require.Zero(t, inv.ModifyQuantity(resOre, 4))   // bag0 slot0
	require.Zero(t, inv.ModifyQuantity(resScrap, 2)) // bag0 slot1
	require.Zero(t, inv.ModifyQuantity(resOre, 9))   // top up slot0 to 10, new stack of 3 in bag0 slot2

	views := inv.Bags()
	assert.Equal(t, resource.Quantity{ID: resOre, Amount: 10}, views[0].Slots[0])
	assert.Equal(t, resource.Quantity{ID: resScrap, Amount: 2}, views[0].Slots[1])
	assert.Equal(t, resource.Quantity{ID: resOre, Amount: 3}, views[0].Slots[2])
	assert.Equal(t, 0, views[1].Used)

	// The next stack spills into the second bag.
	require.Zero(t, inv.ModifyQuantity(resScrap, 6))
	views = inv.Bags()
	assert.Equal(t, resource.Quantity{ID: resScrap, Amount: 5}, views[0].Slots[1])
	assert.Equal(t, resource.Quantity{ID: resScrap, Amount: 3}, views[1].Slots[0])
}

func TestModifyQuantityFillsEarlierBagBeforeLaterStack(t *testing.T) {
	inv := New("u1", CategoryGeneral, testRegistry(t), WithBags(1, 2))
	require.Zero(t, inv.ModifyQuantity(resOre, 10)) // bag0 full of ore
	require.Zero(t, inv.ModifyQuantity(resScrap, 1)) // bag1 slot0
	require.Zero(t, inv.ModifyQuantity(resOre, -10))

	require.Zero(t, inv.ModifyQuantity(resScrap, 3))

	views := inv.Bags()
	assert.Equal(t, resource.Quantity{ID: resScrap, Amount: 3}, views[0].Slots[0])
	assert.Equal(t, resource.Quantity{ID: resScrap, Amount: 1}, views[1].Slots[0])
	assert.Equal(t, 4, inv.Quantity(resScrap))
}

func TestModifyQuantityTopsUpWithinBagBeforeNewStack(t *testing.T) {
	inv := New("u1", CategoryGeneral, testRegistry(t), WithBags(1, 1))
	require.Zero(t, inv.ModifyQuantity(resScrap, 8)) // 5 in bag0, 3 in bag1

	// bag0 has no room, bag1's stack is topped up and the rest is left over.
	assert.Equal(t, 2, inv.ModifyQuantity(resScrap, 4))
	views := inv.Bags()
	assert.Equal(t, resource.Quantity{ID: resScrap, Amount: 5}, views[0].Slots[0])
	assert.Equal(t, resource.Quantity{ID: resScrap, Amount: 5}, views[1].Slots[0])
}

func TestModifyQuantityRespectsQuantityLimit(t *testing.T) {
	inv := New("u1", CategoryGeneral, testRegistry(t), WithBags(10))

	assert.Equal(t, 3, inv.ModifyQuantity(resMedkit, 10))
	assert.Equal(t, 7, inv.Quantity(resMedkit))
	assert.Equal(t, 3, inv.Used()) // 3 + 3 + 1

	assert.Equal(t, 2, inv.ModifyQuantity(resMedkit, 2))
	assert.Equal(t, 7, inv.Quantity(resMedkit))
}

func TestModifyQuantityUnlimitedStack(t *testing.T) {
	inv := New("u1", CategoryGeneral, testRegistry(t), WithBags(1))
	assert.Zero(t, inv.ModifyQuantity(resCoin, 100000))
	assert.Equal(t, 100000, inv.Quantity(resCoin))
	assert.Equal(t, 1, inv.Used())
}

func TestModifyQuantityRemove(t *testing.T) {
	inv := New("u1", CategoryGeneral, testRegistry(t), WithBags(4))
	require.Zero(t, inv.ModifyQuantity(resScrap, 12)) // 5,5,2

	assert.Zero(t, inv.ModifyQuantity(resScrap, -7))
	views := inv.Bags()
	assert.True(t, views[0].Slots[0].IsUnset())
	assert.Equal(t, resource.Quantity{ID: resScrap, Amount: 3}, views[0].Slots[1])
	assert.Equal(t, resource.Quantity{ID: resScrap, Amount: 2}, views[0].Slots[2])

	// Removing more than held reports the signed shortfall.
	assert.Equal(t, -4, inv.ModifyQuantity(resScrap, -9))
	assert.Zero(t, inv.Quantity(resScrap))
	assert.Equal(t, 0, inv.Used())
}

func TestModifyQuantityInvalidInputs(t *testing.T) {
	reg := testRegistry(t)

	inv := New("u1", CategoryGeneral, reg, WithBags(2))
	assert.Equal(t, 5, inv.ModifyQuantity(0, 5))
	assert.Equal(t, -5, inv.ModifyQuantity(0, -5))
	assert.Equal(t, 5, inv.ModifyQuantity(99, 5))
	assert.Equal(t, 0, inv.ModifyQuantity(resScrap, 0))
	assert.Equal(t, 0, inv.Used())

	empty := New("u1", CategoryGeneral, reg)
	assert.Equal(t, 8, empty.ModifyQuantity(resScrap, 8))
	assert.Equal(t, -8, empty.ModifyQuantity(resScrap, -8))
}

func TestNotifications(t *testing.T) {
	inv := New("u1", CategoryGeneral, testRegistry(t), WithBags(3))
	rec := &recorder{}
	unsubscribe := inv.Subscribe(rec)

	inv.ModifyQuantity(resScrap, 3)
	require.Len(t, rec.slots, 1)
	assert.Equal(t, slotEvent{bag: 0, slot: 0, content: resource.Quantity{ID: resScrap, Amount: 3}}, rec.slots[0])
	assert.Zero(t, rec.bulk, "single-slot change must not fire bulk")

	rec.slots = nil
	inv.ModifyQuantity(resScrap, 9) // 3->5, new 5, new 2
	assert.Len(t, rec.slots, 3)
	assert.Equal(t, 1, rec.bulk)

	rec.slots = nil
	inv.ModifyQuantity(resScrap, -100)
	assert.Len(t, rec.slots, 3)
	assert.Equal(t, 2, rec.bulk)
	for _, ev := range rec.slots {
		assert.True(t, ev.content.IsUnset())
	}

	unsubscribe()
	rec.slots = nil
	inv.ModifyQuantity(resScrap, 1)
	assert.Empty(t, rec.slots)
}

func TestObserverFuncs(t *testing.T) {
	inv := New("u1", CategoryGeneral, testRegistry(t), WithBags(2))
	var bulk int
	inv.Subscribe(ObserverFuncs{OnBulkChanged: func() { bulk++ }})
	inv.ModifyQuantity(resScrap, 10)
	assert.Equal(t, 1, bulk)
}

func TestAddRemoveRoundTripRestoresLayout(t *testing.T) {
	inv := New("u1", CategoryGeneral, testRegistry(t), WithBags(3, 3))
	require.Zero(t, inv.ModifyQuantity(resOre, 10))
	require.Zero(t, inv.ModifyQuantity(resScrap, 5))
	before := inv.Bags()

	require.Zero(t, inv.ModifyQuantity(resMedkit, 7))
	require.Zero(t, inv.ModifyQuantity(resMedkit, -7))

	assert.Equal(t, before, inv.Bags())
}

func TestLimitsHoldOverRandomSequences(t *testing.T) {
	reg := testRegistry(t)
	inv := New("u1", CategoryGeneral, reg, WithBags(4, 3, 5))
	rng := rand.New(rand.NewSource(42))
	ids := []resource.ID{resScrap, resMedkit, resOre, resCoin, 0, 77}

	for i := 0; i < 2000; i++ {
		id := ids[rng.Intn(len(ids))]
		delta := rng.Intn(31) - 15
		inv.ModifyQuantity(id, delta)

		scanned := map[resource.ID]int{}
		for _, b := range inv.Bags() {
			for _, s := range b.Slots {
				if s.IsUnset() {
					continue
				}
				def, err := reg.Lookup(s.ID)
				require.NoError(t, err)
				if def.StackLimit > 0 {
					require.LessOrEqual(t, s.Amount, def.StackLimit)
				}
				require.Positive(t, s.Amount)
				scanned[s.ID] += s.Amount
			}
		}
		for _, def := range reg.Export() {
			require.Equal(t, scanned[def.ID], inv.Quantity(def.ID), "cached total for %d", def.ID)
			if def.QuantityLimit > 0 {
				require.LessOrEqual(t, scanned[def.ID], def.QuantityLimit)
			}
		}
	}
}

func TestFitsDoesNotMutate(t *testing.T) {
	inv := New("u1", CategoryGeneral, testRegistry(t), WithBags(2))
	require.Zero(t, inv.ModifyQuantity(resScrap, 10)) // both slots full
	rec := &recorder{}
	inv.Subscribe(rec)

	assert.False(t, inv.Fits(nil, resource.Quantity{ID: resOre, Amount: 1}))
	assert.True(t, inv.Fits([]resource.Quantity{{ID: resScrap, Amount: 5}}, resource.Quantity{ID: resOre, Amount: 1}))
	assert.False(t, inv.Fits([]resource.Quantity{{ID: resScrap, Amount: 11}}, resource.Quantity{}))
	assert.True(t, inv.Fits([]resource.Quantity{{ID: resScrap, Amount: 2}}, resource.Quantity{ID: resScrap, Amount: 2}))

	assert.Equal(t, 10, inv.Quantity(resScrap))
	assert.Empty(t, rec.slots)
}

func TestSlotContentOutOfRange(t *testing.T) {
	inv := New("u1", CategoryGeneral, testRegistry(t), WithBags(2))
	_, err := inv.SlotContent(1, 0)
	assert.ErrorIs(t, err, ErrSlotOutOfRange)
	_, err = inv.SlotContent(0, 2)
	assert.ErrorIs(t, err, ErrSlotOutOfRange)
}
