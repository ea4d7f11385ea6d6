package inventory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravitas-games/craftd/internal/resource"
)

func TestSnapshotRestore(t *testing.T) {
	reg := testRegistry(t)
	inv := New("player1", CategoryCharacter, reg, WithBags(3, 2))
	require.Zero(t, inv.ModifyQuantity(resScrap, 7))
	require.Zero(t, inv.ModifyQuantity(resMedkit, 4))

	data, err := json.Marshal(inv.Snapshot())
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	out, err := FromSnapshot(reg, snap)
	require.NoError(t, err)

	assert.Equal(t, inv.Owner(), out.Owner())
	assert.Equal(t, CategoryCharacter, out.Category())
	assert.Equal(t, inv.Bags(), out.Bags())
	assert.Equal(t, 7, out.Quantity(resScrap))
	assert.Equal(t, 4, out.Quantity(resMedkit))
	assert.Equal(t, "player1/character#1", out.Bags()[1].ID)
}

func TestFromSnapshotPadsShortSlotLists(t *testing.T) {
	snap := Snapshot{
		Owner:    "u1",
		Category: CategoryGeneral,
		Bags: []BagSnapshot{
			{Capacity: 4, Slots: []resource.Quantity{{ID: resOre, Amount: 2}}},
		},
	}
	inv, err := FromSnapshot(testRegistry(t), snap)
	require.NoError(t, err)
	views := inv.Bags()
	require.Len(t, views, 1)
	assert.Equal(t, 4, views[0].Capacity)
	assert.Equal(t, 3, views[0].Available)
	assert.Equal(t, "u1/general#0", views[0].ID)
}

func TestFromSnapshotRejectsBrokenInvariants(t *testing.T) {
	reg := testRegistry(t)
	testCases := []struct {
		name string
		bags []BagSnapshot
	}{
		{name: "zero capacity", bags: []BagSnapshot{{Capacity: 0}}},
		{name: "too many slots", bags: []BagSnapshot{{Capacity: 1, Slots: make([]resource.Quantity, 2)}}},
		{name: "unknown resource", bags: []BagSnapshot{{Capacity: 1, Slots: []resource.Quantity{{ID: 99, Amount: 1}}}}},
		{name: "negative amount", bags: []BagSnapshot{{Capacity: 1, Slots: []resource.Quantity{{ID: resOre, Amount: -1}}}}},
		{name: "stack limit", bags: []BagSnapshot{{Capacity: 1, Slots: []resource.Quantity{{ID: resScrap, Amount: 6}}}}},
		{name: "quantity limit", bags: []BagSnapshot{{Capacity: 3, Slots: []resource.Quantity{
			{ID: resMedkit, Amount: 3}, {ID: resMedkit, Amount: 3}, {ID: resMedkit, Amount: 3},
		}}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromSnapshot(reg, Snapshot{Owner: "u1", Bags: tc.bags})
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
		})
	}

	_, err := FromSnapshot(nil, Snapshot{})
	assert.Error(t, err)
}
