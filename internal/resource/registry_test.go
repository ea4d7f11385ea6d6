package resource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg, err := NewRegistry(
		Definition{ID: 1, Name: "Scrap Metal", Category: CategoryScrap | CategoryCrafting, StackLimit: 50},
		Definition{ID: 2, Name: "Medkit", Category: CategoryConsumable, StackLimit: 5, QuantityLimit: 10},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	def, err := reg.Lookup(2)
	require.NoError(t, err)
	assert.Equal(t, "Medkit", def.Name)
	assert.Equal(t, 10, def.QuantityLimit)

	_, err = reg.Lookup(99)
	assert.True(t, errors.Is(err, ErrInvalidResource))
	_, err = reg.Lookup(0)
	assert.True(t, errors.Is(err, ErrInvalidResource))
}

func TestRegistryRejectsInvalidDefinitions(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	testCases := []struct {
		name    string
		def     Definition
		wantErr error
	}{
		{name: "zero id", def: Definition{ID: 0}, wantErr: ErrInvalidResource},
		{name: "negative stack limit", def: Definition{ID: 3, StackLimit: -1}, wantErr: ErrInvalidResource},
		{name: "negative quantity limit", def: Definition{ID: 4, QuantityLimit: -2}, wantErr: ErrInvalidResource},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := reg.Register(tc.def)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	require.NoError(t, reg.Register(Definition{ID: 7}))
	assert.ErrorIs(t, reg.Register(Definition{ID: 7}), ErrDuplicateResource)
}

func TestRegistryFreeze(t *testing.T) {
	reg, err := NewRegistry(Definition{ID: 1})
	require.NoError(t, err)
	reg.Freeze()
	assert.True(t, reg.Frozen())
	assert.ErrorIs(t, reg.Register(Definition{ID: 2}), ErrRegistryFrozen)
	assert.ErrorIs(t, reg.RegisterCategory(CategoryInfo{Flag: CategoryWeapon, Name: "weapon"}), ErrRegistryFrozen)

	_, err = reg.Lookup(1)
	assert.NoError(t, err)
}

func TestRegistryExportAndCategories(t *testing.T) {
	reg, err := NewRegistry(
		Definition{ID: 9, Category: CategoryWeapon | CategoryEquipped},
		Definition{ID: 3, Category: CategoryCrafting},
		Definition{ID: 5, Category: CategoryWeapon},
	)
	require.NoError(t, err)

	exported := reg.Export()
	require.Len(t, exported, 3)
	assert.Equal(t, []ID{3, 5, 9}, []ID{exported[0].ID, exported[1].ID, exported[2].ID})

	weapons := reg.ByCategory(CategoryWeapon)
	require.Len(t, weapons, 2)
	assert.Equal(t, ID(5), weapons[0].ID)

	require.NoError(t, reg.RegisterCategory(CategoryInfo{Flag: CategoryWeapon, Name: "weapon", Description: "Deals damage"}))
	assert.Error(t, reg.RegisterCategory(CategoryInfo{Flag: CategoryWeapon | CategoryScrap, Name: "combo"}))
	info, ok := reg.Category(CategoryWeapon)
	require.True(t, ok)
	assert.Equal(t, "Deals damage", info.Description)
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "none", Category(0).String())
	assert.Equal(t, "scrap|crafting", (CategoryScrap | CategoryCrafting).String())
	c, ok := ParseCategory("consumable")
	require.True(t, ok)
	assert.Equal(t, CategoryConsumable, c)
	_, ok = ParseCategory("armor")
	assert.False(t, ok)
}

func TestQuantityIsUnset(t *testing.T) {
	assert.True(t, Quantity{}.IsUnset())
	assert.True(t, Quantity{ID: 4}.IsUnset())
	assert.True(t, Quantity{Amount: 4}.IsUnset())
	assert.False(t, Quantity{ID: 4, Amount: 1}.IsUnset())
}
