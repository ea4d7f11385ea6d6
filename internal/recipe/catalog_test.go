package recipe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravitas-games/craftd/internal/resource"
)

func TestCatalogRegister(t *testing.T) {
	reg, err := resource.NewRegistry(
		resource.Definition{ID: 1, Name: "Scrap"},
		resource.Definition{ID: 2, Name: "Plate"},
	)
	require.NoError(t, err)
	cat := NewCatalog(reg)

	plate := Definition{
		ID:           10,
		Name:         "Plate",
		Duration:     2 * time.Second,
		Result:       resource.Quantity{ID: 2, Amount: 1},
		Requirements: []resource.Quantity{{ID: 1, Amount: 3}},
	}
	require.NoError(t, cat.Register(plate))

	// Mutating the caller's slice must not leak into the catalog.
	plate.Requirements[0].Amount = 99

	got, err := cat.Lookup(10)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Requirements[0].Amount)
	assert.Equal(t, []ID{10}, cat.ByResult(2))
	assert.Nil(t, cat.ByResult(1))
	assert.Equal(t, 1, cat.Count())

	_, err = cat.Lookup(11)
	assert.ErrorIs(t, err, ErrInvalidRecipe)
}

func TestCatalogRejectsInvalidRecipes(t *testing.T) {
	reg, err := resource.NewRegistry(resource.Definition{ID: 1}, resource.Definition{ID: 2})
	require.NoError(t, err)
	cat := NewCatalog(reg)

	ok := Definition{ID: 5, Duration: time.Second, Result: resource.Quantity{ID: 2, Amount: 1}, Requirements: []resource.Quantity{{ID: 1, Amount: 1}}}
	require.NoError(t, cat.Register(ok))

	testCases := []struct {
		name   string
		mutate func(d *Definition)
	}{
		{name: "zero id", mutate: func(d *Definition) { d.ID = 0 }},
		{name: "duplicate", mutate: func(d *Definition) {}},
		{name: "zero duration", mutate: func(d *Definition) { d.ID = 6; d.Duration = 0 }},
		{name: "unset result", mutate: func(d *Definition) { d.ID = 6; d.Result = resource.Quantity{} }},
		{name: "unknown result", mutate: func(d *Definition) { d.ID = 6; d.Result.ID = 9 }},
		{name: "zero requirement id", mutate: func(d *Definition) {
			d.ID = 6
			d.Requirements = []resource.Quantity{{ID: 0, Amount: 1}}
		}},
		{name: "non-positive requirement", mutate: func(d *Definition) {
			d.ID = 6
			d.Requirements = []resource.Quantity{{ID: 1, Amount: 0}}
		}},
		{name: "unknown requirement", mutate: func(d *Definition) {
			d.ID = 6
			d.Requirements = []resource.Quantity{{ID: 8, Amount: 1}}
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			def := ok
			def.Requirements = append([]resource.Quantity(nil), ok.Requirements...)
			tc.mutate(&def)
			assert.ErrorIs(t, cat.Register(def), ErrInvalidRecipe)
		})
	}
}

func TestCatalogFreezeAndAll(t *testing.T) {
	cat := NewCatalog(nil)
	for _, id := range []ID{3, 1, 2} {
		require.NoError(t, cat.Register(Definition{ID: id, Duration: time.Second, Result: resource.Quantity{ID: 1, Amount: 1}}))
	}
	cat.Freeze()
	assert.ErrorIs(t, cat.Register(Definition{ID: 4, Duration: time.Second, Result: resource.Quantity{ID: 1, Amount: 1}}), ErrCatalogFrozen)

	all := cat.All()
	require.Len(t, all, 3)
	assert.Equal(t, []ID{1, 2, 3}, []ID{all[0].ID, all[1].ID, all[2].ID})
}
