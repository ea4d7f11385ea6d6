package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravitas-games/craftd/internal/recipe"
	"github.com/gravitas-games/craftd/internal/resource"
)

func TestLoadShippedDefinitions(t *testing.T) {
	cat, err := Load(filepath.Join("..", "..", "configs", "definitions.yaml"))
	require.NoError(t, err)

	assert.True(t, cat.Resources.Frozen())
	assert.Equal(t, 6, cat.Resources.Len())
	assert.Equal(t, 4, cat.Recipes.Count())
	assert.Len(t, cat.Digest, 64)

	wire, err := cat.Resources.Lookup(2)
	require.NoError(t, err)
	assert.Equal(t, "Wire", wire.Name)
	assert.True(t, wire.Category.Has(resource.CategoryScrap|resource.CategoryCrafting))
	assert.Equal(t, 50, wire.StackLimit)

	circuit, err := cat.Recipes.Lookup(101)
	require.NoError(t, err)
	assert.Equal(t, 3500*time.Millisecond, circuit.Duration)
	assert.Equal(t, []resource.Quantity{{ID: 2, Amount: 4}, {ID: 3, Amount: 1}}, circuit.Requirements)

	info, ok := cat.Resources.Category(resource.CategoryWeapon)
	require.True(t, ok)
	assert.Equal(t, "weapon", info.Name)

	assert.ErrorIs(t, cat.Recipes.Register(recipe.Definition{ID: 999, Duration: time.Second, Result: resource.Quantity{ID: 1, Amount: 1}}), recipe.ErrCatalogFrozen)
}

func TestParseJSON(t *testing.T) {
	cat, err := Parse([]byte(`{
		"resources": [{"id": 7, "name": "Gear", "stack_limit": 4}],
		"recipes": [{"id": 1, "duration": 0.25, "result": {"resource": 7, "amount": 2}}]
	}`))
	require.NoError(t, err)
	def, err := cat.Recipes.Lookup(1)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, def.Duration)
	assert.Empty(t, def.Requirements)
}

func TestParseRejects(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: ``},
		{name: "not yaml", doc: `resources: [`},
		{name: "missing resources", doc: `recipes: []`},
		{name: "zero id", doc: `resources: [{id: 0, name: A}]`},
		{name: "unknown category", doc: `resources: [{id: 1, name: A, categories: [magic]}]`},
		{name: "negative stack", doc: `resources: [{id: 1, name: A, stack_limit: -1}]`},
		{name: "unknown field", doc: `resources: [{id: 1, name: A, weight: 3}]`},
		{name: "duplicate resource", doc: `resources: [{id: 1, name: A}, {id: 1, name: B}]`},
		{name: "zero duration", doc: `
resources: [{id: 1, name: A}]
recipes: [{id: 1, duration: 0, result: {resource: 1, amount: 1}}]`},
		{name: "zero requirement", doc: `
resources: [{id: 1, name: A}]
recipes: [{id: 1, duration: 1, result: {resource: 1, amount: 1}, requirements: [{resource: 1, amount: 0}]}]`},
		{name: "recipe references unknown resource", doc: `
resources: [{id: 1, name: A}]
recipes: [{id: 1, duration: 1, result: {resource: 2, amount: 1}}]`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
