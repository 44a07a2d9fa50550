package lures

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trolltrack/trolltrack/internal/errors"
)

func TestLoadBundledCatalog(t *testing.T) {
	t.Parallel()

	items, err := LoadCatalog("")
	require.NoError(t, err)
	require.NotEmpty(t, items)

	first := items[0]
	assert.Equal(t, "Bandit", first.Manufacturer)
	assert.InDelta(t, 3.0, float64(first.Length), 1e-9)
	assert.InDelta(t, 0.5, float64(first.Weight), 1e-9)
	assert.Equal(t, "bandit_pink_lemonade.png", first.PrimaryImage())

	for _, item := range items {
		assert.NotEmpty(t, item.Manufacturer)
		assert.Positive(t, float64(item.Length), "%s %s", item.Manufacturer, item.Color)
	}
}

func TestParseCatalogNumbers(t *testing.T) {
	t.Parallel()

	data := []byte(`[
		{"Manufacturer": "Bandit", "Color": "Wonder Bread", "Weight": "0.5", "Length": 3},
		{"Manufacturer": "Rapala", "Color": "Clown", "Weight": null, "Length": ""},
		{"Manufacturer": "  ", "Color": "Nameless"}
	]`)

	items, err := ParseCatalog(data, "test")
	require.NoError(t, err)
	require.Len(t, items, 2, "entries without a manufacturer are skipped")
	assert.InDelta(t, 0.5, float64(items[0].Weight), 1e-9)
	assert.InDelta(t, 3.0, float64(items[0].Length), 1e-9)
	assert.Zero(t, items[1].Weight)
	assert.Zero(t, items[1].Length)
	assert.Empty(t, items[1].PrimaryImage())
}

func TestParseCatalogMalformed(t *testing.T) {
	t.Parallel()

	_, err := ParseCatalog([]byte(`[{"Manufacturer": "Bandit", "Length": "three"}]`), "test")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryDataFormat, errors.CategoryOf(err))

	_, err = ParseCatalog([]byte(`{`), "test")
	assert.Equal(t, errors.CategoryDataFormat, errors.CategoryOf(err))
}

func TestLoadCatalogFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "lures.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"Manufacturer": "Storm", "Color": "Blue Smelt", "Length": "3.0"}]`), 0o600))

	items, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Storm", items[0].Manufacturer)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, errors.CategoryFileIO, errors.CategoryOf(err))
}

func TestItemLure(t *testing.T) {
	t.Parallel()

	item := Item{
		Manufacturer: " Reef Runner ",
		Color:        "Cherry Bomb",
		Buoyancy:     "Floating",
		Weight:       0.6,
		Length:       3.5,
		ImagePaths:   []string{"a.png", "b.png"},
	}
	l := item.Lure()
	assert.Equal(t, "Reef Runner", l.Manufacturer)
	assert.Equal(t, []string{"a.png", "b.png"}, l.ImagePaths())
	assert.Equal(t, "a.png", l.PrimaryImage())
}
