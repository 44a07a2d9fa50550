package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trolltrack/trolltrack/internal/errors"
)

func TestLures_ImagesKeepOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	lure := &Lure{Manufacturer: "Reef Runner", Color: "Purple Flash", Length: 5, Buoyancy: "Floating", Weight: 0.4}
	lure.SetImagePaths([]string{"rr_purple_1.png", "rr_purple_2.png", "rr_purple_3.png"})
	require.NoError(t, store.SaveLure(ctx, lure))

	got, err := store.GetLure(ctx, lure.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"rr_purple_1.png", "rr_purple_2.png", "rr_purple_3.png"}, got.ImagePaths())
	assert.Equal(t, "rr_purple_1.png", got.PrimaryImage())

	got.SetImagePaths([]string{"rr_purple_3.png"})
	require.NoError(t, store.SaveLure(ctx, got))

	again, err := store.GetLure(ctx, lure.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"rr_purple_3.png"}, again.ImagePaths())

	got.SetImagePaths(nil)
	require.NoError(t, store.SaveLure(ctx, got))
	bare, err := store.GetLure(ctx, lure.ID)
	require.NoError(t, err)
	assert.Empty(t, bare.PrimaryImage())

	n, err := store.CountLures(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestFindLure(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, store.SaveLure(ctx, &Lure{Manufacturer: "Bandit", Color: "Pink Lemonade", Length: 3.5}))

	found, err := store.FindLure(ctx, "Bandit", "Pink Lemonade", 3.5)
	require.NoError(t, err)
	require.NotNil(t, found)

	missing, err := store.FindLure(ctx, "Bandit", "Pink Lemonade", 4)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeleteLure_DetachesCatches(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	lure := &Lure{Manufacturer: "Smithwick", Color: "Firetiger", Length: 4.5}
	lure.SetImagePaths([]string{"rogue_firetiger.png"})
	require.NoError(t, store.SaveLure(ctx, lure))

	c := &CatchRecord{Timestamp: testNow, LureID: &lure.ID, Location: testFix()}
	require.NoError(t, store.SaveCatch(ctx, c))

	got, err := store.GetCatch(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Lure)
	assert.Equal(t, "rogue_firetiger.png", got.Lure.PrimaryImage())

	require.NoError(t, store.DeleteLure(ctx, lure.ID))

	got, err = store.GetCatch(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LureID)
	assert.Nil(t, got.Lure)

	assert.True(t, errors.IsNotFound(store.DeleteLure(ctx, lure.ID)))
}

func TestSaveLure_Validation(t *testing.T) {
	store := newTestStore(t)
	err := store.SaveLure(t.Context(), &Lure{Color: "Chartreuse"})
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestSaveLure_UpdateKeepsCreatedAt(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	lure := &Lure{Manufacturer: "Bandit", Color: "Blue Back Chrome", Length: 2.75}
	require.NoError(t, store.SaveLure(ctx, lure))
	before, err := store.GetLure(ctx, lure.ID)
	require.NoError(t, err)
	require.False(t, before.CreatedAt.IsZero())

	edited := &Lure{ID: lure.ID, Manufacturer: "Bandit", Color: "Blue Back Chrome", Length: 2.75, Buoyancy: "Floating"}
	require.NoError(t, store.SaveLure(ctx, edited))

	after, err := store.GetLure(ctx, lure.ID)
	require.NoError(t, err)
	assert.Equal(t, "Floating", after.Buoyancy)
	assert.True(t, after.CreatedAt.Equal(before.CreatedAt), "created_at %v, want %v", after.CreatedAt, before.CreatedAt)
}
