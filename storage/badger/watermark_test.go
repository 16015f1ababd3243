package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermarkStore_LoadUnset(t *testing.T) {
	stores := setupStores(t, 3)

	wm, err := stores.Watermarks.Load(context.Background(), "c1_discord")
	require.NoError(t, err)
	assert.Nil(t, wm)
}

func TestWatermarkStore_AdvanceAndLoad(t *testing.T) {
	stores := setupStores(t, 3)
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, stores.Watermarks.Advance(ctx, "c1_discord", ts))

	wm, err := stores.Watermarks.Load(ctx, "c1_discord")
	require.NoError(t, err)
	require.NotNil(t, wm)
	assert.Equal(t, "c1_discord", wm.Collection)
	assert.Equal(t, ts, wm.Timestamp)
	assert.False(t, wm.UpdatedAt.IsZero())
}

func TestWatermarkStore_NeverMovesBackwards(t *testing.T) {
	stores := setupStores(t, 3)
	ctx := context.Background()
	newer := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	older := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, stores.Watermarks.Advance(ctx, "c1_discord", newer))
	require.NoError(t, stores.Watermarks.Advance(ctx, "c1_discord", older))

	wm, err := stores.Watermarks.Load(ctx, "c1_discord")
	require.NoError(t, err)
	assert.Equal(t, newer, wm.Timestamp)
}

func TestWatermarkStore_CollectionsIndependent(t *testing.T) {
	stores := setupStores(t, 3)
	ctx := context.Background()

	require.NoError(t, stores.Watermarks.Advance(ctx, "c1_discord",
		time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))

	wm, err := stores.Watermarks.Load(ctx, "c1_telegram")
	require.NoError(t, err)
	assert.Nil(t, wm)
}
