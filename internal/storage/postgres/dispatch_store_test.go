package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-scout/internal/domain"
	"solana-token-scout/internal/storage"
)

func TestDispatchStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDispatchStore(pool)
	ctx := context.Background()

	_, err := store.Get(ctx, -100200300, "hatching")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Upsert(ctx, &domain.DispatchRecord{
		ChannelID: -100200300,
		Segment:   "hatching",
		MessageID: 42,
		UpdatedAt: 1000,
	}))
	require.NoError(t, store.Upsert(ctx, &domain.DispatchRecord{
		ChannelID: -100200300,
		Segment:   "cooking",
		MessageID: 43,
		UpdatedAt: 1000,
	}))

	got, err := store.Get(ctx, -100200300, "hatching")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.MessageID)

	// Upsert replaces in place for the same (channel, segment).
	require.NoError(t, store.Upsert(ctx, &domain.DispatchRecord{
		ChannelID: -100200300,
		Segment:   "hatching",
		MessageID: 99,
		UpdatedAt: 2000,
	}))

	got, err = store.Get(ctx, -100200300, "hatching")
	require.NoError(t, err)
	assert.Equal(t, int64(99), got.MessageID)
	assert.Equal(t, int64(2000), got.UpdatedAt)

	other, err := store.Get(ctx, -100200300, "cooking")
	require.NoError(t, err)
	assert.Equal(t, int64(43), other.MessageID, "one segment's upsert must not touch another")
}
