package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRevokeAndLookup(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	store := NewMemoryStore(WithMemoryClock(func() time.Time { return now }))
	ctx := context.Background()

	revoked, err := store.Revoked(ctx, "token-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "token-1", now.Add(time.Hour)))

	revoked, err = store.Revoked(ctx, "token-1")
	require.NoError(t, err)
	require.True(t, revoked)

	// other ids are unaffected
	revoked, err = store.Revoked(ctx, "token-2")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestMemoryStoreEntryLapsesWithToken(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	store := NewMemoryStore(WithMemoryClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "token-1", now.Add(time.Minute)))

	revoked, err := store.Revoked(ctx, "token-1")
	require.NoError(t, err)
	require.True(t, revoked)

	// once the token would have expired anyway, the entry no longer matters
	now = now.Add(2 * time.Minute)
	revoked, err = store.Revoked(ctx, "token-1")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestMemoryStoreIgnoresAlreadyExpired(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	store := NewMemoryStore(WithMemoryClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "token-1", now.Add(-time.Minute)))

	revoked, err := store.Revoked(ctx, "token-1")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestMemoryStoreRejectsEmptyID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.ErrorIs(t, store.Revoke(ctx, "", time.Now().Add(time.Hour)), ErrInvalidInput)
	_, err := store.Revoked(ctx, "")
	require.ErrorIs(t, err, ErrInvalidInput)
}
