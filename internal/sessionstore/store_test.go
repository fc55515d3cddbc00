package sessionstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *Record {
	return &Record{
		Identity: types.Identity{
			UserID:      uuid.New(),
			Email:       "demo@packfinderz.dev",
			DisplayName: "Demo",
		},
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		SavedAt:      time.Now().UTC().Truncate(time.Second),
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemory()
	ctx := context.Background()

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	record := sampleRecord()
	require.NoError(t, store.Save(ctx, record))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, record.Identity, loaded.Identity)
	require.Equal(t, record.RefreshToken, loaded.RefreshToken)

	// mutating the loaded copy must not leak into the store
	loaded.RefreshToken = "tampered"
	again, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "refresh-token", again.RefreshToken)

	require.NoError(t, store.Delete(ctx))
	_, err = store.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.db")
	store, err := NewSQLite(path, "current")
	require.NoError(t, err)

	ctx := context.Background()

	_, err = store.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	record := sampleRecord()
	require.NoError(t, store.Save(ctx, record))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, record.Identity.UserID, loaded.Identity.UserID)
	require.Equal(t, record.AccessToken, loaded.AccessToken)

	// saving again overwrites the same row
	record.AccessToken = "rotated"
	require.NoError(t, store.Save(ctx, record))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "rotated", loaded.AccessToken)

	require.NoError(t, store.Delete(ctx))
	_, err = store.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreValidatesArgs(t *testing.T) {
	t.Parallel()

	_, err := NewSQLite("", "current")
	require.Error(t, err)

	_, err = NewSQLite(filepath.Join(t.TempDir(), "s.db"), "")
	require.Error(t, err)
}
