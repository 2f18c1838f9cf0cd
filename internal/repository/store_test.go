package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreSchemaIdempotent(t *testing.T) {
	store := newTestStore(t)

	// Re-applying the schema must not error on an existing database.
	require.NoError(t, createTables(store.DB()))
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	accounts := NewSQLiteAccountRepository(store.DB())
	require.NoError(t, accounts.Upsert(ctx, "100001", "Alice", true))

	got, err := accounts.FindByFID(ctx, "100001")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Alice", got.Nickname)
	require.True(t, got.Active)
	require.False(t, got.CreatedAt.IsZero())
}
