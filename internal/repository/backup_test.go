package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupCreateAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	accounts := NewSQLiteAccountRepository(store.DB())
	require.NoError(t, accounts.Upsert(ctx, "100001", "Alice", true))

	dir := t.TempDir()
	backup := NewBackupService(store, dir, 0)

	path, err := backup.Create(ctx)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	// The latest copy is refreshed alongside the timestamped file.
	latest := backup.LatestPath()
	require.NotEmpty(t, latest)
	assert.Equal(t, filepath.Join(dir, "ks-rewards_latest.db"), latest)

	backups, err := backup.List()
	require.NoError(t, err)
	require.Len(t, backups, 1, "latest copy excluded from the listing")
	assert.Equal(t, filepath.Base(path), backups[0].Filename)
}

func TestBackupSnapshotIsUsable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	accounts := NewSQLiteAccountRepository(store.DB())
	require.NoError(t, accounts.Upsert(ctx, "100001", "Alice", true))

	backup := NewBackupService(store, t.TempDir(), 0)
	path, err := backup.Create(ctx)
	require.NoError(t, err)

	// The snapshot must open as a standalone database with the data in
	// place.
	restored, err := NewStore(path)
	require.NoError(t, err)
	defer restored.Close()

	got, err := NewSQLiteAccountRepository(restored.DB()).FindByFID(ctx, "100001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice", got.Nickname)
}

func TestBackupListEmptyDir(t *testing.T) {
	store := newTestStore(t)
	backup := NewBackupService(store, filepath.Join(t.TempDir(), "missing"), 0)

	backups, err := backup.List()
	require.NoError(t, err)
	assert.Empty(t, backups)
	assert.Empty(t, backup.LatestPath())
}
